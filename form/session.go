package form

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rgaviola/osca-forms/api"
	"github.com/rgaviola/osca-forms/log"
	"github.com/rgaviola/osca-forms/model"
)

// ErrBadCommitToken rejects a commit whose confirmation token does not match
// the pending proposal.
var ErrBadCommitToken = errors.New("stale or unknown confirmation token")

// Workflow selects which of the four call sites a session serves. All four
// share one engine; the discriminant only picks the hydration strategy and
// the persistence endpoint.
type Workflow int

const (
	WorkflowCreate Workflow = iota
	WorkflowEdit
	WorkflowConvert
	WorkflowPublic
)

func (w Workflow) String() string {
	switch w {
	case WorkflowCreate:
		return "create"
	case WorkflowEdit:
		return "edit"
	case WorkflowConvert:
		return "convert"
	case WorkflowPublic:
		return "public"
	}
	return "unknown"
}

// Backend is the slice of the OSCA API the engine consumes. *api.Client
// satisfies it.
type Backend interface {
	Fields(ctx context.Context) ([]model.FieldDescriptor, error)
	Groups(ctx context.Context) ([]model.GroupDescriptor, error)
	Barangays(ctx context.Context) ([]model.Barangay, error)
	SystemDefaults(ctx context.Context) (model.SystemDefaults, error)
	Senior(ctx context.Context, id string) (model.SeniorRecord, error)
	CreateSenior(ctx context.Context, sub api.Submission) error
	UpdateSenior(ctx context.Context, id string, sub api.Submission) error
	RegisterApplicant(ctx context.Context, id string, sub api.Submission) error
	SelfRegister(ctx context.Context, sub api.Submission) error
}

// Session is one form-editing session: an immutable schema snapshot, the
// reference-data snapshot, and the live state, hydrated once at start and
// discarded on commit or abandonment.
type Session struct {
	ID       string
	Workflow Workflow
	RecordID string

	Fields        []model.FieldDescriptor
	Groups        []model.GroupDescriptor
	Ref           RefData
	Defaults      model.SystemDefaults
	Record        model.SeniorRecord
	State         *State
	NotRegistered bool

	mu           sync.Mutex
	inFlight     bool
	pendingToken string
}

// Start fetches the schema and reference data concurrently, then hydrates a
// fresh state for the workflow. A failed barangay fetch only degrades the
// barangay control; a failed schema fetch fails the whole session.
func Start(ctx context.Context, backend Backend, workflow Workflow, recordID string) (*Session, error) {
	s := &Session{
		ID:       uuid.NewString(),
		Workflow: workflow,
		RecordID: recordID,
		State:    NewState(),
	}

	var fieldsErr, groupsErr error
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.Fields, fieldsErr = backend.Fields(ctx)
	}()
	go func() {
		defer wg.Done()
		s.Groups, groupsErr = backend.Groups(ctx)
	}()
	go func() {
		defer wg.Done()
		barangays, err := backend.Barangays(ctx)
		if err != nil {
			log.Warnf("session.load_barangays: %s", err)
			s.Ref.Failed = true
			return
		}
		s.Ref.Barangays = barangays
	}()
	wg.Wait()

	if fieldsErr != nil {
		return nil, fieldsErr
	}
	if groupsErr != nil {
		return nil, groupsErr
	}

	strategy, err := s.strategy(ctx, backend)
	if err != nil {
		if errors.Is(err, model.ErrNotRegistered) && workflow == WorkflowConvert {
			s.NotRegistered = true
			return s, nil
		}
		return nil, err
	}

	if err := strategy.Hydrate(s.State, s.Fields); err != nil {
		if errors.Is(err, model.ErrNotRegistered) && workflow == WorkflowConvert {
			s.NotRegistered = true
			return s, nil
		}
		return nil, err
	}
	return s, nil
}

func (s *Session) strategy(ctx context.Context, backend Backend) (Strategy, error) {
	switch s.Workflow {
	case WorkflowCreate, WorkflowPublic:
		defaults, err := backend.SystemDefaults(ctx)
		if err != nil {
			// The form still works without pre-filled municipality and
			// province; the staff can type them in.
			log.Warnf("session.load_defaults: %s", err)
		}
		s.Defaults = defaults
		return Blank{Defaults: defaults}, nil
	case WorkflowEdit:
		record, err := backend.Senior(ctx, s.RecordID)
		if err != nil {
			return nil, err
		}
		s.Record = record
		return FromRecord{Record: record}, nil
	case WorkflowConvert:
		record, err := backend.Senior(ctx, s.RecordID)
		if err != nil {
			return nil, err
		}
		s.Record = record
		return Convert{Record: record}, nil
	}
	return nil, fmt.Errorf("unknown workflow %d", s.Workflow)
}

// Propose validates required fields and issues a confirmation token. No
// network call happens until the token is committed.
func (s *Session) Propose() (string, error) {
	if err := ValidateRequired(s.Fields, s.State); err != nil {
		return "", err
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.pendingToken = token
	s.mu.Unlock()
	return token, nil
}

// Commit assembles the buffer and submits it through the workflow's
// endpoint. A second commit while one is outstanding fails fast without a
// network call. On backend rejection the state is kept for correction; on
// success it is cleared.
func (s *Session) Commit(ctx context.Context, backend Backend, token string) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrCommitInFlight
	}
	if token == "" || token != s.pendingToken {
		s.mu.Unlock()
		return ErrBadCommitToken
	}
	s.inFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	sub, err := Assemble(s.Fields, s.State)
	if err != nil {
		return err
	}

	if err := s.persist(ctx, backend, sub); err != nil {
		return err
	}

	s.mu.Lock()
	s.pendingToken = ""
	s.mu.Unlock()
	s.State.Clear()
	return nil
}

func (s *Session) persist(ctx context.Context, backend Backend, sub api.Submission) error {
	switch s.Workflow {
	case WorkflowCreate:
		return backend.CreateSenior(ctx, sub)
	case WorkflowEdit:
		return backend.UpdateSenior(ctx, s.RecordID, sub)
	case WorkflowConvert:
		return backend.RegisterApplicant(ctx, s.RecordID, sub)
	case WorkflowPublic:
		return backend.SelfRegister(ctx, sub)
	}
	return fmt.Errorf("unknown workflow %d", s.Workflow)
}

// Close releases the session's preview resources.
func (s *Session) Close() {
	s.State.Previews().RevokeAll()
}
