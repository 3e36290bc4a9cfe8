package form

import (
	"strconv"
	"sync"
	"time"

	"github.com/rgaviola/osca-forms/model"
)

// Synthetic fields present in every workflow regardless of the schema.
const (
	FieldDocumentType = "documentType"
	FieldDocumentFile = "documentFile"
	FieldPhotoFile    = "photoFile"

	fieldBirthdate = "birthdate"
	fieldAge       = "age"
)

// State is the live edit buffer of one form session: field name to current
// value, plus the per-group collapse flags. It is created by exactly one
// hydration strategy and discarded after commit or abandonment; it is never
// persisted itself. Handlers for the same session overlap (the page fires
// value updates and group toggles independently of navigation), so every
// entrypoint locks. Checklist values are replaced, never mutated in place,
// so a map handed out by a getter stays safe to read.
type State struct {
	mu        sync.Mutex
	values    map[string]Value
	collapsed map[string]bool
	previews  *PreviewRegistry

	now func() time.Time
}

func NewState() *State {
	return newStateAt(time.Now)
}

func newStateAt(now func() time.Time) *State {
	return &State{
		values:    map[string]Value{},
		collapsed: map[string]bool{},
		previews:  NewPreviewRegistry(),
		now:       now,
	}
}

func (s *State) Value(name string) Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name]
}

func (s *State) Scalar(name string) string {
	if v, ok := s.Value(name).(Scalar); ok {
		return string(v)
	}
	return ""
}

func (s *State) Checklist(name string) Checklist {
	if v, ok := s.Value(name).(Checklist); ok {
		return v
	}
	return nil
}

func (s *State) FileValue(name string) *model.Upload {
	if v, ok := s.Value(name).(File); ok {
		return v.Upload
	}
	return nil
}

// Names returns every field name currently present in the buffer.
func (s *State) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	return names
}

func (s *State) set(name string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = v
}

func (s *State) SetScalar(name, value string) {
	s.set(name, Scalar(value))
}

// SetDate behaves as SetScalar, except that changing the birthdate also
// recomputes the derived age. Age has no editable control of its own; this
// is the only way it changes.
func (s *State) SetDate(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = Scalar(value)
	if name == fieldBirthdate {
		s.values[fieldAge] = Scalar(ageFromBirthdate(value, s.now()))
	}
}

func ageFromBirthdate(value string, today time.Time) string {
	birth, err := time.Parse("2006-01-02", value)
	if err != nil {
		return ""
	}
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() ||
		(today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return ""
	}
	return strconv.Itoa(age)
}

// ToggleChecklistOption adds or removes one option from a checkbox field's
// selection. Redundant toggles are no-ops. The selection map is replaced,
// not edited, so previously handed-out references stay frozen.
func (s *State) ToggleChecklistOption(name, option string, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, _ := s.values[name].(Checklist)
	next := make(Checklist, len(old)+1)
	for opt := range old {
		next[opt] = struct{}{}
	}
	if checked {
		next[option] = struct{}{}
	} else {
		delete(next, option)
	}
	s.values[name] = next
}

// SetFile stores the raw upload and refreshes the session's preview entry
// for the field, releasing the previous one.
func (s *State) SetFile(name string, up *model.Upload) {
	s.set(name, File{Upload: up})
	s.previews.Put(name, up)
}

func (s *State) Previews() *PreviewRegistry {
	return s.previews
}

func (s *State) ToggleGroupCollapse(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collapsed[key] = !s.collapsed[key]
}

func (s *State) Collapsed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collapsed[key]
}

// Clear empties the buffer after a successful commit, releasing previews.
func (s *State) Clear() {
	s.mu.Lock()
	s.values = map[string]Value{}
	s.collapsed = map[string]bool{}
	s.mu.Unlock()
	s.previews.RevokeAll()
}
