package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rgaviola/osca-forms/api"
	"github.com/rgaviola/osca-forms/app"
	"github.com/rgaviola/osca-forms/form"
	"github.com/rgaviola/osca-forms/httpx"
	"github.com/rgaviola/osca-forms/log"
	"github.com/rgaviola/osca-forms/model"
)

const maxUploadBytes = 10 << 20

// Document types accepted as proof of identity. These are a fixed feature of
// every workflow, not part of the field schema.
var documentTypes = []string{
	"Birth Certificate",
	"Voter's ID",
	"Passport",
	"Driver's License",
	"Postal ID",
}

func workflowTitle(w form.Workflow) string {
	switch w {
	case form.WorkflowCreate:
		return "New Senior Citizen Record"
	case form.WorkflowEdit:
		return "Update Senior Citizen Record"
	case form.WorkflowConvert:
		return "Complete Applicant Registration"
	case form.WorkflowPublic:
		return "Senior Citizen Self-Registration"
	}
	return "Senior Citizen Form"
}

// OpenForm starts a session for one of the four workflows and redirects to
// its form page.
func OpenForm(app app.App, workflow form.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := app.ForRequest(r)
		recordID := chi.URLParam(r, "id")

		session, err := form.Start(r.Context(), client, workflow, recordID)
		if err != nil {
			if errors.Is(err, model.ErrNotRegistered) {
				httpx.LogNotFound(w, "form.start.record", recordID)
				return
			}
			httpx.LogGatewayError(w, "form.start", err)
			return
		}

		app.Sessions.Put(session)
		http.Redirect(w, r, "/forms/"+session.ID, http.StatusSeeOther)
	}
}

func session(app app.App, w http.ResponseWriter, r *http.Request) (*form.Session, bool) {
	sid := chi.URLParam(r, "sid")
	s, ok := app.Sessions.Get(sid)
	if !ok {
		httpx.LogNotFound(w, "form.session", sid)
		return nil, false
	}
	return s, true
}

// ShowForm renders the current session state, or the not-registered terminal
// page for a convert session whose applicant has no record.
func ShowForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(app, w, r)
		if !ok {
			return
		}
		if s.NotRegistered {
			renderPage(w, "not_registered.gohtml", nil)
			return
		}
		renderPage(w, "form.gohtml", newFormPage(s, nil))
	}
}

// ProposeForm applies the posted values to the session buffer and, if every
// required field is filled, renders the confirmation page. Nothing is sent
// to the backend yet.
func ProposeForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(app, w, r)
		if !ok {
			return
		}

		if err := applyPostedValues(s, r); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "form.propose.parse_body")
			return
		}

		token, err := s.Propose()
		if err != nil {
			var verr *form.ValidationError
			if errors.As(err, &verr) {
				page := newFormPage(s, nil)
				for _, label := range verr.Missing {
					page.Errors = append(page.Errors, label+" is required.")
				}
				renderPage(w, "form.gohtml", page)
				return
			}
			httpx.LogInternalError(w, "form.propose", err)
			return
		}

		renderPage(w, "confirm.gohtml", confirmPage{
			SessionID: s.ID,
			Token:     token,
			Title:     workflowTitle(s.Workflow),
			FullName:  s.State.Scalar("firstName") + " " + s.State.Scalar("lastName"),
		})
	}
}

// CommitForm performs the confirmed submission. On backend rejection the
// form re-opens with the buffer intact and the server's message verbatim.
func CommitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(app, w, r)
		if !ok {
			return
		}

		client := app.ForRequest(r)
		err := s.Commit(r.Context(), client, r.FormValue("token"))
		if err == nil {
			app.Sessions.Delete(s.ID)
			renderPage(w, "success.gohtml", successPage{Title: workflowTitle(s.Workflow)})
			return
		}

		switch {
		case errors.Is(err, form.ErrCommitInFlight):
			httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "form.commit.in_flight",
				"A submission is already in progress")
		case errors.Is(err, form.ErrBadCommitToken):
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "form.commit.token")
		default:
			page := newFormPage(s, nil)
			page.Errors = append(page.Errors, submitErrorMessage(err))
			renderPage(w, "form.gohtml", page)
		}
	}
}

func submitErrorMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, model.ErrNoBarangayField) {
		return "The form schema has no barangay field. Please reload and try again."
	}
	log.Errorf("form.commit: %s", err)
	return "Failed to submit. Please try again."
}

// UpdateFieldValue is the live-edit endpoint: it applies a single field
// change and returns the derived values, so the page can refresh the
// read-only age as soon as the birthdate changes.
func UpdateFieldValue(app app.App) http.HandlerFunc {
	type request struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(app, w, r)
		if !ok {
			return
		}

		var req request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "form.value.parse_body")
			return
		}

		// age is derived from the birthdate; it is never edited directly
		if req.Field == "age" {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "form.value.derived_field")
			return
		}

		if fieldType(s, req.Field) == model.TypeDate {
			s.State.SetDate(req.Field, req.Value)
		} else {
			s.State.SetScalar(req.Field, req.Value)
		}

		render.JSON(w, r, map[string]any{
			"age": s.State.Scalar("age"),
		})
	}
}

func fieldType(s *form.Session, name string) model.FieldType {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return model.TypeText
}

// ToggleGroup flips one group's collapse flag and returns to the form.
func ToggleGroup(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(app, w, r)
		if !ok {
			return
		}
		s.State.ToggleGroupCollapse(chi.URLParam(r, "key"))
		http.Redirect(w, r, "/forms/"+s.ID, http.StatusSeeOther)
	}
}

// ShowPreview serves an uploaded file back to the page from the session's
// in-memory preview registry.
func ShowPreview(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(app, w, r)
		if !ok {
			return
		}
		field := chi.URLParam(r, "field")
		up, ok := s.State.Previews().Get(field)
		if !ok {
			httpx.LogNotFound(w, "form.preview", field)
			return
		}
		if up.ContentType != "" {
			w.Header().Set("Content-Type", up.ContentType)
		}
		w.Write(up.Content)
	}
}

func applyPostedValues(s *form.Session, r *http.Request) error {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return err
	}

	for _, f := range s.Fields {
		if f.IsBarangay() && s.Ref.Failed {
			// the control rendered disabled, so the browser posts nothing
			// for it; keep the value hydration seeded
			continue
		}
		switch f.Type {
		case model.TypeCheckbox:
			posted := map[string]bool{}
			for _, v := range r.MultipartForm.Value[f.Name] {
				posted[v] = true
			}
			for _, opt := range f.OptionList() {
				s.State.ToggleChecklistOption(f.Name, opt, posted[opt])
			}
		case model.TypeDate:
			s.State.SetDate(f.Name, r.FormValue(f.Name))
		default:
			if f.Name == "age" {
				// derived, never posted back
				continue
			}
			s.State.SetScalar(f.Name, r.FormValue(f.Name))
		}
	}

	s.State.SetScalar(form.FieldDocumentType, r.FormValue(form.FieldDocumentType))
	for _, field := range []string{form.FieldDocumentFile, form.FieldPhotoFile} {
		up, err := formUpload(r, field)
		if err != nil {
			return err
		}
		if up != nil {
			s.State.SetFile(field, up)
		}
	}
	return nil
}

func formUpload(r *http.Request, field string) (*model.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &model.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}
