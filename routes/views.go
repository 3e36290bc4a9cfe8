package routes

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/rgaviola/osca-forms/form"
	"github.com/rgaviola/osca-forms/log"
)

//go:embed templates
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/*.gohtml"))

func renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		log.Errorf("views.render (%s): %s", name, err)
	}
}

type formPage struct {
	SessionID      string
	Title          string
	Groups         []form.GroupView
	Errors         []string
	BarangayFailed bool

	DocumentTypes      []string
	DocumentType       string
	PhotoURL           string
	DocumentURL        string
	HasPhotoPreview    bool
	HasDocumentPreview bool
}

type confirmPage struct {
	SessionID string
	Token     string
	Title     string
	FullName  string
}

type successPage struct {
	Title string
}

func newFormPage(s *form.Session, errs []string) formPage {
	_, hasPhoto := s.State.Previews().Get(form.FieldPhotoFile)
	_, hasDocument := s.State.Previews().Get(form.FieldDocumentFile)

	return formPage{
		SessionID:      s.ID,
		Title:          workflowTitle(s.Workflow),
		Groups:         form.BuildForm(s.Fields, s.Groups, s.State, s.Ref),
		Errors:         errs,
		BarangayFailed: s.Ref.Failed,

		DocumentTypes:      documentTypes,
		DocumentType:       s.State.Scalar(form.FieldDocumentType),
		PhotoURL:           s.Record.PhotoURL,
		DocumentURL:        s.Record.DocumentURL,
		HasPhotoPreview:    hasPhoto,
		HasDocumentPreview: hasDocument,
	}
}
