package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rgaviola/osca-forms/app"
	"github.com/rgaviola/osca-forms/form"
	"github.com/rgaviola/osca-forms/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	// public self-service registration needs no staff session
	root.Get("/register", OpenForm(app, form.WorkflowPublic))

	root.Group(func(r chi.Router) {
		r.Use(middlewares.RequireSession(app.LoginUrl))

		r.Get("/seniors/new", OpenForm(app, form.WorkflowCreate))
		r.Get(`/seniors/{id:^\d+$}/edit`, OpenForm(app, form.WorkflowEdit))
		r.Get(`/applicants/{id:^\d+$}/convert`, OpenForm(app, form.WorkflowConvert))
	})

	// one engine behind every workflow; the session id carries the rest
	root.Route("/forms/{sid}", func(r chi.Router) {
		r.Get("/", ShowForm(app))
		r.Post("/", ProposeForm(app))
		r.Post("/commit", CommitForm(app))
		r.Post("/values", UpdateFieldValue(app))
		r.Post("/groups/{key}", ToggleGroup(app))
		r.Get("/previews/{field}", ShowPreview(app))
	})

	root.Mount("/static", serveStaticFiles("/static"))

	return root
}

func serveStaticFiles(path string) http.Handler {
	return http.StripPrefix(path, http.FileServer(http.Dir("static")))
}
