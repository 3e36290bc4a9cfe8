package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/rgaviola/osca-forms/api"
	"github.com/rgaviola/osca-forms/app"
	"github.com/rgaviola/osca-forms/config"
	"github.com/rgaviola/osca-forms/form"
	"github.com/rgaviola/osca-forms/log"
	"github.com/rgaviola/osca-forms/routes"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	app := app.App{
		Client:   api.New(cfg.APIUrl),
		Sessions: form.NewStore(),
		Config:   cfg,
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
