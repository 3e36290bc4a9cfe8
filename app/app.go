package app

import (
	"github.com/rgaviola/osca-forms/api"
	"github.com/rgaviola/osca-forms/config"
	"github.com/rgaviola/osca-forms/form"
)

type App struct {
	*api.Client
	Sessions *form.Store
	config.Config
}
