package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ayush/storefinder/internal/auth"
	"github.com/ayush/storefinder/internal/metrics"
	"github.com/ayush/storefinder/internal/middleware"
	"github.com/ayush/storefinder/internal/photos"
	"github.com/ayush/storefinder/internal/stores"
	"github.com/ayush/storefinder/internal/telemetry"
	"github.com/ayush/storefinder/internal/web"
)

type routerOptions struct {
	App            *web.App
	Auth           *auth.Handler
	Stores         *stores.Handler
	Photos         *photos.Uploader
	Logger         zerolog.Logger
	AllowedOrigins []string
}

func newRouter(o routerOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.Middleware)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(o.Logger))
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", web.Static()))
	r.Get("/uploads/{name}", o.App.Handle(o.Photos.Serve))

	o.Auth.Mount(r, o.App, httprate.LimitByIP(20, time.Minute))
	o.Stores.Mount(r, o.App, o.Photos.Step)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   o.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		o.Stores.MountAPI(r, o.App)
	})

	r.NotFound(o.App.Handle(func(*web.Context) web.Response { return web.NotFound() }))
	return r
}
