package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/storefinder/internal/middleware"
	"github.com/ayush/storefinder/internal/web"
)

// Mount registers the account routes. limit wraps the credential and mail endpoints.
func (h *Handler) Mount(r chi.Router, app *web.App, limit func(http.Handler) http.Handler) {
	r.Get("/login", app.Handle(h.LoginForm))
	r.Get("/logout", app.Handle(h.Logout))
	r.Get("/register", app.Handle(h.RegisterForm))
	r.Get("/account", app.Handle(middleware.IsLoggedIn, h.Account))
	r.Post("/account", app.Handle(middleware.IsLoggedIn, h.UpdateAccount))
	r.Get("/account/reset/{token}", app.Handle(h.ResetForm))
	r.Post("/account/reset/{token}", app.Handle(middleware.ConfirmedPasswords, h.ResetPassword))

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/login", app.Handle(h.Login))
		r.Post("/register", app.Handle(h.Register))
		r.Post("/account/forgot", app.Handle(h.Forgot))
	})
}
