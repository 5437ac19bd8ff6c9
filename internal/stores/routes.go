package stores

import (
	"github.com/go-chi/chi/v5"

	"github.com/ayush/storefinder/internal/middleware"
	"github.com/ayush/storefinder/internal/web"
)

// Mount registers the page routes. upload runs before create and update.
func (h *Handler) Mount(r chi.Router, app *web.App, upload web.Step) {
	r.Get("/", app.Handle(h.List))
	r.Get("/stores", app.Handle(h.List))
	r.Get("/stores/page/{page}", app.Handle(h.List))
	r.Get("/store/{slug}", app.Handle(h.Show))
	r.Get("/tags", app.Handle(h.Tags))
	r.Get("/tags/{tag}", app.Handle(h.Tags))
	r.Get("/map", app.Handle(h.Map))
	r.Get("/top", app.Handle(h.Top))

	r.Get("/add", app.Handle(middleware.IsLoggedIn, h.AddForm))
	r.Post("/add", app.Handle(middleware.IsLoggedIn, upload, h.Create))
	r.Post("/add/{id}", app.Handle(middleware.IsLoggedIn, h.RequireOwner, upload, h.Update))
	r.Get("/stores/{id}/edit", app.Handle(middleware.IsLoggedIn, h.EditForm))
	r.Get("/hearts", app.Handle(middleware.IsLoggedIn, h.Hearts))
	r.Post("/reviews/{id}", app.Handle(middleware.IsLoggedIn, h.AddReview))
}

// MountAPI registers the JSON routes on a router mounted at /api.
func (h *Handler) MountAPI(r chi.Router, app *web.App) {
	r.Get("/search", app.Handle(h.Search))
	r.Get("/stores/near", app.Handle(h.Near))
	r.Post("/stores/{id}/heart", app.Handle(middleware.IsLoggedIn, h.Heart))
}
