package stores

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/storefinder/internal/metrics"
	"github.com/ayush/storefinder/internal/models"
	"github.com/ayush/storefinder/internal/store"
	"github.com/ayush/storefinder/internal/typeahead"
	"github.com/ayush/storefinder/internal/web"
)

var errBadCoordinates = web.NewError(http.StatusBadRequest, "lat and lng must be valid coordinates")

// Search returns the best text matches for q as JSON, or as the typeahead
// dropdown markup when the client asks for HTML.
func (h *Handler) Search(c *web.Context) web.Response {
	q := strings.TrimSpace(c.Request.URL.Query().Get("q"))

	stores := []models.Store{}
	if q != "" {
		var err error
		if stores, err = h.stores.Search(c.Ctx(), q); err != nil {
			return web.Fail(err)
		}
	}

	if !wantsHTML(c.Request) {
		return web.JSON(http.StatusOK, stores)
	}
	if q == "" {
		return web.Blob(http.StatusOK, "text/html; charset=utf-8", nil)
	}
	results := make([]typeahead.Result, 0, len(stores))
	for _, s := range stores {
		results = append(results, typeahead.Result{Slug: s.Slug, Name: s.Name})
	}
	return web.Blob(http.StatusOK, "text/html; charset=utf-8", []byte(typeahead.RenderResults(results, q)))
}

func wantsHTML(r *http.Request) bool {
	if r.URL.Query().Get("format") == "html" {
		return true
	}
	return strings.HasPrefix(r.Header.Get("Accept"), "text/html")
}

// Near returns the stores within 10km of lat/lng.
func (h *Handler) Near(c *web.Context) web.Response {
	query := c.Request.URL.Query()
	lat, err := parseCoordinate(query.Get("lat"), 90)
	if err != nil {
		return web.Fail(err)
	}
	lng, err := parseCoordinate(query.Get("lng"), 180)
	if err != nil {
		return web.Fail(err)
	}

	stores, err := h.stores.Near(c.Ctx(), lng, lat)
	if err != nil {
		return web.Fail(err)
	}
	return web.JSON(http.StatusOK, stores)
}

// parseCoordinate parses a finite degree value no larger than limit in magnitude.
func parseCoordinate(v string, limit float64) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > limit {
		return 0, errBadCoordinates
	}
	return f, nil
}

// Heart toggles the {id} store in the current user's hearts and returns the user.
func (h *Handler) Heart(c *web.Context) web.Response {
	st, err := h.stores.GetByID(c.Ctx(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return web.NotFound()
	case err != nil:
		return web.Fail(err)
	}

	user, err := h.users.ToggleHeart(c.Ctx(), c.User.ID, st.ID)
	if err != nil {
		return web.Fail(err)
	}
	action := "removed"
	if user.HasHeart(st.ID) {
		action = "added"
	}
	metrics.Hearts.WithLabelValues(action).Inc()
	c.Logger().Debug().Str("store_id", st.ID.Hex()).Str("action", action).Msg("heart toggled")

	c.User = user
	return web.JSON(http.StatusOK, user)
}

// Hearts lists the stores the current user has hearted.
func (h *Handler) Hearts(c *web.Context) web.Response {
	ids := c.User.Hearts
	if ids == nil {
		ids = []primitive.ObjectID{}
	}
	stores, err := h.stores.ListByIDs(c.Ctx(), ids)
	if err != nil {
		return web.Fail(err)
	}
	return web.Render("stores", "Hearted Stores", ListPage{Stores: stores})
}
