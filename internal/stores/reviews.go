package stores

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/storefinder/internal/models"
	"github.com/ayush/storefinder/internal/store"
	"github.com/ayush/storefinder/internal/web"
)

const (
	topMinReviews = 2
	topLimit      = 10
)

// AddReview saves a review of the {id} store by the current user.
func (h *Handler) AddReview(c *web.Context) web.Response {
	st, err := h.stores.GetByID(c.Ctx(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return web.NotFound()
	case err != nil:
		return web.Fail(err)
	}

	var f models.ReviewForm
	if err := c.Bind(&f); err != nil {
		if res := c.Invalid(err); res != nil {
			return res
		}
		return web.Fail(err)
	}

	_, err = h.reviews.CreateReview(c.Ctx(), &models.Review{
		StoreID:    st.ID.Hex(),
		AuthorID:   c.User.ID.Hex(),
		AuthorName: c.User.Name,
		Text:       f.Text,
		Rating:     f.Rating,
	})
	if err != nil {
		return web.Fail(err)
	}
	c.Flash(web.FlashSuccess, "Review Saved!")
	return web.RedirectBack()
}

// Top ranks stores with at least two reviews by their average rating.
func (h *Handler) Top(c *web.Context) web.Response {
	ratings, err := h.reviews.TopRated(c.Ctx(), topMinReviews, topLimit)
	if err != nil {
		return web.Fail(err)
	}

	ids := make([]primitive.ObjectID, 0, len(ratings))
	for _, r := range ratings {
		if id, err := primitive.ObjectIDFromHex(r.StoreID); err == nil {
			ids = append(ids, id)
		}
	}
	found, err := h.stores.ListByIDs(c.Ctx(), ids)
	if err != nil {
		return web.Fail(err)
	}
	byID := make(map[string]models.Store, len(found))
	for _, s := range found {
		byID[s.ID.Hex()] = s
	}

	// Keep the rating order; reviews of deleted stores are skipped.
	top := make([]models.TopStore, 0, len(ratings))
	for _, r := range ratings {
		s, ok := byID[r.StoreID]
		if !ok {
			continue
		}
		top = append(top, models.TopStore{Store: s, AverageRating: r.AverageRating, ReviewCount: r.ReviewCount})
	}
	return web.Render("top", "Top Stores", top)
}
