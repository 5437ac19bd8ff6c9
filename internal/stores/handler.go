// Package stores serves the store directory: listing, creation and editing,
// tags, search, the map API, hearts and reviews.
package stores

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/ayush/storefinder/internal/models"
	"github.com/ayush/storefinder/internal/store"
	"github.com/ayush/storefinder/internal/web"
)

const PageSize = 4

// maxPage bounds the requested page so the skip cannot overflow.
const maxPage = math.MaxInt32

// TagChoices are the tags offered on the store form.
var TagChoices = []string{"Wifi", "Open Late", "Family Friendly", "Vegetarian", "Licensed"}

// ErrNotOwner rejects edits by anyone but the store's author.
var ErrNotOwner = web.NewError(http.StatusForbidden, "You must own a store in order to edit it!")

// StoreRepo defines the store persistence used by the handlers.
type StoreRepo interface {
	Insert(ctx context.Context, s *models.Store) (*models.Store, error)
	Update(ctx context.Context, s *models.Store) (*models.Store, error)
	GetByID(ctx context.Context, id string) (*models.Store, error)
	GetBySlug(ctx context.Context, slug string) (*models.Store, error)
	List(ctx context.Context, skip, limit int64) ([]models.Store, int64, error)
	ListByTag(ctx context.Context, tag string) ([]models.Store, error)
	ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Store, error)
	TagCounts(ctx context.Context) ([]models.TagCount, error)
	Search(ctx context.Context, q string) ([]models.Store, error)
	Near(ctx context.Context, lng, lat float64) ([]models.Store, error)
}

// UserRepo defines the user lookups and heart updates.
type UserRepo interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ToggleHeart(ctx context.Context, userID, storeID primitive.ObjectID) (*models.User, error)
}

// ReviewRepo defines the review persistence.
type ReviewRepo interface {
	CreateReview(ctx context.Context, r *models.Review) (*models.Review, error)
	ListReviews(ctx context.Context, storeID string) ([]models.Review, error)
	TopRated(ctx context.Context, minReviews, limit int) ([]models.StoreRating, error)
}

// PhotoRemover deletes stored photos that no store points at any more.
type PhotoRemover interface {
	Remove(ctx context.Context, name string) error
}

// Handler holds the store steps.
type Handler struct {
	stores  StoreRepo
	users   UserRepo
	reviews ReviewRepo
	photos  PhotoRemover
}

func NewHandler(stores StoreRepo, users UserRepo, reviews ReviewRepo, photos PhotoRemover) *Handler {
	return &Handler{stores: stores, users: users, reviews: reviews, photos: photos}
}

// ListPage is the data of the stores page.
type ListPage struct {
	Stores   []models.Store
	Page     int
	Pages    int
	Count    int64
	Paginate bool
}

// EditPage is the data of the add/edit form.
type EditPage struct {
	Action  string
	Store   *models.Store
	Choices []string
	Editing bool
}

// TagsPage is the data of the tags page.
type TagsPage struct {
	Tags   []models.TagCount
	Tag    string
	Stores []models.Store
}

// pageCount returns how many pages of PageSize hold count stores.
func pageCount(count int64) int {
	return int((count + PageSize - 1) / PageSize)
}

// List renders one page of stores, newest first. A page past the end
// redirects to the last page.
func (h *Handler) List(c *web.Context) web.Response {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		page = 1
	}
	page = min(page, maxPage)
	skip := int64(page-1) * PageSize

	stores, count, err := h.stores.List(c.Ctx(), skip, PageSize)
	if err != nil {
		return web.Fail(err)
	}
	pages := pageCount(count)

	if len(stores) == 0 && skip > 0 {
		last := max(pages, 1)
		c.Flash(web.FlashInfo, fmt.Sprintf(
			"Hey! You asked for page %d. But that doesn't exist. So I put you on page %d", page, last))
		return web.Redirect(fmt.Sprintf("/stores/page/%d", last))
	}
	return web.Render("stores", "Stores", ListPage{
		Stores:   stores,
		Page:     page,
		Pages:    pages,
		Count:    count,
		Paginate: true,
	})
}

func (h *Handler) AddForm(c *web.Context) web.Response {
	return web.Render("editStore", "Add Store", EditPage{
		Action:  "/add",
		Store:   &models.Store{},
		Choices: TagChoices,
	})
}

// Create saves a new store authored by the current user. A photo stored by
// an earlier step is attached by name.
func (h *Handler) Create(c *web.Context) web.Response {
	var f models.StoreForm
	if err := c.Bind(&f); err != nil {
		h.removePhoto(c, c.Photo)
		if res := c.Invalid(err); res != nil {
			return res
		}
		return web.Fail(err)
	}

	st, err := h.stores.Insert(c.Ctx(), &models.Store{
		Name:        f.Name,
		Description: f.Description,
		Tags:        f.Tags,
		Location:    f.Point(),
		Photo:       c.Photo,
		Author:      c.User.ID,
	})
	if err != nil {
		h.removePhoto(c, c.Photo)
		return web.Fail(err)
	}
	c.Logger().Info().Str("store_id", st.ID.Hex()).Str("slug", st.Slug).Msg("store created")
	c.Flash(web.FlashSuccess, fmt.Sprintf("Successfully Created %s. Care to leave a review?", st.Name))
	return web.Redirect("/store/" + st.Slug)
}

// ownedStore loads the {id} store and checks the current user wrote it.
func (h *Handler) ownedStore(c *web.Context) (*models.Store, web.Response) {
	st, err := h.stores.GetByID(c.Ctx(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, web.NotFound()
	case err != nil:
		return nil, web.Fail(err)
	}
	if !st.OwnedBy(c.User) {
		c.Logger().Warn().Str("store_id", st.ID.Hex()).Msg("edit by non-owner")
		return nil, web.Fail(ErrNotOwner)
	}
	return st, nil
}

// RequireOwner stops the request unless the current user wrote the {id} store.
// It runs before the photo upload and form validation.
func (h *Handler) RequireOwner(c *web.Context) web.Response {
	_, res := h.ownedStore(c)
	return res
}

func (h *Handler) EditForm(c *web.Context) web.Response {
	st, res := h.ownedStore(c)
	if res != nil {
		return res
	}
	return web.Render("editStore", "Edit "+st.Name, EditPage{
		Action:  "/add/" + st.ID.Hex(),
		Store:   st,
		Choices: TagChoices,
		Editing: true,
	})
}

// Update rewrites the editable fields of an owned store.
func (h *Handler) Update(c *web.Context) web.Response {
	st, res := h.ownedStore(c)
	if res != nil {
		return res
	}
	var f models.StoreForm
	if err := c.Bind(&f); err != nil {
		h.removePhoto(c, c.Photo)
		if res := c.Invalid(err); res != nil {
			return res
		}
		return web.Fail(err)
	}

	previous := st.Photo
	st.Name = f.Name
	st.Description = f.Description
	st.Tags = f.Tags
	st.Location = f.Point()
	st.Photo = c.Photo

	updated, err := h.stores.Update(c.Ctx(), st)
	if err != nil {
		h.removePhoto(c, c.Photo)
		return web.Fail(err)
	}
	if c.Photo != "" && previous != c.Photo {
		h.removePhoto(c, previous)
	}
	c.Flash(web.FlashSuccess, fmt.Sprintf("Successfully updated %s. View it at /store/%s", updated.Name, updated.Slug))
	return web.Redirect("/stores/" + updated.ID.Hex() + "/edit")
}

// removePhoto deletes a stored photo. Failures are only logged.
func (h *Handler) removePhoto(c *web.Context, name string) {
	if name == "" {
		return
	}
	if err := h.photos.Remove(c.Ctx(), name); err != nil {
		c.Logger().Warn().Err(err).Str("photo", name).Msg("remove photo")
	}
}

// Show renders a store with its author and reviews.
func (h *Handler) Show(c *web.Context) web.Response {
	st, err := h.stores.GetBySlug(c.Ctx(), c.Param("slug"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return web.NotFound()
	case err != nil:
		return web.Fail(err)
	}

	g, ctx := errgroup.WithContext(c.Ctx())
	if !st.Author.IsZero() {
		g.Go(func() error {
			author, err := h.users.GetUserByID(ctx, st.Author.Hex())
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			st.AuthorUser = author
			return err
		})
	}
	g.Go(func() error {
		reviews, err := h.reviews.ListReviews(ctx, st.ID.Hex())
		st.Reviews = reviews
		return err
	})
	if err := g.Wait(); err != nil {
		return web.Fail(err)
	}
	return web.Render("store", st.Name, st)
}

// Tags renders the tag list and the stores carrying the {tag}, or every
// tagged store when no tag is given.
func (h *Handler) Tags(c *web.Context) web.Response {
	data := TagsPage{Tag: c.Param("tag")}

	g, ctx := errgroup.WithContext(c.Ctx())
	g.Go(func() (err error) {
		data.Tags, err = h.stores.TagCounts(ctx)
		return err
	})
	g.Go(func() (err error) {
		data.Stores, err = h.stores.ListByTag(ctx, data.Tag)
		return err
	})
	if err := g.Wait(); err != nil {
		return web.Fail(err)
	}
	return web.Render("tags", "Tags", data)
}

func (h *Handler) Map(c *web.Context) web.Response {
	return web.Render("map", "Map", nil)
}
