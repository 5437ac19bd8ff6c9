package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/storefinder/internal/models"
	"github.com/ayush/storefinder/internal/web"
	"github.com/ayush/storefinder/internal/web/webtest"
)

type fixture struct {
	router   http.Handler
	stores   *memStores
	users    *memUsers
	reviews  *memReviews
	photos   *memPhotos
	sessions *webtest.Sessions
	uploads  int
	// photo is the name the upload step stores, if set.
	photo string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		stores:   &memStores{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		users:    &memUsers{Users: webtest.NewUsers()},
		reviews:  &memReviews{},
		photos:   &memPhotos{},
		sessions: webtest.NewSessions(),
	}
	upload := func(c *web.Context) web.Response {
		f.uploads++
		c.Photo = f.photo
		return nil
	}

	h := NewHandler(f.stores, f.users, f.reviews, f.photos)
	app := webtest.NewApp(f.sessions, f.users)
	r := chi.NewRouter()
	h.Mount(r, app, upload)
	r.Route("/api", func(r chi.Router) { h.MountAPI(r, app) })
	f.router = r
	return f
}

func (f *fixture) user(name string) *models.User {
	u := &models.User{ID: primitive.NewObjectID(), Name: name, Email: strings.ToLower(name) + "@example.com", Hearts: []primitive.ObjectID{}}
	f.users.Put(u)
	return u
}

func (f *fixture) addStore(t *testing.T, name string, author *models.User, tags ...string) *models.Store {
	t.Helper()
	s, err := f.stores.Insert(context.Background(), &models.Store{
		Name:     name,
		Tags:     tags,
		Location: models.NewPoint(-79.8, 43.2, "1 Main St"),
		Author:   author.ID,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) do(method, target string, form url.Values, u *models.User) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if u != nil {
		req.AddCookie(f.sessions.LoginCookie(u))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) lastFlash() string {
	msgs := f.sessions.Messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

func storeForm(name string) url.Values {
	return url.Values{
		"name":        {name},
		"description": {"Great coffee"},
		"tags":        {"Wifi", "Open Late"},
		"address":     {"1 Main St"},
		"lng":         {"-79.8"},
		"lat":         {"43.2"},
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		count int64
		want  int
	}{
		{0, 0}, {1, 1}, {4, 1}, {5, 2}, {8, 2}, {9, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pageCount(tt.count), "count=%d", tt.count)
	}
}

func TestListRedirectsPastLastPage(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	for i := 0; i < 5; i++ {
		f.addStore(t, fmt.Sprintf("Store %d", i), wes)
	}

	rec := f.do(http.MethodGet, "/stores/page/7", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/stores/page/2", rec.Header().Get("Location"))
	assert.Equal(t, "Hey! You asked for page 7. But that doesn't exist. So I put you on page 2", f.lastFlash())

	rec = f.do(http.MethodGet, "/stores/page/2", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Store 0")
	assert.NotContains(t, rec.Body.String(), "Store 4")
	assert.Contains(t, rec.Body.String(), "Page 2 of 2 - 5 total results")
}

func TestListClampsHugePage(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	for i := 0; i < 5; i++ {
		f.addStore(t, fmt.Sprintf("Store %d", i), wes)
	}

	rec := f.do(http.MethodGet, "/stores/page/4611686018427387905", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/stores/page/2", rec.Header().Get("Location"))
	assert.Equal(t, "Hey! You asked for page 2147483647. But that doesn't exist. So I put you on page 2", f.lastFlash())
}

func TestListTreatsInvalidPageAsFirst(t *testing.T) {
	f := newFixture(t)
	f.addStore(t, "Only Store", f.user("Wes"))

	for _, target := range []string{"/", "/stores", "/stores/page/abc", "/stores/page/0"} {
		rec := f.do(http.MethodGet, target, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "Only Store", target)
	}
}

func TestCreateRequiresLogin(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/add", storeForm("Cafe"), nil)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Zero(t, f.uploads)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	f.addStore(t, "Cafe Bar", wes)

	rec := f.do(http.MethodPost, "/add", storeForm("Cafe Bar"), wes)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/store/cafe-bar-2", rec.Header().Get("Location"))
	assert.Equal(t, "Successfully Created Cafe Bar. Care to leave a review?", f.lastFlash())
	assert.Equal(t, 1, f.uploads)

	st, err := f.stores.GetBySlug(context.Background(), "cafe-bar-2")
	require.NoError(t, err)
	assert.Equal(t, wes.ID, st.Author)
	assert.Equal(t, [2]float64{-79.8, 43.2}, st.Location.Coordinates)
	assert.Equal(t, []string{"Wifi", "Open Late"}, st.Tags)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		edit func(url.Values)
		want []string
	}{
		{
			name: "missing name and bad latitude",
			edit: func(v url.Values) { v.Set("name", ""); v.Set("lat", "123") },
			want: []string{"You must supply a name!", "You must supply valid coordinates!"},
		},
		{
			name: "no coordinates",
			edit: func(v url.Values) { v.Del("lng"); v.Del("lat") },
			want: []string{"You must supply coordinates!"},
		},
		{
			name: "blank longitude",
			edit: func(v url.Values) { v.Set("lng", "") },
			want: []string{"You must supply coordinates!"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			form := storeForm("Cafe")
			tt.edit(form)
			rec := f.do(http.MethodPost, "/add", form, f.user("Wes"))

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.want, f.sessions.Messages())
			assert.Empty(t, f.stores.stores)
		})
	}
}

func TestUpdateByNonAuthorIsRejected(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	other := f.user("Other")
	st := f.addStore(t, "Cafe", wes)

	for name, form := range map[string]url.Values{
		"valid":   storeForm("Hijacked"),
		"invalid": {"name": {""}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/add/"+st.ID.Hex(), form, other)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Contains(t, rec.Body.String(), "You must own a store in order to edit it!")
		})
	}
	assert.Zero(t, f.uploads)

	got, _ := f.stores.GetByID(context.Background(), st.ID.Hex())
	assert.Equal(t, "Cafe", got.Name)

	rec := f.do(http.MethodGet, "/stores/"+st.ID.Hex()+"/edit", nil, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateByAuthor(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	st := f.addStore(t, "Cafe", wes)

	rec := f.do(http.MethodGet, "/stores/"+st.ID.Hex()+"/edit", nil, wes)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/add/`+st.ID.Hex()+`"`)

	rec = f.do(http.MethodPost, "/add/"+st.ID.Hex(), storeForm("Cafe Renamed"), wes)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/stores/"+st.ID.Hex()+"/edit", rec.Header().Get("Location"))

	got, _ := f.stores.GetByID(context.Background(), st.ID.Hex())
	assert.Equal(t, "Cafe Renamed", got.Name)
	assert.Equal(t, st.Slug, got.Slug)
}

func TestRejectedFormRemovesUploadedPhoto(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	st := f.addStore(t, "Cafe", wes)
	f.photo = "new.jpeg"

	rec := f.do(http.MethodPost, "/add", storeForm(""), wes)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, []string{"new.jpeg"}, f.photos.removed)

	rec = f.do(http.MethodPost, "/add/"+st.ID.Hex(), storeForm(""), wes)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, []string{"new.jpeg", "new.jpeg"}, f.photos.removed)

	got, _ := f.stores.GetByID(context.Background(), st.ID.Hex())
	assert.Empty(t, got.Photo)
}

func TestUpdateReplacingPhotoRemovesOldOne(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	st := f.addStore(t, "Cafe", wes)
	path := "/add/" + st.ID.Hex()

	f.photo = "first.png"
	f.do(http.MethodPost, path, storeForm("Cafe"), wes)
	assert.Empty(t, f.photos.removed)

	f.photo = ""
	f.do(http.MethodPost, path, storeForm("Cafe"), wes)
	assert.Empty(t, f.photos.removed)
	got, _ := f.stores.GetByID(context.Background(), st.ID.Hex())
	assert.Equal(t, "first.png", got.Photo)

	f.photo = "second.png"
	rec := f.do(http.MethodPost, path, storeForm("Cafe"), wes)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, []string{"first.png"}, f.photos.removed)
	got, _ = f.stores.GetByID(context.Background(), st.ID.Hex())
	assert.Equal(t, "second.png", got.Photo)
}

func TestEditUnknownStore(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/stores/"+primitive.NewObjectID().Hex()+"/edit", nil, f.user("Wes"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShow(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	st := f.addStore(t, "Cafe", wes)
	_, _ = f.reviews.CreateReview(context.Background(), &models.Review{StoreID: st.ID.Hex(), AuthorName: "Ann", Text: "Lovely", Rating: 4})

	rec := f.do(http.MethodGet, "/store/"+st.Slug, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Added by Wes")
	assert.Contains(t, body, "Lovely")

	rec = f.do(http.MethodGet, "/store/no-such-store", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTags(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	f.addStore(t, "Wifi Cafe", wes, "Wifi")
	f.addStore(t, "Late Bar", wes, "Open Late")
	f.addStore(t, "Plain Shop", wes)

	rec := f.do(http.MethodGet, "/tags/Wifi", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wifi Cafe")
	assert.NotContains(t, rec.Body.String(), "Late Bar")

	rec = f.do(http.MethodGet, "/tags", nil, nil)
	assert.Contains(t, rec.Body.String(), "Wifi Cafe")
	assert.Contains(t, rec.Body.String(), "Late Bar")
	assert.NotContains(t, rec.Body.String(), "Plain Shop")
}

func TestHeartToggleTwiceRestoresHearts(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	st := f.addStore(t, "Cafe", wes)
	path := "/api/stores/" + st.ID.Hex() + "/heart"

	var first, second models.User
	rec := f.do(http.MethodPost, path, nil, wes)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, []primitive.ObjectID{st.ID}, first.Hearts)

	rec = f.do(http.MethodPost, path, nil, wes)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Empty(t, second.Hearts)
}

func TestHeartRequiresSession(t *testing.T) {
	f := newFixture(t)
	st := f.addStore(t, "Cafe", f.user("Wes"))
	rec := f.do(http.MethodPost, "/api/stores/"+st.ID.Hex()+"/heart", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"not authenticated"}`, rec.Body.String())
}

func TestHearts(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	liked := f.addStore(t, "Liked Cafe", wes)
	f.addStore(t, "Other Cafe", wes)
	wes.Hearts = []primitive.ObjectID{liked.ID}

	rec := f.do(http.MethodGet, "/hearts", nil, wes)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Liked Cafe")
	assert.NotContains(t, rec.Body.String(), "Other Cafe")
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	f.addStore(t, "Coffee Corner", f.user("Wes"))

	rec := f.do(http.MethodGet, "/api/search?q=coffee", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Store
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "coffee-corner", got[0].Slug)

	rec = f.do(http.MethodGet, "/api/search?q=", nil, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/search?format=html&q=coffee", nil, nil)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `href="/store/coffee-corner"`)

	rec = f.do(http.MethodGet, "/api/search?format=html&q=tea", nil, nil)
	assert.Contains(t, rec.Body.String(), "No results for tea found!")
}

func TestNear(t *testing.T) {
	f := newFixture(t)
	f.addStore(t, "Cafe", f.user("Wes"))

	rec := f.do(http.MethodGet, "/api/stores/near?lat=43.2&lng=-79.8", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"cafe"`)

	for _, q := range []string{
		"lat=north&lng=-79.8",
		"lat=NaN&lng=Inf",
		"lat=43.2&lng=-Inf",
		"lat=91&lng=-79.8",
		"lat=43.2&lng=180.5",
		"lng=-79.8",
	} {
		rec = f.do(http.MethodGet, "/api/stores/near?"+q, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.JSONEq(t, `{"error":"lat and lng must be valid coordinates"}`, rec.Body.String(), q)
	}
}

func TestAddReview(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	st := f.addStore(t, "Cafe", wes)

	rec := f.do(http.MethodPost, "/reviews/"+st.ID.Hex(), url.Values{"text": {"Nice"}, "rating": {"9"}}, wes)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "The rating is out of range!", f.lastFlash())
	assert.Empty(t, f.reviews.reviews)

	rec = f.do(http.MethodPost, "/reviews/"+st.ID.Hex(), url.Values{"text": {"Nice"}, "rating": {"5"}}, wes)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "Review Saved!", f.lastFlash())
	require.Len(t, f.reviews.reviews, 1)
	assert.Equal(t, "Wes", f.reviews.reviews[0].AuthorName)
}

func TestTop(t *testing.T) {
	f := newFixture(t)
	wes := f.user("Wes")
	good := f.addStore(t, "Good Cafe", wes)
	ok := f.addStore(t, "Okay Cafe", wes)
	once := f.addStore(t, "Once Cafe", wes)
	ctx := context.Background()
	for _, r := range []models.Review{
		{StoreID: good.ID.Hex(), Rating: 5}, {StoreID: good.ID.Hex(), Rating: 4},
		{StoreID: ok.ID.Hex(), Rating: 3}, {StoreID: ok.ID.Hex(), Rating: 2},
		{StoreID: once.ID.Hex(), Rating: 5},
	} {
		_, err := f.reviews.CreateReview(ctx, &r)
		require.NoError(t, err)
	}

	rec := f.do(http.MethodGet, "/top", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Top 2 Stores")
	assert.Less(t, strings.Index(body, "Good Cafe"), strings.Index(body, "Okay Cafe"))
	assert.NotContains(t, body, "Once Cafe")
	assert.Contains(t, body, "4.5 / 5")
}
