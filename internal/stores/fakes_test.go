package stores

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/storefinder/internal/models"
	"github.com/ayush/storefinder/internal/store"
	"github.com/ayush/storefinder/internal/web/webtest"
)

type memStores struct {
	mu     sync.Mutex
	stores []*models.Store
	clock  time.Time
}

func (m *memStores) Insert(_ context.Context, s *models.Store) (*models.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := slug.Make(s.Name)
	s.Slug = base
	taken := 0
	for _, other := range m.stores {
		if other.Slug == base || strings.HasPrefix(other.Slug, base+"-") {
			taken++
		}
	}
	if taken > 0 {
		s.Slug = fmt.Sprintf("%s-%d", base, taken+1)
	}
	m.clock = m.clock.Add(time.Minute)
	s.ID = primitive.NewObjectID()
	s.Created = m.clock
	m.stores = append(m.stores, s)
	return s, nil
}

func (m *memStores) Update(_ context.Context, s *models.Store) (*models.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.stores {
		if cur.ID == s.ID {
			next := *cur
			next.Name, next.Description, next.Tags, next.Location = s.Name, s.Description, s.Tags, s.Location
			if s.Photo != "" {
				next.Photo = s.Photo
			}
			m.stores[i] = &next
			return &next, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStores) GetByID(_ context.Context, id string) (*models.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.stores {
		if s.ID.Hex() == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStores) GetBySlug(_ context.Context, sl string) (*models.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.stores {
		if s.Slug == sl {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStores) newestFirst() []models.Store {
	out := make([]models.Store, 0, len(m.stores))
	for _, s := range m.stores {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out
}

func (m *memStores) List(_ context.Context, skip, limit int64) ([]models.Store, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.newestFirst()
	if skip >= int64(len(all)) {
		return []models.Store{}, int64(len(all)), nil
	}
	end := min(skip+limit, int64(len(all)))
	return all[skip:end], int64(len(all)), nil
}

func (m *memStores) ListByTag(_ context.Context, tag string) ([]models.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Store{}
	for _, s := range m.newestFirst() {
		for _, t := range s.Tags {
			if tag == "" || t == tag {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *memStores) ListByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Store{}
	for _, s := range m.stores {
		for _, id := range ids {
			if s.ID == id {
				out = append(out, *s)
			}
		}
	}
	return out, nil
}

func (m *memStores) TagCounts(_ context.Context) ([]models.TagCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, s := range m.stores {
		for _, t := range s.Tags {
			counts[t]++
		}
	}
	out := []models.TagCount{}
	for t, n := range counts {
		out = append(out, models.TagCount{Tag: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func (m *memStores) Search(_ context.Context, q string) ([]models.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Store{}
	for _, s := range m.stores {
		if strings.Contains(strings.ToLower(s.Name+" "+s.Description), strings.ToLower(q)) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStores) Near(_ context.Context, lng, lat float64) ([]models.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Store{}
	for _, s := range m.stores {
		if s.Location.Coordinates == [2]float64{lng, lat} {
			out = append(out, *s)
		}
	}
	return out, nil
}

type memUsers struct {
	*webtest.Users
	mu sync.Mutex
}

func (m *memUsers) ToggleHeart(ctx context.Context, userID, storeID primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := m.GetUserByID(ctx, userID.Hex())
	if err != nil {
		return nil, err
	}
	next := *cur
	next.Hearts = nil
	found := false
	for _, id := range cur.Hearts {
		if id == storeID {
			found = true
			continue
		}
		next.Hearts = append(next.Hearts, id)
	}
	if !found {
		next.Hearts = append(next.Hearts, storeID)
	}
	if next.Hearts == nil {
		next.Hearts = []primitive.ObjectID{}
	}
	m.Put(&next)
	return &next, nil
}

type memReviews struct {
	mu      sync.Mutex
	reviews []models.Review
}

func (m *memReviews) CreateReview(_ context.Context, r *models.Review) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = fmt.Sprintf("r%d", len(m.reviews)+1)
	r.CreatedAt = time.Now()
	m.reviews = append(m.reviews, *r)
	return r, nil
}

func (m *memReviews) ListReviews(_ context.Context, storeID string) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Review{}
	for _, r := range m.reviews {
		if r.StoreID == storeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReviews) TopRated(_ context.Context, minReviews, limit int) ([]models.StoreRating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := map[string]*models.StoreRating{}
	for _, r := range m.reviews {
		sr, ok := sums[r.StoreID]
		if !ok {
			sr = &models.StoreRating{StoreID: r.StoreID}
			sums[r.StoreID] = sr
		}
		sr.AverageRating += float64(r.Rating)
		sr.ReviewCount++
	}
	out := []models.StoreRating{}
	for _, sr := range sums {
		if sr.ReviewCount >= minReviews {
			sr.AverageRating /= float64(sr.ReviewCount)
			out = append(out, *sr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AverageRating > out[j].AverageRating })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memPhotos struct {
	mu      sync.Mutex
	removed []string
}

func (m *memPhotos) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, name)
	return nil
}
