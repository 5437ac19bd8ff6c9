// Package webtest provides in-memory sessions and users for exercising
// web.App handlers with httptest.
package webtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/google/uuid"

	"github.com/ayush/storefinder/internal/models"
	"github.com/ayush/storefinder/internal/store"
	"github.com/ayush/storefinder/internal/web"
)

// Sessions is an in-memory web.Sessions that also records every flash.
type Sessions struct {
	mu       sync.Mutex
	users    map[string]string
	pending  map[string][]web.Flash
	messages []string
}

func NewSessions() *Sessions {
	return &Sessions{users: map[string]string{}, pending: map[string][]web.Flash{}}
}

func (s *Sessions) Create(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid := uuid.NewString()
	s.users[sid] = userID
	return sid, nil
}

func (s *Sessions) Get(_ context.Context, sid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[sid], nil
}

func (s *Sessions) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, sid)
	delete(s.pending, sid)
	return nil
}

func (s *Sessions) AddFlash(_ context.Context, sid string, f web.Flash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[sid] = append(s.pending[sid], f)
	s.messages = append(s.messages, f.Message)
	return nil
}

func (s *Sessions) PopFlashes(_ context.Context, sid string) ([]web.Flash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.pending[sid]
	delete(s.pending, sid)
	return f, nil
}

// Messages returns every flash message added so far, in order.
func (s *Sessions) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// UserOf returns the user id bound to sid.
func (s *Sessions) UserOf(sid string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[sid]
}

// LoginCookie binds u to a new session and returns the cookie to send.
func (s *Sessions) LoginCookie(u *models.User) *http.Cookie {
	sid, _ := s.Create(context.Background(), u.ID.Hex())
	return &http.Cookie{Name: web.SessionCookie, Value: sid}
}

// Users is an in-memory web.UserLoader.
type Users struct {
	mu   sync.Mutex
	byID map[string]*models.User
}

func NewUsers(users ...*models.User) *Users {
	u := &Users{byID: map[string]*models.User{}}
	for _, user := range users {
		u.Put(user)
	}
	return u
}

func (u *Users) Put(user *models.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.byID[user.ID.Hex()] = user
}

func (u *Users) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user, nil
}

// NewApp builds a web.App over the embedded templates.
func NewApp(sessions web.Sessions, users web.UserLoader) *web.App {
	r, err := web.NewRenderer()
	if err != nil {
		panic(err)
	}
	return web.New(web.Options{Sessions: sessions, Users: users, Renderer: r})
}

// SessionID returns the session cookie set on rec, if any.
func SessionID(rec *httptest.ResponseRecorder) string {
	for _, c := range rec.Result().Cookies() {
		if c.Name == web.SessionCookie {
			return c.Value
		}
	}
	return ""
}
