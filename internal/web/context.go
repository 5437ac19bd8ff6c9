// Package web holds the request pipeline shared by every page and API handler:
// a per-request Context, ordered Steps that may stop with a Response, and the
// HTML renderer.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/ayush/storefinder/internal/models"
	"github.com/ayush/storefinder/internal/store"
)

const (
	SessionCookie = "session_id"
	SessionTTL    = 24 * time.Hour
)

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Sessions persists session identity and pending flashes.
type Sessions interface {
	Create(ctx context.Context, userID string) (string, error)
	Get(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
	AddFlash(ctx context.Context, sessionID string, f Flash) error
	PopFlashes(ctx context.Context, sessionID string) ([]Flash, error)
}

// UserLoader resolves the user bound to a session.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Context is the state of one request as it moves through its steps.
type Context struct {
	Writer    http.ResponseWriter
	Request   *http.Request
	SessionID string
	User      *models.User

	// Photo is the generated file name of a photo stored by an earlier step.
	Photo string

	app *App
}

// Ctx returns the request's context.Context.
func (c *Context) Ctx() context.Context {
	return c.Request.Context()
}

// Param returns a chi URL parameter.
func (c *Context) Param(name string) string {
	return chi.URLParam(c.Request, name)
}

// Logger returns the request-scoped logger.
func (c *Context) Logger() *zerolog.Logger {
	return hlog.FromRequest(c.Request)
}

// Flash queues a notice for the next rendered page. Storage failures are logged.
func (c *Context) Flash(kind, message string) {
	if err := c.app.sessions.AddFlash(c.Ctx(), c.SessionID, Flash{Kind: kind, Message: message}); err != nil {
		c.Logger().Error().Err(err).Str("kind", kind).Msg("add flash")
	}
}

// Login binds user to a fresh session id and sets the cookie.
func (c *Context) Login(user *models.User) error {
	sid, err := c.app.sessions.Create(c.Ctx(), user.ID.Hex())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if c.SessionID != "" {
		_ = c.app.sessions.Delete(c.Ctx(), c.SessionID)
	}
	c.SessionID = sid
	c.User = user
	c.app.setCookie(c.Writer, sid)
	return nil
}

// Logout drops the session and starts an anonymous one.
func (c *Context) Logout() error {
	if err := c.app.sessions.Delete(c.Ctx(), c.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	c.User = nil
	c.SessionID = uuid.NewString()
	c.app.setCookie(c.Writer, c.SessionID)
	return nil
}

// Step is one stage of a request. A nil Response means continue with the next step.
type Step func(c *Context) Response

// App runs step chains with the shared session, user and rendering services.
type App struct {
	sessions      Sessions
	users         UserLoader
	renderer      *Renderer
	secureCookies bool
}

// Options configures an App.
type Options struct {
	Sessions      Sessions
	Users         UserLoader
	Renderer      *Renderer
	SecureCookies bool
}

func New(opts Options) *App {
	return &App{
		sessions:      opts.Sessions,
		users:         opts.Users,
		renderer:      opts.Renderer,
		secureCookies: opts.SecureCookies,
	}
}

// Handle runs steps in order until one returns a Response.
func (a *App) Handle(steps ...Step) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := a.newContext(w, r)
		if err != nil {
			Fail(err).Respond(c)
			return
		}
		for _, step := range steps {
			if res := step(c); res != nil {
				res.Respond(c)
				return
			}
		}
		Fail(errors.New("request produced no response")).Respond(c)
	}
}

func (a *App) newContext(w http.ResponseWriter, r *http.Request) (*Context, error) {
	c := &Context{Writer: w, Request: r, app: a}

	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		c.SessionID = uuid.NewString()
		a.setCookie(w, c.SessionID)
		return c, nil
	}
	c.SessionID = cookie.Value

	userID, err := a.sessions.Get(r.Context(), c.SessionID)
	if err != nil {
		return c, fmt.Errorf("load session: %w", err)
	}
	if userID == "" {
		return c, nil
	}

	user, err := a.users.GetUserByID(r.Context(), userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c, nil
	case err != nil:
		return c, fmt.Errorf("load session user: %w", err)
	}
	c.User = user
	return c, nil
}

// setCookie replaces any session cookie already queued on w, so a response
// never carries two session ids.
func (a *App) setCookie(w http.ResponseWriter, sid string) {
	h := w.Header()
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, SessionCookie+"=") {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL / time.Second),
	})
}
