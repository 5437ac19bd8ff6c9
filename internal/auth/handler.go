package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/storefinder/internal/mail"
	"github.com/ayush/storefinder/internal/metrics"
	"github.com/ayush/storefinder/internal/models"
	"github.com/ayush/storefinder/internal/store"
	"github.com/ayush/storefinder/internal/web"
)

const (
	msgResetSent    = "You have been emailed a password reset link."
	msgResetInvalid = "Password reset is invalid or has expired"
)

// UserStore defines the user persistence the account flows need.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, hashedPw string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, name, email string) (*models.User, error)
	SetResetToken(ctx context.Context, id primitive.ObjectID, token string, expires time.Time) error
	ResetPassword(ctx context.Context, id primitive.ObjectID, token, hashedPw string) (*models.User, error)
}

// Mailer delivers mail in the background.
type Mailer interface {
	SendAsync(ctx context.Context, msg mail.Message)
}

// ResetEmail is the data of the password-reset mail template.
type ResetEmail struct {
	Name     string
	Host     string
	ResetURL string
}

// Handler holds the login, registration, account and password reset steps.
type Handler struct {
	users  UserStore
	mailer Mailer
	now    func() time.Time
	cost   int
}

func NewHandler(users UserStore, mailer Mailer) *Handler {
	return &Handler{users: users, mailer: mailer, now: time.Now, cost: bcrypt.DefaultCost}
}

func (h *Handler) LoginForm(c *web.Context) web.Response {
	return web.Render("login", "Login", nil)
}

// Login checks the credentials and binds the user to a new session.
func (h *Handler) Login(c *web.Context) web.Response {
	var f models.LoginForm
	if err := c.Bind(&f); err != nil {
		return h.failedLogin(c)
	}
	user, err := h.users.GetUserByEmail(c.Ctx(), f.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return h.failedLogin(c)
	case err != nil:
		return web.Fail(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(f.Password)) != nil {
		return h.failedLogin(c)
	}
	if err := c.Login(user); err != nil {
		return web.Fail(err)
	}
	c.Flash(web.FlashSuccess, "You are now logged in!")
	return web.Redirect("/")
}

func (h *Handler) failedLogin(c *web.Context) web.Response {
	c.Flash(web.FlashError, "Failed Login!")
	return web.Redirect("/login")
}

func (h *Handler) Logout(c *web.Context) web.Response {
	if err := c.Logout(); err != nil {
		return web.Fail(err)
	}
	c.Flash(web.FlashSuccess, "You are now logged out!")
	return web.Redirect("/")
}

func (h *Handler) RegisterForm(c *web.Context) web.Response {
	return web.Render("register", "Register", nil)
}

// Register creates the account and logs it in.
func (h *Handler) Register(c *web.Context) web.Response {
	var f models.RegisterForm
	if err := c.Bind(&f); err != nil {
		if res := c.Invalid(err); res != nil {
			return res
		}
		return web.Fail(err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(f.Password), h.cost)
	if err != nil {
		return web.Fail(fmt.Errorf("hash password: %w", err))
	}
	user, err := h.users.CreateUser(c.Ctx(), f.Name, f.Email, string(hashed))
	switch {
	case errors.Is(err, store.ErrDuplicate):
		c.Flash(web.FlashError, "A user with the given email is already registered")
		return web.Redirect("/register")
	case err != nil:
		return web.Fail(err)
	}
	if err := c.Login(user); err != nil {
		return web.Fail(err)
	}
	c.Logger().Info().Str("user_id", user.ID.Hex()).Msg("user registered")
	c.Flash(web.FlashSuccess, "You are now logged in!")
	return web.Redirect("/")
}

func (h *Handler) Account(c *web.Context) web.Response {
	return web.Render("account", "Edit Your Account", nil)
}

func (h *Handler) UpdateAccount(c *web.Context) web.Response {
	var f models.AccountForm
	if err := c.Bind(&f); err != nil {
		if res := c.Invalid(err); res != nil {
			return res
		}
		return web.Fail(err)
	}
	user, err := h.users.UpdateProfile(c.Ctx(), c.User.ID, f.Name, f.Email)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		c.Flash(web.FlashError, "That email is already in use!")
		return web.RedirectBack()
	case err != nil:
		return web.Fail(err)
	}
	c.User = user
	c.Flash(web.FlashSuccess, "Updated the profile!")
	return web.RedirectBack()
}

// Forgot issues a reset token and mails the link. Known and unknown
// addresses get the same notice and redirect.
func (h *Handler) Forgot(c *web.Context) web.Response {
	if err := c.ParseForm(); err != nil {
		return web.Fail(web.NewError(http.StatusBadRequest, "Invalid form submission"))
	}
	email := c.Request.PostForm.Get("email")

	user, err := h.users.GetUserByEmail(c.Ctx(), email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.Flash(web.FlashSuccess, msgResetSent)
		return web.Redirect("/login")
	case err != nil:
		return web.Fail(err)
	}

	token, err := NewResetToken()
	if err != nil {
		return web.Fail(err)
	}
	if err := h.users.SetResetToken(c.Ctx(), user.ID, token, h.now().Add(ResetWindow)); err != nil {
		return web.Fail(err)
	}
	metrics.PasswordResets.WithLabelValues("requested").Inc()

	resetURL := fmt.Sprintf("http://%s/account/reset/%s", c.Request.Host, token)
	h.mailer.SendAsync(c.Ctx(), mail.Message{
		To:       user.Email,
		Subject:  "Password Reset",
		Template: "password-reset",
		Data:     ResetEmail{Name: user.Name, Host: c.Request.Host, ResetURL: resetURL},
	})

	c.Flash(web.FlashSuccess, msgResetSent)
	return web.Redirect("/login")
}

// ResetForm shows the new-password form for a live token.
func (h *Handler) ResetForm(c *web.Context) web.Response {
	token := c.Param("token")
	if _, err := h.users.GetUserByResetToken(c.Ctx(), token, h.now()); err != nil {
		return h.resetRejected(c, err)
	}
	return web.Render("reset", "Reset your Password", token)
}

// ResetPassword sets the new password, clears the token and logs the user in.
// The password-confirm check runs as an earlier step.
func (h *Handler) ResetPassword(c *web.Context) web.Response {
	token := c.Param("token")
	user, err := h.users.GetUserByResetToken(c.Ctx(), token, h.now())
	if err != nil {
		return h.resetRejected(c, err)
	}

	if err := c.ParseForm(); err != nil {
		return web.Fail(web.NewError(http.StatusBadRequest, "Invalid form submission"))
	}
	password := c.Request.PostForm.Get("password")
	if password == "" {
		c.Flash(web.FlashError, "You must supply a password!")
		return web.RedirectBack()
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return web.Fail(fmt.Errorf("hash password: %w", err))
	}

	updated, err := h.users.ResetPassword(c.Ctx(), user.ID, token, string(hashed))
	if err != nil {
		return h.resetRejected(c, err)
	}
	if err := c.Login(updated); err != nil {
		return web.Fail(err)
	}
	metrics.PasswordResets.WithLabelValues("completed").Inc()
	c.Flash(web.FlashSuccess, "Nice! Your password has been reset! You are now logged in!")
	return web.Redirect("/")
}

func (h *Handler) resetRejected(c *web.Context, err error) web.Response {
	if !errors.Is(err, store.ErrNotFound) {
		return web.Fail(err)
	}
	metrics.PasswordResets.WithLabelValues("rejected").Inc()
	c.Flash(web.FlashError, msgResetInvalid)
	return web.Redirect("/login")
}
