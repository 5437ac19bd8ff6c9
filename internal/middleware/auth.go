package middleware

import (
	"net/http"
	"strings"

	"github.com/ayush/storefinder/internal/web"
)

// IsLoggedIn lets authenticated requests through. Page requests from anonymous
// users get a notice and go to the login page; API requests get a 401.
func IsLoggedIn(c *web.Context) web.Response {
	if c.User != nil {
		return nil
	}
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return web.Fail(web.ErrNoSession)
	}
	c.Flash(web.FlashError, "Oops you must be logged in to do that!")
	return web.Redirect("/login")
}

// ConfirmedPasswords requires the password and password-confirm fields to match.
func ConfirmedPasswords(c *web.Context) web.Response {
	if err := c.ParseForm(); err != nil {
		return web.Fail(web.NewError(http.StatusBadRequest, "Invalid form submission"))
	}
	form := c.Request.PostForm
	if form.Get("password") == form.Get("password-confirm") {
		return nil
	}
	c.Flash(web.FlashError, "Passwords do not match!")
	return web.RedirectBack()
}
