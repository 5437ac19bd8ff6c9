package web

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Response ends a request.
type Response interface {
	Respond(c *Context)
}

type redirect struct {
	url string
}

// Redirect sends the browser to url with 302 Found.
func Redirect(url string) Response {
	return redirect{url: url}
}

// RedirectBack sends the browser back to the referring page, or home.
func RedirectBack() Response {
	return redirect{}
}

func (r redirect) Respond(c *Context) {
	url := r.url
	if url == "" {
		url = c.Request.Referer()
	}
	if url == "" {
		url = "/"
	}
	http.Redirect(c.Writer, c.Request, url, http.StatusFound)
}

type page struct {
	status int
	name   string
	title  string
	data   any
}

// Render renders the named page template with status 200.
func Render(name, title string, data any) Response {
	return page{status: http.StatusOK, name: name, title: title, data: data}
}

// RenderStatus renders the named page template with the given status.
func RenderStatus(status int, name, title string, data any) Response {
	return page{status: status, name: name, title: title, data: data}
}

func (p page) Respond(c *Context) {
	flashes, err := c.app.sessions.PopFlashes(c.Ctx(), c.SessionID)
	if err != nil {
		c.Logger().Error().Err(err).Msg("pop flashes")
	}
	body, err := c.app.renderer.Render(p.name, Page{
		Title:   p.title,
		User:    c.User,
		Flashes: flashes,
		Path:    c.Request.URL.Path,
		Data:    p.data,
	})
	if err != nil {
		c.Logger().Error().Err(err).Str("template", p.name).Msg("render page")
		http.Error(c.Writer, "internal server error", http.StatusInternalServerError)
		return
	}
	c.Writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Writer.WriteHeader(p.status)
	_, _ = c.Writer.Write(body)
}

type jsonResponse struct {
	status int
	v      any
}

// JSON writes v as a JSON body.
func JSON(status int, v any) Response {
	return jsonResponse{status: status, v: v}
}

func (j jsonResponse) Respond(c *Context) {
	writeJSON(c.Writer, j.status, j.v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type blob struct {
	status      int
	contentType string
	data        []byte
}

// Blob writes raw bytes with the given content type.
func Blob(status int, contentType string, data []byte) Response {
	return blob{status: status, contentType: contentType, data: data}
}

func (b blob) Respond(c *Context) {
	c.Writer.Header().Set("Content-Type", b.contentType)
	c.Writer.WriteHeader(b.status)
	_, _ = c.Writer.Write(b.data)
}

type failure struct {
	err error
}

// Fail reports err with the status carried by an *Error, or 500.
func Fail(err error) Response {
	return failure{err: err}
}

// NotFound renders the not-found page.
func NotFound() Response {
	return failure{err: ErrNotFound}
}

func (f failure) Respond(c *Context) {
	status := StatusOf(f.err)
	msg := PublicMessage(f.err)

	ev := c.Logger().Warn()
	if status >= http.StatusInternalServerError {
		ev = c.Logger().Error()
	}
	ev.Err(f.err).Int("status", status).Msg("request failed")

	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		writeJSON(c.Writer, status, map[string]string{"error": msg})
		return
	}
	name := "error"
	if status == http.StatusNotFound {
		name = "notfound"
	}
	page{status: status, name: name, title: http.StatusText(status), data: ErrorView{Status: status, Message: msg}}.Respond(c)
}
