package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/storefinder/internal/models"
)

//go:embed templates
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Page is the data every page template receives.
type Page struct {
	Title   string
	User    *models.User
	Flashes []Flash
	Path    string
	Data    any
}

// Renderer renders page templates wrapped in the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every embedded page with the layout and partials.
func NewRenderer() (*Renderer, error) {
	files, err := fs.Glob(templatesFS, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("glob templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templatesFS,
			"templates/layout.html",
			"templates/partials/*.html",
			file,
		)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".html")] = t
	}
	return &Renderer{pages: pages}, nil
}

// Render executes the named page.
func (r *Renderer) Render(name string, p Page) ([]byte, error) {
	t, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Static serves the embedded stylesheet and scripts.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

var funcs = template.FuncMap{
	"photo": func(name string) string {
		if name == "" {
			return "/static/store.svg"
		}
		return "/uploads/" + name
	},
	"truncateWords": func(s string, n int) string {
		words := strings.Fields(s)
		if len(words) <= n {
			return s
		}
		return strings.Join(words[:n], " ") + "…"
	},
	"join": strings.Join,
	"hearted": func(u *models.User, id primitive.ObjectID) bool {
		return u != nil && u.HasHeart(id)
	},
	"hasTag": func(tags []string, tag string) bool {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
		return false
	},
	"add":  func(a, b int) int { return a + b },
	"sub":  func(a, b int) int { return a - b },
	"date": func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"stars": func(n int) string {
		if n < 0 {
			n = 0
		}
		if n > 5 {
			n = 5
		}
		return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
	},
	"card": func(u *models.User, s models.Store) Card {
		return Card{User: u, Store: &s}
	},
}

// Card is the data of the store card partial.
type Card struct {
	User  *models.User
	Store *models.Store
}
