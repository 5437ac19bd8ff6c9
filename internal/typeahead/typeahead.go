// Package typeahead models the search dropdown: which results are shown,
// which one is active, and how keys move between them. The browser script in
// web/static/app.js follows the same rules; the server renders the result
// markup through RenderResults.
package typeahead

import (
	"bytes"
	"html/template"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// Result is one store in the dropdown.
type Result struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Href is the link the result navigates to.
func (r Result) Href() string {
	return "/store/" + r.Slug
}

type Key int

const (
	KeyOther Key = iota
	KeyDown
	KeyUp
	KeyEnter
)

// ParseKey maps DOM KeyboardEvent.key names to Keys.
func ParseKey(name string) Key {
	switch name {
	case "ArrowDown", "Down":
		return KeyDown
	case "ArrowUp", "Up":
		return KeyUp
	case "Enter":
		return KeyEnter
	}
	return KeyOther
}

// Widget is the dropdown state machine that web/static/app.js implements in
// the browser. It is the reference model for that script: a change to the
// key handling or to stale-response handling lands here, with a test, first.
// The zero value is not usable; call New.
type Widget struct {
	query   string
	gen     uint64
	results []Result
	active  int
	visible bool
}

func New() *Widget {
	return &Widget{active: -1}
}

// Input records a new query. An empty query hides the dropdown and returns
// ok=false. Otherwise the caller should issue a search tagged with gen.
// Every call invalidates responses to earlier generations.
func (w *Widget) Input(q string) (gen uint64, ok bool) {
	w.gen++
	w.query = q
	if q == "" {
		w.visible = false
		w.results = nil
		w.active = -1
		return w.gen, false
	}
	return w.gen, true
}

// Deliver replaces the results with the response to generation gen.
// Responses to anything but the latest generation are dropped.
func (w *Widget) Deliver(gen uint64, results []Result) bool {
	if gen != w.gen || w.query == "" {
		return false
	}
	w.results = results
	w.active = -1
	w.visible = true
	return true
}

// Key applies a key press. It returns the link to follow when Enter is
// pressed on an active result.
func (w *Widget) Key(k Key) (href string, navigate bool) {
	n := len(w.results)
	if !w.visible || n == 0 {
		return "", false
	}
	switch k {
	case KeyDown:
		if w.active < 0 {
			w.active = 0
		} else {
			w.active = (w.active + 1) % n
		}
	case KeyUp:
		if w.active < 0 {
			w.active = n - 1
		} else {
			w.active = (w.active - 1 + n) % n
		}
	case KeyEnter:
		if w.active >= 0 {
			return w.results[w.active].Href(), true
		}
	}
	return "", false
}

// Active returns the index of the active result.
func (w *Widget) Active() (int, bool) {
	return w.active, w.active >= 0
}

func (w *Widget) Visible() bool { return w.visible }

func (w *Widget) Results() []Result { return w.results }

// HTML renders the current dropdown contents.
func (w *Widget) HTML() string {
	if !w.visible {
		return ""
	}
	return RenderResults(w.results, w.query)
}

var (
	resultsTmpl = template.Must(template.New("results").Parse(
		`{{range .Results}}<a href="{{.Href}}" class="search__result"><strong>{{.Name}}</strong></a>` +
			`{{else}}<div class="search__result">No results for {{.Query}} found!</div>{{end}}`))

	policy = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("a", "strong", "div")
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https")
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^search__result$`)).OnElements("a", "div")
	return p
}

// RenderResults returns the sanitized dropdown markup: one anchor per result,
// or a no-results notice naming q.
func RenderResults(results []Result, q string) string {
	var buf bytes.Buffer
	data := struct {
		Results []Result
		Query   string
	}{results, q}
	if err := resultsTmpl.Execute(&buf, data); err != nil {
		return ""
	}
	return policy.Sanitize(buf.String())
}
