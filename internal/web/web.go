// Package web renders the study pages served next to the JSON API.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"flash-quiz/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Page names accepted by Render.
const (
	PageIndex   = "index"
	PagePage2   = "page2"
	PageLoading = "loading"
	PagePerson  = "person"
	PageGame    = "game"
	PageError   = "error"
)

// GameData feeds the game page.
type GameData struct {
	Title      string
	DeckID     string
	Flashcards []models.Flashcard
	Quiz       []models.QuizQuestion
	Warnings   []string
}

// PersonData feeds the character picker.
type PersonData struct {
	Characters []string
}

// ErrorData feeds the error page.
type ErrorData struct {
	Title   string
	Message string
}

// DefaultCharacters are offered on the person page.
var DefaultCharacters = []string{"Ghost", "Pumpkin", "Witch", "Bat"}

// Pages holds one parsed template set per page, each sharing the layout.
type Pages struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// New parses the embedded templates.
func New() (*Pages, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	p := &Pages{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(file, "templates/"), ".html")
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		p.pages[name] = tmpl
	}
	return p, nil
}

// MustNew is New for package-level wiring and tests.
func MustNew() *Pages {
	p, err := New()
	if err != nil {
		panic(err)
	}
	return p
}

// Render writes page with status. The page is rendered to a buffer first so
// a template error never leaves a half-written response.
func (p *Pages) Render(w http.ResponseWriter, status int, page string, data any) error {
	tmpl, ok := p.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Has reports whether page is known.
func (p *Pages) Has(page string) bool {
	_, ok := p.pages[page]
	return ok
}
