package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"spotify-dupe-finder/internal/spotify"
)

// Templates manages HTML template rendering.
type Templates struct {
	pages map[string]*template.Template
}

// NewTemplates loads page templates and layouts from the given filesystem.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{pages: make(map[string]*template.Template)}

	layouts, err := fs.Glob(templatesFS, "layouts/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding layouts: %w", err)
	}

	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding pages: %w", err)
	}

	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")

		files := append([]string{page}, layouts...)
		tmpl, err := template.New(name).ParseFS(templatesFS, files...)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		t.pages[name] = tmpl
	}

	return t, nil
}

// Render renders a page template inside the base layout.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

// PageData contains common data passed to all page templates.
type PageData struct {
	Title string
}

// HomePageData contains data for the landing page template.
type HomePageData struct {
	PageData
	Authenticated bool
}

// MePageData contains data for the profile page template.
type MePageData struct {
	PageData
	User         *spotify.User
	AccessToken  string
	RefreshToken string
	Duplicates   []DuplicateRow
}
