// Package web renders the server-side pages of the application.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"slices"

	"github.com/cyberchip-wang/s3uploader-ui/internal/explorer"
	"github.com/cyberchip-wang/s3uploader-ui/internal/paths"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Application header shown on every page.
const (
	AppTitle       = "Application"
	AppDescription = "Web application to upload files to S3"
)

// Page names accepted by Renderer.Render.
const (
	PageLogin  = "login"
	PageUpload = "upload"
	PageFiles  = "files"
)

// NavItem is one navigation link.
type NavItem struct {
	Label  string
	Path   string
	Active bool
}

// Views lists the navigable views in display order.
func Views() []NavItem {
	items := []NavItem{{Label: "Upload", Path: "/upload"}}
	for _, f := range paths.FolderTypes {
		items = append(items, NavItem{Label: f.Label(), Path: "/files/" + string(f)})
	}
	return items
}

// Page holds the fields every page renders.
type Page struct {
	Title       string
	Description string
	Heading     string
	Username    string
	Banner      string
	ActivePath  string
	Nav         []NavItem
}

// NewPage returns the page chrome for a signed-in user with activePath
// highlighted. An empty username renders no navigation.
func NewPage(heading, username, banner, activePath string) Page {
	p := Page{
		Title:       AppTitle,
		Description: AppDescription,
		Heading:     heading,
		Username:    username,
		Banner:      banner,
		ActivePath:  activePath,
	}
	if username != "" {
		p.Nav = Views()
		for i := range p.Nav {
			p.Nav[i].Active = p.Nav[i].Path == activePath
		}
	}
	return p
}

// LoginPage is the sign-in form.
type LoginPage struct {
	Page
	Error string
	Next  string
}

// UploadPage is the upload form.
type UploadPage struct {
	Page
	Message string
	Error   string
	MaxSize string
}

// FilesPage is one folder listing.
type FilesPage struct {
	Page
	Folder paths.FolderType
	State  explorer.State
}

var funcs = template.FuncMap{
	"selected": func(key string, selected []string) bool {
		return slices.Contains(selected, key)
	},
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page with the shared layout.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{PageLogin, PageUpload, PageFiles} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page name with data. The page is rendered to a buffer
// first so a template error never produces a partial response.
func (r *Renderer) Render(w http.ResponseWriter, code int, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the embedded stylesheet under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
