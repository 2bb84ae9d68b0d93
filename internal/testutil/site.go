package testutil

import (
	"path/filepath"
	"testing"
)

// IndexTemplate lists projects in order, one per line
const IndexTemplate = `<html><body>
{{range .projects}}<div class="project" data-rank="{{.Rank}}">{{.Name}} ({{join .Language ", "}})</div>
{{end}}</body></html>`

// ErrorTemplate shows the status code and message
const ErrorTemplate = `<html><body><h1>{{.status_code}}</h1><p>{{.error}}</p></body></html>`

// ProjectsJSON holds two projects whose keys sort opposite to their ranks
const ProjectsJSON = `{
  "a": {"name":"X","language":["Go"],"description":"d","implementation":"i","link":"http://x","image":"x.png","rank":2},
  "b": {"name":"Y","language":["Rust","C"],"description":"d","implementation":"i","link":"http://y","image":"y.png","rank":1}
}`

// PNG is a tiny fake image body
var PNG = []byte("\x89PNG\r\n\x1a\nfake-image-bytes")

// Site is a site tree written to a temporary directory
type Site struct {
	Root         string
	TemplatesDir string
	ProjectsFile string
}

// WriteSite creates a templates directory with index.html, error.html,
// projects.json and one asset in each static directory.
func WriteSite(t testing.TB) Site {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "templates")

	WriteFile(t, filepath.Join(dir, "index.html"), []byte(IndexTemplate))
	WriteFile(t, filepath.Join(dir, "error.html"), []byte(ErrorTemplate))
	WriteFile(t, filepath.Join(dir, "projects.json"), []byte(ProjectsJSON))
	WriteFile(t, filepath.Join(dir, "images", "x.png"), PNG)
	WriteFile(t, filepath.Join(dir, "css", "site.css"), []byte("body { color: #222; }\n"))
	WriteFile(t, filepath.Join(dir, "fonts", "mono.woff2"), []byte("wOF2fake"))
	// Outside every static root; must never be served
	WriteFile(t, filepath.Join(root, "secret.txt"), []byte("do not serve"))

	return Site{
		Root:         root,
		TemplatesDir: dir,
		ProjectsFile: filepath.Join(dir, "projects.json"),
	}
}
