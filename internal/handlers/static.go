package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
)

// StaticAssets serves files from one directory. Lookups go through os.Root,
// so neither ".." segments nor symlinks can reach outside the directory.
// Directories are never listed.
type StaticAssets struct {
	dir   string
	pages *ErrorPages
}

// NewStaticAssets creates a StaticAssets serving dir
func NewStaticAssets(dir string, pages *ErrorPages) *StaticAssets {
	return &StaticAssets{dir: dir, pages: pages}
}

// ServeHTTP serves the file named by the route's wildcard
func (s *StaticAssets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := chi.URLParam(r, "*")
	// chi routes on RawPath when the request used unusual escaping
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(rest)
		if err != nil {
			s.pages.NotFound(w, r)
			return
		}
		rest = unescaped
	}

	name, ok := cleanAssetPath(rest)
	if !ok {
		s.pages.NotFound(w, r)
		return
	}

	root, err := os.OpenRoot(s.dir)
	if err != nil {
		s.pages.NotFound(w, r)
		return
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.pages.logger.Debug("static asset rejected", "dir", s.dir, "name", name, "error", err)
		}
		s.pages.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.pages.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// cleanAssetPath turns a URL wildcard into a slash-separated name relative
// to the asset root. Anything that would climb out of the root is rejected.
func cleanAssetPath(p string) (string, bool) {
	if p == "" || strings.ContainsRune(p, 0) || strings.Contains(p, `\`) {
		return "", false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" || name == "." {
		return "", false
	}
	return name, true
}
