package server

import (
	"net/http"
	"path"
	"path/filepath"
)

// staticHandler serves the client build from dir. Paths that do not name a
// file fall back to index.html so client-side routes resolve. Methods other
// than GET and HEAD go to notFound.
func staticHandler(dir string, notFound http.HandlerFunc) http.Handler {
	root := http.Dir(dir)
	files := http.FileServer(root)
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			notFound(w, r)
			return
		}
		if f, err := root.Open(path.Clean("/" + r.URL.Path)); err == nil {
			info, statErr := f.Stat()
			_ = f.Close()
			if statErr == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}
		http.ServeFile(w, r, index)
	})
}
