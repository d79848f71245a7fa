package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const clientMissingHTML = `<!doctype html><html><head><title>Bookstore</title></head><body><p>The storefront client has not been built. Run the client build and restart the server.</p></body></html>`

// StaticFileServer serves the built single page client from dir. Unknown
// paths fall back to index.html so client side routes resolve.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			if strings.HasPrefix(r.URL.Path, "/assets/") {
				w.Header().Set("Cache-Control", "public, max-age=2592000")
			}
			http.ServeFile(w, r, path)
			return
		}

		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err == nil {
			w.Header().Set("Cache-Control", "no-cache")
			http.ServeFile(w, r, index)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(clientMissingHTML))
	})
}
