package api

import (
	"net/http"
	"os"
	"path/filepath"
)

// StaticHandler serves the doc console assets from ./static, if present.
// /docs falls back to a CDN script when the local copy is missing, so an
// empty static dir only degrades /console.
func (s *Server) StaticHandler(w http.ResponseWriter, r *http.Request) {
	switch name := filepath.Base(r.URL.Path); name {
	case "redoc.standalone.js", "swagger-ui-bundle.js", "swagger-ui-standalone-preset.js", "swagger-ui.css":
		p := filepath.Join("static", name)
		if _, err := os.Stat(p); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, p)
	default:
		http.NotFound(w, r)
	}
}
