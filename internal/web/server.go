// Package web serves the status page. Dir overrides the built-in page
// with files from disk.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var static embed.FS

type Server struct {
	Dir string
}

func (s *Server) Handler() http.Handler {
	var root http.FileSystem
	if s.Dir != "" {
		root = http.Dir(s.Dir)
	} else {
		sub, err := fs.Sub(static, "static")
		if err != nil {
			panic(err)
		}
		root = http.FS(sub)
	}
	files := http.FileServer(root)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		files.ServeHTTP(w, r)
	})
}
