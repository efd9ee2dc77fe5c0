package web

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/go-chi/chi/v5"
)

// Static serves a directory of an fs.FS under a URL prefix.
type Static struct {
	fs     fs.FS
	dir    string
	prefix string
	log    platform.Logger
}

func NewStatic(assets fs.FS, dir, prefix string, log platform.Logger) *Static {
	if log == nil {
		log = platform.NewNoopLogger()
	}
	prefix = "/" + strings.Trim(prefix, "/")
	return &Static{fs: assets, dir: strings.Trim(dir, "/"), prefix: prefix, log: log}
}

// RegisterRoutes implements platform.HTTPModule.
func (s *Static) RegisterRoutes(r chi.Router) {
	if r == nil || s.fs == nil {
		return
	}
	sub, err := fs.Sub(s.fs, s.dir)
	if err != nil {
		s.log.Error("static: cannot create sub filesystem", "dir", s.dir, "error", err)
		return
	}

	pattern, strip := s.prefix+"/*", s.prefix+"/"
	if s.prefix == "/" {
		pattern, strip = "/*", "/"
	}
	s.log.Info("registering static files", "prefix", s.prefix, "dir", path.Join("/", s.dir))
	r.Handle(pattern, http.StripPrefix(strip, http.FileServer(http.FS(sub))))
}
