package http

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

const spaEntry = "index.html"

// staticSite serves the prebuilt frontend byte-for-byte. In production any
// unmatched non-API path gets the SPA entry document.
type staticSite struct {
	dir        string
	env        string
	production bool
	files      http.Handler
	logger     *zap.Logger
}

func newStaticSite(dir, env string, production bool, logger *zap.Logger) *staticSite {
	return &staticSite{
		dir:        dir,
		env:        env,
		production: production,
		files:      http.FileServer(http.Dir(dir)),
		logger:     logger,
	}
}

func (s *staticSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		if s.hasFile(r.URL.Path) {
			s.files.ServeHTTP(w, r)
			return
		}
		if s.production && !isAPIPath(r.URL.Path) && r.URL.Path != DiagnosticPath {
			s.serveEntry(w, r)
			return
		}
	}
	http.NotFound(w, r)
}

// hasFile reports whether urlPath names a file, or a directory holding an index document.
func (s *staticSite) hasFile(urlPath string) bool {
	if s.dir == "" {
		return false
	}
	name := filepath.Join(s.dir, filepath.FromSlash(path.Clean("/"+urlPath)))
	info, err := os.Stat(name)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return true
	}
	index, err := os.Stat(filepath.Join(name, spaEntry))
	return err == nil && !index.IsDir()
}

func (s *staticSite) serveEntry(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(filepath.Join(s.dir, spaEntry))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("could not open SPA entry", zap.Error(err))
		}
		http.Error(w, "frontend build not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "frontend build not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, spaEntry, info.ModTime(), f)
}

type diagnosticsReport struct {
	DistPath string   `json:"dist_path"`
	Exists   bool     `json:"exists"`
	Files    []string `json:"files"`
	Env      string   `json:"env"`
}

// diagnostics describes the static directory. It exists for deployment debugging only.
func (s *staticSite) diagnostics(w http.ResponseWriter, r *http.Request) {
	d := diagnosticsReport{DistPath: s.dir, Files: []string{}, Env: s.env}
	if abs, err := filepath.Abs(s.dir); err == nil {
		d.DistPath = abs
	}

	entries, err := os.ReadDir(s.dir)
	if err == nil {
		d.Exists = true
		for _, e := range entries {
			d.Files = append(d.Files, e.Name())
		}
		sort.Strings(d.Files)
	}
	writeJSON(w, http.StatusOK, d)
}
