package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/gertd/go-pluralize"
)

const (
	defaultBasePath  = "templates"
	defaultSharedDir = "shared"
	defaultExtension = ".html"
)

// Templates parses page templates from an fs.FS. Every page is parsed
// together with the files in the shared directory so layouts and partials
// are available to it. Parsing happens on Start.
type Templates struct {
	fs         fs.FS
	log        platform.Logger
	basePath   string
	sharedDir  string
	extension  string
	funcs      template.FuncMap
	pluralizer *pluralize.Client

	mu    sync.RWMutex
	pages map[string]*template.Template
}

type TemplatesOption func(*Templates)

func NewTemplates(assets fs.FS, opts ...TemplatesOption) *Templates {
	t := &Templates{
		fs:         assets,
		log:        platform.NewNoopLogger(),
		basePath:   defaultBasePath,
		sharedDir:  defaultSharedDir,
		extension:  defaultExtension,
		funcs:      template.FuncMap{},
		pluralizer: pluralize.NewClient(),
		pages:      make(map[string]*template.Template),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func WithTemplatesLogger(log platform.Logger) TemplatesOption {
	return func(t *Templates) {
		if log != nil {
			t.log = log
		}
	}
}

func WithBasePath(base string) TemplatesOption {
	return func(t *Templates) {
		if base != "" {
			t.basePath = strings.Trim(base, "/")
		}
	}
}

// WithFuncs adds template functions. They must be installed before Start.
func WithFuncs(funcs template.FuncMap) TemplatesOption {
	return func(t *Templates) {
		for k, v := range funcs {
			t.funcs[k] = v
		}
	}
}

func (t *Templates) Start(context.Context) error {
	if err := t.parse(); err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	t.log.Info("templates ready", "count", len(t.pages))
	return nil
}

// Get returns the page parsed from the file name.
func (t *Templates) Get(name string) (*template.Template, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tmpl, ok := t.pages[name]
	if !ok {
		return nil, fmt.Errorf("template %s not found", name)
	}
	return tmpl, nil
}

// GetByResource resolves "list" to the plural resource file and any
// other action to "<action>-<resource>".
func (t *Templates) GetByResource(resource, action string) (*template.Template, error) {
	resource, action = strings.TrimSpace(resource), strings.TrimSpace(action)
	if resource == "" || action == "" {
		return nil, errors.New("resource and action required")
	}
	if action == "list" {
		return t.Get(t.pluralizer.Plural(resource) + t.extension)
	}
	return t.Get(fmt.Sprintf("%s-%s%s", action, resource, t.extension))
}

// Render executes block of tmpl into a buffer first so a failing template
// never leaves a half-written response.
func Render(w http.ResponseWriter, tmpl *template.Template, block string, data any) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, block, data); err != nil {
		return fmt.Errorf("render %s: %w", block, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

func (t *Templates) parse() error {
	if t.fs == nil {
		return errors.New("template filesystem not configured")
	}

	shared, err := t.files(path.Join(t.basePath, t.sharedDir))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading shared templates: %w", err)
	}
	pages, err := t.files(t.basePath)
	if err != nil {
		return fmt.Errorf("reading template base path %s: %w", t.basePath, err)
	}
	if len(pages) == 0 {
		return errors.New("no templates found")
	}

	parsed := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		name := path.Base(page)
		tmpl, err := template.New(name).Funcs(t.funcs).ParseFS(t.fs, append([]string{page}, shared...)...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		parsed[name] = tmpl
		t.log.Debug("loaded template", "name", name)
	}

	t.mu.Lock()
	t.pages = parsed
	t.mu.Unlock()
	return nil
}

// files lists template files directly under dir in a stable order.
func (t *Templates) files(dir string) ([]string, error) {
	entries, err := fs.ReadDir(t.fs, dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), t.extension) {
			out = append(out, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
