package item

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/aquamarinepk/cruddemo/internal/platform/web"
	"github.com/aquamarinepk/cruddemo/internal/repository"
	"github.com/go-chi/chi/v5"
)

//go:embed assets
var assets embed.FS

// Page serves the HTML view of the catalogue. HTMX requests receive only
// the table fragment.
type Page struct {
	service   *Service
	templates *web.Templates
	static    *web.Static
	log       platform.Logger
}

func NewPage(service *Service, logger platform.Logger) *Page {
	if logger == nil {
		logger = platform.NewNoopLogger()
	}
	return &Page{
		service:   service,
		templates: web.NewTemplates(assets, web.WithBasePath("assets/templates"), web.WithTemplatesLogger(logger)),
		static:    web.NewStatic(assets, "assets/static", "/static", logger),
		log:       logger,
	}
}

// Start parses the embedded templates.
func (p *Page) Start(ctx context.Context) error {
	return p.templates.Start(ctx)
}

func (p *Page) RegisterRoutes(r chi.Router) {
	r.Get("/", p.handleIndex)
	p.static.RegisterRoutes(r)
}

type indexView struct {
	Title      string
	Items      []*Item
	Number     int
	TotalPages int
	Total      int64
	Prev       string
	Next       string
}

func (p *Page) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageable, err := parsePageable(q.Get("page"), q.Get("size"), q.Get("sort"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, err := p.service.List(r.Context(), pageable)
	if errors.Is(err, repository.ErrInvalidSort) || errors.Is(err, repository.ErrInvalidPage) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		p.log.Error("render items page", "error", err)
		http.Error(w, "cannot list items", http.StatusInternalServerError)
		return
	}

	view := indexView{
		Title:      "Items",
		Items:      page.Content,
		Number:     page.Number + 1,
		TotalPages: page.TotalPages,
		Total:      page.TotalElements,
	}
	if page.HasPrevious() {
		view.Prev = pageURL(page.Number-1, page.Size, q.Get("sort"))
	}
	if page.HasNext() {
		view.Next = pageURL(page.Number+1, page.Size, q.Get("sort"))
	}

	tmpl, err := p.templates.GetByResource(ResourceType, "list")
	if err != nil {
		p.log.Error("items template missing", "error", err)
		http.Error(w, "template unavailable", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if web.IsHTMX(r) {
		block = "items-table"
		web.SetHTMXPushURL(w, pageURL(page.Number, page.Size, q.Get("sort")))
		web.SetHTMXTrigger(w, "itemsLoaded", map[string]int64{"total": page.TotalElements})
	}
	if err := web.Render(w, tmpl, block, view); err != nil {
		p.log.Error("render items page", "error", err)
		http.Error(w, "cannot render page", http.StatusInternalServerError)
	}
}

func pageURL(page, size int, sort string) string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("size", strconv.Itoa(size))
	if sort != "" {
		v.Set("sort", sort)
	}
	return fmt.Sprintf("/?%s", v.Encode())
}
