package item

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/aquamarinepk/cruddemo/internal/repository"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/blake2b"
)

const maxBodyBytes = 1 << 20

// Handler wires the JSON routes for items.
type Handler struct {
	service *Service
	log     platform.Logger
}

func NewHandler(service *Service, logger platform.Logger) *Handler {
	if logger == nil {
		logger = platform.NewNoopLogger()
	}
	return &Handler{service: service, log: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Delete("/", h.handleDeleteMany)
		r.Get("/count", h.handleCount)
		r.Post("/batch", h.handleCreateBatch)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Head("/", h.handleHead)
			r.Put("/", h.handleReplace)
			r.Patch("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
		})
	})
}

// PageMeta is the meta block of a paged list.
type PageMeta struct {
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if raw := q.Get("ids"); raw != "" {
		ids, err := parseIDList(raw)
		if err != nil {
			platform.Error(w, http.StatusBadRequest, "invalid_id", err.Error())
			return
		}
		items, err := h.service.ListByIDs(r.Context(), ids)
		if err != nil {
			h.handleDomainError(w, err, "list_failed")
			return
		}
		platform.Respond(w, http.StatusOK, items, nil, platform.CollectionLinksFor(ResourceType)...)
		return
	}

	pageable, err := parsePageable(q.Get("page"), q.Get("size"), q.Get("sort"))
	if err != nil {
		h.handleDomainError(w, err, "list_failed")
		return
	}
	page, err := h.service.List(r.Context(), pageable)
	if err != nil {
		h.handleDomainError(w, err, "list_failed")
		return
	}
	meta := PageMeta{Page: page.Number, Size: page.Size, TotalElements: page.TotalElements, TotalPages: page.TotalPages}
	links := platform.PageLinksFor(ResourceType, page.Number, page.Size, page.TotalPages, pageable.Sort.String())
	platform.Respond(w, http.StatusOK, page.Content, meta, links...)
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Count(r.Context())
	if err != nil {
		h.handleDomainError(w, err, "count_failed")
		return
	}
	platform.Respond(w, http.StatusOK, map[string]int64{"count": n}, nil)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		platform.Error(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleDomainError(w, err, "get_failed")
		return
	}

	tag := etag(item)
	w.Header().Set("ETag", tag)
	if etagMatches(r.Header.Get("If-None-Match"), tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	platform.RespondWithLinks(w, item)
}

func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ok, err := h.service.Exists(r.Context(), id)
	switch {
	case err != nil:
		w.WriteHeader(http.StatusInternalServerError)
	case !ok:
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !decode(w, r, &in) {
		return
	}
	item, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.handleDomainError(w, err, "create_failed")
		return
	}
	platform.RespondCreated(w, item)
}

func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var ins []Input
	if !decode(w, r, &ins) {
		return
	}
	if len(ins) == 0 || len(ins) > repository.MaxPageSize {
		platform.Error(w, http.StatusBadRequest, "invalid_payload",
			fmt.Sprintf("batch must hold 1 to %d items", repository.MaxPageSize))
		return
	}
	items, err := h.service.CreateMany(r.Context(), ins)
	if err != nil {
		h.handleDomainError(w, err, "create_failed")
		return
	}
	platform.Respond(w, http.StatusCreated, items, nil, platform.CollectionLinksFor(ResourceType)...)
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		platform.Error(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	var in Input
	if !decode(w, r, &in) {
		return
	}
	item, err := h.service.Replace(r.Context(), id, in)
	if err != nil {
		h.handleDomainError(w, err, "replace_failed")
		return
	}
	w.Header().Set("ETag", etag(item))
	platform.RespondWithLinks(w, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		platform.Error(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	var patch Patch
	if !decode(w, r, &patch) {
		return
	}
	item, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.handleDomainError(w, err, "update_failed")
		return
	}
	w.Header().Set("ETag", etag(item))
	platform.RespondWithLinks(w, item)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		platform.Error(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleDomainError(w, err, "delete_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteMany requires an explicit selector: ids=1,2 or all=true.
func (h *Handler) handleDeleteMany(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var err error
	switch {
	case q.Get("ids") != "":
		var ids []int64
		if ids, err = parseIDList(q.Get("ids")); err != nil {
			platform.Error(w, http.StatusBadRequest, "invalid_id", err.Error())
			return
		}
		err = h.service.DeleteMany(r.Context(), ids)
	case q.Get("all") == "true":
		err = h.service.DeleteAll(r.Context())
	default:
		platform.Error(w, http.StatusBadRequest, "missing_selector", "ids or all=true is required")
		return
	}
	if err != nil {
		h.handleDomainError(w, err, "delete_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var domainErrors = []struct {
	target  error
	status  int
	code    string
	message string
}{
	{repository.ErrNotFound, http.StatusNotFound, "not_found", "item not found"},
	{repository.ErrInvalidPage, http.StatusBadRequest, "invalid_page", ""},
	{repository.ErrInvalidSort, http.StatusBadRequest, "invalid_sort", ""},
	{repository.ErrNilEntity, http.StatusBadRequest, "invalid_payload", ""},
}

func (h *Handler) handleDomainError(w http.ResponseWriter, err error, code string) {
	var verrs platform.ValidationErrors
	if errors.As(err, &verrs) {
		platform.Error(w, http.StatusUnprocessableEntity, "validation_error", "item is invalid", verrs...)
		return
	}
	for _, e := range domainErrors {
		if errors.Is(err, e.target) {
			msg := e.message
			if msg == "" {
				msg = err.Error()
			}
			platform.Error(w, e.status, e.code, msg)
			return
		}
	}
	h.log.Error("item request failed", "code", code, "error", err)
	platform.Error(w, http.StatusInternalServerError, code, "internal error")
}

// decode reads a JSON body and answers 400 itself when it cannot.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		platform.Error(w, http.StatusBadRequest, "invalid_payload", "Malformed JSON payload")
		return false
	}
	return true
}

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}

func parseIDList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parsePageable(page, size, sort string) (repository.Pageable, error) {
	p, s := 0, 0
	var err error
	if page != "" {
		if p, err = strconv.Atoi(page); err != nil {
			return repository.Pageable{}, fmt.Errorf("%w: page %q", repository.ErrInvalidPage, page)
		}
	}
	if size != "" {
		if s, err = strconv.Atoi(size); err != nil || s == 0 {
			return repository.Pageable{}, fmt.Errorf("%w: size %q", repository.ErrInvalidPage, size)
		}
	}
	order, err := repository.ParseSort(sort)
	if err != nil {
		return repository.Pageable{}, err
	}
	pageable := repository.PageRequest(p, s, order)
	return pageable, pageable.Validate()
}

// etag hashes the JSON form of an item so any visible change yields a new
// tag.
func etag(item *Item) string {
	data, _ := json.Marshal(item)
	sum := blake2b.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func etagMatches(header, tag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == tag {
			return true
		}
	}
	return false
}
