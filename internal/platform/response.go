package platform

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gertd/go-pluralize"
)

var pluralizer = pluralize.NewClient()

// Standard link relations.
const (
	RelSelf       = "self"
	RelCollection = "collection"
	RelCreate     = "create"
	RelUpdate     = "update"
	RelDelete     = "delete"
	RelFirst      = "first"
	RelLast       = "last"
	RelNext       = "next"
	RelPrev       = "prev"
)

// Link is a HATEOAS link in a JSON envelope.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// SuccessResponse is the envelope for successful responses.
type SuccessResponse struct {
	Data  any    `json:"data"`
	Meta  any    `json:"meta,omitempty"`
	Links []Link `json:"links,omitempty"`
}

// ErrorPayload is the body of an error envelope.
type ErrorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details []ValidationError `json:"details,omitempty"`
}

// ErrorResponse is the envelope for error responses.
type ErrorResponse struct {
	Error ErrorPayload `json:"error"`
}

// Respond writes data in the success envelope. 204 writes no body.
func Respond(w http.ResponseWriter, code int, data, meta any, links ...Link) {
	if code == http.StatusNoContent {
		w.WriteHeader(code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(SuccessResponse{Data: data, Meta: meta, Links: links})
}

// Error writes an error envelope with optional validation details.
func Error(w http.ResponseWriter, code int, errorCode, message string, details ...ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorPayload{Code: errorCode, Message: message, Details: details},
	})
}

// Linkable exposes what link builders need to know about a resource.
type Linkable interface {
	ResourceID() string
	ResourceType() string
}

// Pluralize converts a singular resource type into its plural form.
func Pluralize(singular string) string {
	return pluralizer.Plural(singular)
}

// ResourcePath returns "<base>/<plural>" for a resource type.
func ResourcePath(resourceType string, basePath ...string) string {
	base := ""
	if len(basePath) > 0 {
		base = strings.TrimSuffix(basePath[0], "/")
	}
	return fmt.Sprintf("%s/%s", base, Pluralize(resourceType))
}

// RESTfulLinksFor builds self/update/delete/collection links.
func RESTfulLinksFor(obj Linkable, basePath ...string) []Link {
	collection := ResourcePath(obj.ResourceType(), basePath...)
	item := collection + "/" + obj.ResourceID()
	return []Link{
		{Rel: RelSelf, Href: item},
		{Rel: RelUpdate, Href: item},
		{Rel: RelDelete, Href: item},
		{Rel: RelCollection, Href: collection},
	}
}

// CollectionLinksFor builds self/create links for a collection.
func CollectionLinksFor(resourceType string, basePath ...string) []Link {
	collection := ResourcePath(resourceType, basePath...)
	return []Link{
		{Rel: RelSelf, Href: collection},
		{Rel: RelCreate, Href: collection},
	}
}

// PageLinksFor builds first/prev/next/last links for a zero-based page.
// A non-empty sort is carried on every link.
func PageLinksFor(resourceType string, page, size, totalPages int, sort string, basePath ...string) []Link {
	collection := ResourcePath(resourceType, basePath...)
	href := func(p int) string {
		q := url.Values{}
		q.Set("page", strconv.Itoa(p))
		q.Set("size", strconv.Itoa(size))
		if sort != "" {
			q.Set("sort", sort)
		}
		return collection + "?" + q.Encode()
	}

	links := []Link{{Rel: RelSelf, Href: href(page)}, {Rel: RelFirst, Href: href(0)}}
	if page > 0 {
		links = append(links, Link{Rel: RelPrev, Href: href(page - 1)})
	}
	if page+1 < totalPages {
		links = append(links, Link{Rel: RelNext, Href: href(page + 1)})
	}
	if totalPages > 0 {
		links = append(links, Link{Rel: RelLast, Href: href(totalPages - 1)})
	}
	return links
}

// RespondWithLinks answers 200 with the canonical CRUD links for obj.
func RespondWithLinks(w http.ResponseWriter, obj Linkable) {
	Respond(w, http.StatusOK, obj, nil, RESTfulLinksFor(obj)...)
}

// RespondCreated answers 201 with a Location header pointing at obj.
func RespondCreated(w http.ResponseWriter, obj Linkable) {
	links := RESTfulLinksFor(obj)
	w.Header().Set("Location", links[0].Href)
	Respond(w, http.StatusCreated, obj, nil, links...)
}
