package repository

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

type Direction string

const (
	ASC  Direction = "ASC"
	DESC Direction = "DESC"
)

// Order sorts by one property.
type Order struct {
	Property  string
	Direction Direction
}

// Sort is an ordered list of Orders. The zero value means "by ID
// ascending".
type Sort struct {
	Orders []Order
}

// By builds a Sort of ascending orders on properties.
func By(properties ...string) Sort {
	s := Sort{}
	for _, p := range properties {
		s.Orders = append(s.Orders, Order{Property: p, Direction: ASC})
	}
	return s
}

func (s Sort) IsUnsorted() bool {
	return len(s.Orders) == 0
}

// String renders the query form accepted by ParseSort.
func (s Sort) String() string {
	parts := make([]string, len(s.Orders))
	for i, o := range s.Orders {
		parts[i] = o.Property + "," + strings.ToLower(string(o.Direction))
	}
	return strings.Join(parts, ";")
}

// Validate checks every property against allowed.
func (s Sort) Validate(allowed func(string) bool) error {
	for _, o := range s.Orders {
		if !allowed(o.Property) {
			return fmt.Errorf("%w: %q", ErrInvalidSort, o.Property)
		}
	}
	return nil
}

// ParseSort reads "name,desc;id" into a Sort. A missing direction is ASC.
func ParseSort(raw string) (Sort, error) {
	var s Sort
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s, nil
	}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		prop, dir, _ := strings.Cut(part, ",")
		prop = strings.TrimSpace(prop)
		if prop == "" {
			return Sort{}, fmt.Errorf("%w: empty property in %q", ErrInvalidSort, raw)
		}
		order := Order{Property: prop, Direction: ASC}
		switch strings.ToUpper(strings.TrimSpace(dir)) {
		case "", "ASC":
		case "DESC":
			order.Direction = DESC
		default:
			return Sort{}, fmt.Errorf("%w: direction %q", ErrInvalidSort, dir)
		}
		s.Orders = append(s.Orders, order)
	}
	return s, nil
}

// Pageable requests one zero-based page.
type Pageable struct {
	Page int
	Size int
	Sort Sort
}

// PageRequest builds a Pageable; a zero size means DefaultPageSize.
func PageRequest(page, size int, sort Sort) Pageable {
	if size == 0 {
		size = DefaultPageSize
	}
	return Pageable{Page: page, Size: size, Sort: sort}
}

func (p Pageable) Validate() error {
	if p.Page < 0 {
		return fmt.Errorf("%w: page %d", ErrInvalidPage, p.Page)
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return fmt.Errorf("%w: size %d not in 1..%d", ErrInvalidPage, p.Size, MaxPageSize)
	}
	if p.Page > math.MaxInt/p.Size {
		return fmt.Errorf("%w: page %d overflows the offset", ErrInvalidPage, p.Page)
	}
	return nil
}

func (p Pageable) Offset() int {
	return p.Page * p.Size
}

// Page is one slice of a sorted result set plus its totals.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// NewPage computes TotalPages as ceil(total / size).
func NewPage[T any](content []T, p Pageable, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if p.Size > 0 {
		pages = int((total + int64(p.Size) - 1) / int64(p.Size))
	}
	return Page[T]{
		Content:       content,
		Number:        p.Page,
		Size:          p.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}

func (p Page[T]) HasNext() bool     { return p.Number+1 < p.TotalPages }
func (p Page[T]) HasPrevious() bool { return p.Number > 0 }
func (p Page[T]) IsFirst() bool     { return p.Number == 0 }
func (p Page[T]) IsLast() bool      { return !p.HasNext() }

// Map converts the content of a page, keeping its totals.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(p.Content))
	for i, v := range p.Content {
		out[i] = fn(v)
	}
	return Page[U]{
		Content:       out,
		Number:        p.Number,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
	}
}
