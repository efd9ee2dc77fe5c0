package repository

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		raw     string
		want    Sort
		wantErr bool
	}{
		{"", Sort{}, false},
		{"name", Sort{Orders: []Order{{"name", ASC}}}, false},
		{"name,desc;id", Sort{Orders: []Order{{"name", DESC}, {"id", ASC}}}, false},
		{" price , ASC ; ", Sort{Orders: []Order{{"price", ASC}}}, false},
		{",desc", Sort{}, true},
		{"name,sideways", Sort{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSort(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSort(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSort) {
					t.Errorf("ParseSort(%q) error = %v, want %v", tt.raw, err, ErrInvalidSort)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSort(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSortValidate(t *testing.T) {
	allowed := func(p string) bool { return p == "id" || p == "name" }

	if err := By("name", "id").Validate(allowed); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
	if err := By("password").Validate(allowed); !errors.Is(err, ErrInvalidSort) {
		t.Errorf("Validate() error = %v, want %v", err, ErrInvalidSort)
	}
	if !(Sort{}).IsUnsorted() {
		t.Errorf("IsUnsorted() = false, want true")
	}
}

func TestPageableValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Pageable
		wantErr bool
	}{
		{"default size", PageRequest(0, 0, Sort{}), false},
		{"max size", PageRequest(3, MaxPageSize, Sort{}), false},
		{"negative page", PageRequest(-1, 10, Sort{}), true},
		{"negative size", PageRequest(0, -5, Sort{}), true},
		{"too large", PageRequest(0, MaxPageSize+1, Sort{}), true},
		{"last safe page", PageRequest(math.MaxInt/2, 2, Sort{}), false},
		{"offset overflow", PageRequest(math.MaxInt/2+1, 2, Sort{}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPage) {
				t.Errorf("Validate() error = %v, want %v", err, ErrInvalidPage)
			}
		})
	}

	if got := PageRequest(0, 0, Sort{}).Size; got != DefaultPageSize {
		t.Errorf("PageRequest size = %d, want %d", got, DefaultPageSize)
	}
	if got := PageRequest(2, 10, Sort{}).Offset(); got != 20 {
		t.Errorf("Offset() = %d, want 20", got)
	}
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		name                   string
		page, size             int
		total                  int64
		wantPages              int
		wantNext, wantPrevious bool
	}{
		{"empty", 0, 10, 0, 0, false, false},
		{"exact", 0, 5, 10, 2, true, false},
		{"remainder", 1, 5, 11, 3, true, true},
		{"last", 2, 5, 11, 3, false, true},
		{"past the end", 7, 5, 11, 3, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage[int](nil, PageRequest(tt.page, tt.size, Sort{}), tt.total)
			if p.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", p.TotalPages, tt.wantPages)
			}
			if p.HasNext() != tt.wantNext {
				t.Errorf("HasNext() = %v, want %v", p.HasNext(), tt.wantNext)
			}
			if p.HasPrevious() != tt.wantPrevious {
				t.Errorf("HasPrevious() = %v, want %v", p.HasPrevious(), tt.wantPrevious)
			}
			if p.Content == nil {
				t.Errorf("Content = nil, want empty slice")
			}
		})
	}
}

func TestMap(t *testing.T) {
	p := NewPage([]int{1, 2}, PageRequest(0, 2, Sort{}), 4)
	got := Map(p, func(v int) string { return string(rune('a' + v - 1)) })
	if !reflect.DeepEqual(got.Content, []string{"a", "b"}) {
		t.Errorf("Map() content = %v, want [a b]", got.Content)
	}
	if got.TotalPages != 2 || got.TotalElements != 4 {
		t.Errorf("Map() totals = %d/%d, want 2/4", got.TotalPages, got.TotalElements)
	}
}

func TestUniqueIDs(t *testing.T) {
	got := UniqueIDs([]int64{3, 0, 1, 3, 2, 1})
	if !reflect.DeepEqual(got, []int64{3, 1, 2}) {
		t.Errorf("UniqueIDs() = %v, want [3 1 2]", got)
	}
}
