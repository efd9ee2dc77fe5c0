package item

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform"
)

func TestItemValidate(t *testing.T) {
	tests := []struct {
		name       string
		item       Item
		wantFields []string
	}{
		{"valid", Item{Name: "Pen", Price: 1, Quantity: 2}, nil},
		{"free and out of stock", Item{Name: "Sample"}, nil},
		{"missing name", Item{Name: "  "}, []string{"name"}},
		{"long name", Item{Name: strings.Repeat("n", 121)}, []string{"name"}},
		{"long description", Item{Name: "x", Description: strings.Repeat("d", 2001)}, []string{"description"}},
		{"negative numbers", Item{Name: "x", Price: -0.01, Quantity: -1}, []string{"price", "quantity"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantFields == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			var verrs platform.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() error = %v, want ValidationErrors", err)
			}
			if len(verrs) != len(tt.wantFields) {
				t.Fatalf("Validate() = %v, want fields %v", verrs, tt.wantFields)
			}
			for i, f := range tt.wantFields {
				if verrs[i].Field != f {
					t.Errorf("error[%d].Field = %q, want %q", i, verrs[i].Field, f)
				}
			}
		})
	}
}

func TestItemNameLengthCountsRunes(t *testing.T) {
	item := Item{Name: strings.Repeat("é", 120)}
	if err := item.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestItemTouchKeepsCreatedAt(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	var item Item
	item.Touch(first)
	item.Touch(later)

	if !item.CreatedAt.Equal(first) {
		t.Errorf("CreatedAt = %v, want %v", item.CreatedAt, first)
	}
	if !item.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", item.UpdatedAt, later)
	}
}

func TestPatchApply(t *testing.T) {
	name, qty := "New", 3
	item := &Item{Name: "Old", Description: "keep", Price: 2, Quantity: 1}
	Patch{Name: &name, Quantity: &qty}.apply(item)

	if item.Name != "New" || item.Quantity != 3 {
		t.Errorf("apply() = %+v, want name New and quantity 3", item)
	}
	if item.Description != "keep" || item.Price != 2 {
		t.Errorf("apply() changed untouched fields: %+v", item)
	}
}

func TestItemLinks(t *testing.T) {
	item := &Item{ID: 42}
	links := platform.RESTfulLinksFor(item)
	if links[0].Href != "/items/42" {
		t.Errorf("self link = %q, want /items/42", links[0].Href)
	}
}
