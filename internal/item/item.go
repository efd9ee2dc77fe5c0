package item

import (
	"strconv"
	"strings"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform"
)

const (
	ResourceType = "item"

	maxNameLength        = 120
	maxDescriptionLength = 2000
)

// Item is the catalogue entry managed by the service.
type Item struct {
	ID          int64     `json:"id" db:"id" bson:"_id"`
	Name        string    `json:"name" db:"name" bson:"name"`
	Description string    `json:"description" db:"description" bson:"description"`
	Price       float64   `json:"price" db:"price" bson:"price"`
	Quantity    int       `json:"quantity" db:"quantity" bson:"quantity"`
	CreatedAt   time.Time `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

func (i *Item) GetID() int64   { return i.ID }
func (i *Item) SetID(id int64) { i.ID = id }

func (i *Item) ResourceID() string   { return strconv.FormatInt(i.ID, 10) }
func (i *Item) ResourceType() string { return ResourceType }

// Clone returns a detached copy.
func Clone(i *Item) *Item {
	c := *i
	return &c
}

func newItem() *Item { return &Item{} }

// Normalize trims text fields.
func (i *Item) Normalize() {
	i.Name = strings.TrimSpace(i.Name)
	i.Description = strings.TrimSpace(i.Description)
}

// Validate reports every failed rule as a platform.ValidationErrors.
func (i *Item) Validate() error {
	var v platform.Validator
	v.Check(platform.IsRequired(i.Name), "name", "required", "name is required")
	v.Check(platform.MaxLength(i.Name, maxNameLength), "name", "max_length", "name must be at most 120 characters")
	v.Check(platform.MaxLength(i.Description, maxDescriptionLength), "description", "max_length", "description must be at most 2000 characters")
	v.Check(platform.MinValue(i.Price, 0), "price", "min_value", "price must not be negative")
	v.Check(platform.MinValue(i.Quantity, 0), "quantity", "min_value", "quantity must not be negative")
	return v.Err()
}

// Touch stamps audit times; CreatedAt is only set once.
func (i *Item) Touch(now time.Time) {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
}

// Input is the body accepted by create and replace.
type Input struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

func (in Input) toItem() *Item {
	return &Item{Name: in.Name, Description: in.Description, Price: in.Price, Quantity: in.Quantity}
}

// Patch groups the optional fields of a partial update.
type Patch struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Quantity    *int     `json:"quantity"`
}

func (p Patch) apply(i *Item) {
	if p.Name != nil {
		i.Name = *p.Name
	}
	if p.Description != nil {
		i.Description = *p.Description
	}
	if p.Price != nil {
		i.Price = *p.Price
	}
	if p.Quantity != nil {
		i.Quantity = *p.Quantity
	}
}
