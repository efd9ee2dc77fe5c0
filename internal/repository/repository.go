// Package repository defines the generic data-access contract shared by
// every storage backend.
package repository

import (
	"context"
	"errors"
)

// Identifier is a numeric surrogate key. The zero value means the entity
// has not been persisted yet.
type Identifier interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// Entity is implemented by pointer types that carry their own identifier.
type Entity[ID Identifier] interface {
	GetID() ID
	SetID(ID)
}

// Repository is the create, read, update, delete, list and paginate
// surface of one entity type.
type Repository[T Entity[ID], ID Identifier] interface {
	// Save inserts when the ID is zero, assigning a fresh one, and
	// updates otherwise. Updating a missing ID returns ErrNotFound.
	Save(ctx context.Context, entity T) (T, error)
	SaveAll(ctx context.Context, entities []T) ([]T, error)

	FindByID(ctx context.Context, id ID) (T, error)
	ExistsByID(ctx context.Context, id ID) (bool, error)
	FindAll(ctx context.Context, sort Sort) ([]T, error)
	// FindAllByID skips missing IDs and returns the rest in ID order.
	FindAllByID(ctx context.Context, ids []ID) ([]T, error)
	FindPage(ctx context.Context, pageable Pageable) (Page[T], error)
	Count(ctx context.Context) (int64, error)

	DeleteByID(ctx context.Context, id ID) error
	Delete(ctx context.Context, entity T) error
	// DeleteAllByID skips IDs that do not exist.
	DeleteAllByID(ctx context.Context, ids []ID) error
	DeleteAll(ctx context.Context) error
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	ErrNotFound    = errors.New("entity not found")
	ErrNilEntity   = errors.New("nil entity")
	ErrInvalidPage = errors.New("invalid page request")
	ErrInvalidSort = errors.New("invalid sort property")
)

// IsNil reports whether entity is a nil pointer hidden in the type
// parameter.
func IsNil[T Entity[ID], ID Identifier](entity T) bool {
	var zero T
	return any(entity) == any(zero)
}

// UniqueIDs drops zero and duplicate IDs, keeping first-seen order.
func UniqueIDs[ID Identifier](ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
