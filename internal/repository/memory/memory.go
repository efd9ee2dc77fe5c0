// Package memory is an in-process repository backed by a map.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aquamarinepk/cruddemo/internal/repository"
)

// Comparator orders two entities by one property.
type Comparator[T any] func(a, b T) int

// Repo keeps clones of the saved entities so callers never share state
// with the store.
type Repo[T repository.Entity[ID], ID repository.Identifier] struct {
	mu      sync.RWMutex
	items   map[ID]T
	seq     ID
	clone   func(T) T
	sorters map[string]Comparator[T]
}

type Option[T repository.Entity[ID], ID repository.Identifier] func(*Repo[T, ID])

// WithSorter declares property as sortable using cmp.
func WithSorter[T repository.Entity[ID], ID repository.Identifier](property string, compare Comparator[T]) Option[T, ID] {
	return func(r *Repo[T, ID]) {
		r.sorters[property] = compare
	}
}

// New builds an empty store. clone must return a deep copy. "id" is
// always sortable.
func New[T repository.Entity[ID], ID repository.Identifier](clone func(T) T, opts ...Option[T, ID]) *Repo[T, ID] {
	r := &Repo[T, ID]{
		items:   make(map[ID]T),
		clone:   clone,
		sorters: make(map[string]Comparator[T]),
	}
	r.sorters["id"] = func(a, b T) int { return cmp.Compare(a.GetID(), b.GetID()) }
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repo[T, ID]) Save(_ context.Context, entity T) (T, error) {
	if repository.IsNil(entity) {
		return entity, repository.ErrNilEntity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUpdatable(entity); err != nil {
		return entity, err
	}
	r.store(entity)
	return entity, nil
}

// SaveAll checks every entity before storing any of them.
func (r *Repo[T, ID]) SaveAll(_ context.Context, entities []T) ([]T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range entities {
		if repository.IsNil(e) {
			return nil, fmt.Errorf("entity %d: %w", i, repository.ErrNilEntity)
		}
		if err := r.checkUpdatable(e); err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
	}
	for _, e := range entities {
		r.store(e)
	}
	return entities, nil
}

func (r *Repo[T, ID]) FindByID(_ context.Context, id ID) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok {
		var zero T
		return zero, repository.ErrNotFound
	}
	return r.clone(e), nil
}

func (r *Repo[T, ID]) ExistsByID(_ context.Context, id ID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[id]
	return ok, nil
}

func (r *Repo[T, ID]) FindAll(_ context.Context, sort repository.Sort) ([]T, error) {
	compare, err := r.comparator(sort)
	if err != nil {
		return nil, err
	}
	return r.sorted(compare), nil
}

func (r *Repo[T, ID]) FindAllByID(_ context.Context, ids []ID) ([]T, error) {
	ids = repository.UniqueIDs(ids)
	slices.Sort(ids)

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.items[id]; ok {
			out = append(out, r.clone(e))
		}
	}
	return out, nil
}

func (r *Repo[T, ID]) FindPage(_ context.Context, p repository.Pageable) (repository.Page[T], error) {
	if err := p.Validate(); err != nil {
		return repository.Page[T]{}, err
	}
	compare, err := r.comparator(p.Sort)
	if err != nil {
		return repository.Page[T]{}, err
	}

	all := r.sorted(compare)
	total := int64(len(all))
	start := min(p.Offset(), len(all))
	end := min(start+p.Size, len(all))
	return repository.NewPage(all[start:end], p, total), nil
}

func (r *Repo[T, ID]) Count(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.items)), nil
}

func (r *Repo[T, ID]) DeleteByID(_ context.Context, id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *Repo[T, ID]) Delete(ctx context.Context, entity T) error {
	if repository.IsNil(entity) {
		return repository.ErrNilEntity
	}
	return r.DeleteByID(ctx, entity.GetID())
}

func (r *Repo[T, ID]) DeleteAllByID(_ context.Context, ids []ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.items, id)
	}
	return nil
}

// DeleteAll empties the store. The sequence keeps counting so IDs are
// never reused.
func (r *Repo[T, ID]) DeleteAll(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[ID]T)
	return nil
}

func (r *Repo[T, ID]) Ping(context.Context) error {
	return nil
}

// checkUpdatable requires r.mu held.
func (r *Repo[T, ID]) checkUpdatable(entity T) error {
	id := entity.GetID()
	if id == 0 {
		return nil
	}
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

// store requires r.mu held.
func (r *Repo[T, ID]) store(entity T) {
	if entity.GetID() == 0 {
		r.seq++
		entity.SetID(r.seq)
	}
	r.items[entity.GetID()] = r.clone(entity)
}

func (r *Repo[T, ID]) comparator(sort repository.Sort) (Comparator[T], error) {
	if err := sort.Validate(func(p string) bool { _, ok := r.sorters[p]; return ok }); err != nil {
		return nil, err
	}
	byID := r.sorters["id"]
	orders := sort.Orders
	return func(a, b T) int {
		for _, o := range orders {
			c := r.sorters[o.Property](a, b)
			if o.Direction == repository.DESC {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return byID(a, b)
	}, nil
}

func (r *Repo[T, ID]) sorted(compare Comparator[T]) []T {
	r.mu.RLock()
	out := make([]T, 0, len(r.items))
	for _, e := range r.items {
		out = append(out, r.clone(e))
	}
	r.mu.RUnlock()

	slices.SortFunc(out, compare)
	return out
}
