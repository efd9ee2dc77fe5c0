package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform/cache"
)

// Cached decorates a Repository with a read-through cache for FindByID.
// Writes go to the inner repository first and then invalidate the keys
// they touched.
//
// Every invalidation bumps a generation. A read that started before the
// bump does not populate the store, so a row loaded before a write cannot
// outlive that write's invalidation. The guard covers writers in this
// process only.
type Cached[T Entity[ID], ID Identifier] struct {
	Repository[T, ID]
	store     cache.Store
	prefix    string
	ttl       time.Duration
	newEntity func() T

	mu         sync.RWMutex
	generation uint64
}

// NewCached keys entries as "<prefix>:<id>". A non-positive ttl leaves
// expiry to the store default.
func NewCached[T Entity[ID], ID Identifier](inner Repository[T, ID], store cache.Store, prefix string, ttl time.Duration, newEntity func() T) *Cached[T, ID] {
	return &Cached[T, ID]{
		Repository: inner,
		store:      store,
		prefix:     prefix + ":",
		ttl:        ttl,
		newEntity:  newEntity,
	}
}

func (c *Cached[T, ID]) key(id ID) string {
	return fmt.Sprintf("%s%d", c.prefix, id)
}

// FindByID serves hits from the store. Store failures fall back to the
// inner repository.
func (c *Cached[T, ID]) FindByID(ctx context.Context, id ID) (T, error) {
	if data, err := c.store.Get(ctx, c.key(id)); err == nil {
		entity := c.newEntity()
		if json.Unmarshal(data, entity) == nil {
			return entity, nil
		}
	}

	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	entity, err := c.Repository.FindByID(ctx, id)
	if err != nil {
		return entity, err
	}
	if data, err := json.Marshal(entity); err == nil {
		c.mu.RLock()
		if c.generation == gen {
			_ = c.store.Set(ctx, c.key(id), data, c.ttl)
		}
		c.mu.RUnlock()
	}
	return entity, nil
}

func (c *Cached[T, ID]) Save(ctx context.Context, entity T) (T, error) {
	var id ID
	if !IsNil(entity) {
		id = entity.GetID()
	}
	saved, err := c.Repository.Save(ctx, entity)
	if err != nil || id == 0 {
		return saved, err
	}
	return saved, c.invalidate(ctx, id)
}

func (c *Cached[T, ID]) SaveAll(ctx context.Context, entities []T) ([]T, error) {
	var ids []ID
	for _, e := range entities {
		if !IsNil(e) && e.GetID() != 0 {
			ids = append(ids, e.GetID())
		}
	}
	saved, err := c.Repository.SaveAll(ctx, entities)
	if err != nil {
		return saved, err
	}
	return saved, c.invalidate(ctx, ids...)
}

func (c *Cached[T, ID]) DeleteByID(ctx context.Context, id ID) error {
	err := c.Repository.DeleteByID(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return errors.Join(err, c.invalidate(ctx, id))
}

func (c *Cached[T, ID]) Delete(ctx context.Context, entity T) error {
	if IsNil(entity) {
		return ErrNilEntity
	}
	return c.DeleteByID(ctx, entity.GetID())
}

func (c *Cached[T, ID]) DeleteAllByID(ctx context.Context, ids []ID) error {
	if err := c.Repository.DeleteAllByID(ctx, ids); err != nil {
		return err
	}
	return c.invalidate(ctx, UniqueIDs(ids)...)
}

func (c *Cached[T, ID]) DeleteAll(ctx context.Context) error {
	if err := c.Repository.DeleteAll(ctx); err != nil {
		return err
	}
	c.bump()
	if err := c.store.DeletePrefix(ctx, c.prefix); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	return nil
}

// Ping forwards to the inner repository when it can report connectivity.
func (c *Cached[T, ID]) Ping(ctx context.Context) error {
	if p, ok := c.Repository.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *Cached[T, ID]) invalidate(ctx context.Context, ids ...ID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	c.bump()
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	return nil
}

// bump waits for in-flight store writes so none of them lands after the
// delete that follows.
func (c *Cached[T, ID]) bump() {
	c.mu.Lock()
	c.generation++
	c.mu.Unlock()
}
