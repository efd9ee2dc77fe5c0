// Package mongorepo implements repository.Repository on MongoDB. Entities
// keep their numeric ID in _id and new IDs come from a counters
// collection.
package mongorepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aquamarinepk/cruddemo/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const countersCollection = "counters"

// Collection maps an entity onto a collection. Sortable maps API property
// names to document fields.
type Collection struct {
	Name     string
	Sortable map[string]string
}

// Repo is a generic Mongo repository. Entities must tag their ID field
// with `bson:"_id"`.
type Repo[T repository.Entity[ID], ID repository.Identifier] struct {
	coll      *mongo.Collection
	counters  *mongo.Collection
	name      string
	sortable  map[string]string
	newEntity func() T
}

func New[T repository.Entity[ID], ID repository.Identifier](db *mongo.Database, c Collection, newEntity func() T) (*Repo[T, ID], error) {
	if db == nil {
		return nil, errors.New("mongo database is required")
	}
	if c.Name == "" {
		return nil, errors.New("mongo collection name is required")
	}
	if newEntity == nil {
		return nil, errors.New("mongo repository factory is required")
	}
	sortable := map[string]string{"id": "_id"}
	for k, v := range c.Sortable {
		sortable[k] = v
	}
	return &Repo[T, ID]{
		coll:      db.Collection(c.Name),
		counters:  db.Collection(countersCollection),
		name:      c.Name,
		sortable:  sortable,
		newEntity: newEntity,
	}, nil
}

// nextIDs reserves n consecutive IDs and returns the first.
func (r *Repo[T, ID]) nextIDs(ctx context.Context, n int) (ID, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": r.name},
		bson.M{"$inc": bson.M{"seq": int64(n)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("reserve %s ids: %w", r.name, err)
	}
	return ID(counter.Seq - int64(n) + 1), nil
}

func (r *Repo[T, ID]) Save(ctx context.Context, entity T) (T, error) {
	if repository.IsNil(entity) {
		return entity, repository.ErrNilEntity
	}
	if entity.GetID() != 0 {
		return entity, r.replace(ctx, entity)
	}

	id, err := r.nextIDs(ctx, 1)
	if err != nil {
		return entity, err
	}
	entity.SetID(id)
	if _, err := r.coll.InsertOne(ctx, entity); err != nil {
		entity.SetID(0)
		return entity, fmt.Errorf("insert %s: %w", r.name, err)
	}
	return entity, nil
}

func (r *Repo[T, ID]) replace(ctx context.Context, entity T) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": entity.GetID()}, entity)
	if err != nil {
		return fmt.Errorf("replace %s %v: %w", r.name, entity.GetID(), err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SaveAll checks that every update target exists before writing. Without
// a replica set there is no transaction, so a failure during the writes
// can leave earlier ones applied.
func (r *Repo[T, ID]) SaveAll(ctx context.Context, entities []T) ([]T, error) {
	var fresh []T
	var updates []ID
	inserted := make([]bool, len(entities))
	for i, e := range entities {
		if repository.IsNil(e) {
			return nil, fmt.Errorf("entity %d: %w", i, repository.ErrNilEntity)
		}
		if e.GetID() == 0 {
			fresh = append(fresh, e)
			inserted[i] = true
		} else {
			updates = append(updates, e.GetID())
		}
	}

	if unique := repository.UniqueIDs(updates); len(unique) > 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": unique}})
		if err != nil {
			return nil, fmt.Errorf("check %s ids: %w", r.name, err)
		}
		if n != int64(len(unique)) {
			return nil, repository.ErrNotFound
		}
	}

	if len(fresh) > 0 {
		first, err := r.nextIDs(ctx, len(fresh))
		if err != nil {
			return nil, err
		}
		docs := make([]any, len(fresh))
		for i, e := range fresh {
			e.SetID(first + ID(i))
			docs[i] = e
		}
		if _, err := r.coll.InsertMany(ctx, docs); err != nil {
			for _, e := range fresh {
				e.SetID(0)
			}
			return nil, fmt.Errorf("insert %s: %w", r.name, err)
		}
	}

	for i, e := range entities {
		if inserted[i] {
			continue
		}
		if err := r.replace(ctx, e); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

func (r *Repo[T, ID]) FindByID(ctx context.Context, id ID) (T, error) {
	var zero T
	res := r.coll.FindOne(ctx, bson.M{"_id": id})
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, repository.ErrNotFound
		}
		return zero, fmt.Errorf("find %s %v: %w", r.name, id, err)
	}
	entity := r.newEntity()
	if err := res.Decode(entity); err != nil {
		return zero, fmt.Errorf("decode %s: %w", r.name, err)
	}
	return entity, nil
}

func (r *Repo[T, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("exists %s %v: %w", r.name, id, err)
	}
	return n > 0, nil
}

func (r *Repo[T, ID]) FindAll(ctx context.Context, sort repository.Sort) ([]T, error) {
	order, err := r.sortDoc(sort)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, bson.M{}, options.Find().SetSort(order))
}

func (r *Repo[T, ID]) FindAllByID(ctx context.Context, ids []ID) ([]T, error) {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return []T{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (r *Repo[T, ID]) FindPage(ctx context.Context, p repository.Pageable) (repository.Page[T], error) {
	if err := p.Validate(); err != nil {
		return repository.Page[T]{}, err
	}
	order, err := r.sortDoc(p.Sort)
	if err != nil {
		return repository.Page[T]{}, err
	}
	total, err := r.Count(ctx)
	if err != nil {
		return repository.Page[T]{}, err
	}

	content := []T{}
	if int64(p.Offset()) < total {
		opts := options.Find().SetSort(order).SetSkip(int64(p.Offset())).SetLimit(int64(p.Size))
		if content, err = r.find(ctx, bson.M{}, opts); err != nil {
			return repository.Page[T]{}, err
		}
	}
	return repository.NewPage(content, p, total), nil
}

func (r *Repo[T, ID]) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.name, err)
	}
	return n, nil
}

func (r *Repo[T, ID]) DeleteByID(ctx context.Context, id ID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s %v: %w", r.name, id, err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Repo[T, ID]) Delete(ctx context.Context, entity T) error {
	if repository.IsNil(entity) {
		return repository.ErrNilEntity
	}
	return r.DeleteByID(ctx, entity.GetID())
}

func (r *Repo[T, ID]) DeleteAllByID(ctx context.Context, ids []ID) error {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("delete %s by id: %w", r.name, err)
	}
	return nil
}

// DeleteAll keeps the counter document so IDs are never reused.
func (r *Repo[T, ID]) DeleteAll(ctx context.Context) error {
	if _, err := r.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete all %s: %w", r.name, err)
	}
	return nil
}

func (r *Repo[T, ID]) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *Repo[T, ID]) find(ctx context.Context, filter any, opts *options.FindOptions) ([]T, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", r.name, err)
	}
	defer cursor.Close(ctx)

	out := []T{}
	for cursor.Next(ctx) {
		entity := r.newEntity()
		if err := cursor.Decode(entity); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.name, err)
		}
		out = append(out, entity)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor %s: %w", r.name, err)
	}
	return out, nil
}

// sortDoc maps whitelisted properties to fields and appends _id as the
// tie breaker.
func (r *Repo[T, ID]) sortDoc(sort repository.Sort) (bson.D, error) {
	if err := sort.Validate(func(p string) bool { _, ok := r.sortable[p]; return ok }); err != nil {
		return nil, err
	}
	doc := bson.D{}
	hasID := false
	for _, o := range sort.Orders {
		field := r.sortable[o.Property]
		dir := 1
		if o.Direction == repository.DESC {
			dir = -1
		}
		doc = append(doc, bson.E{Key: field, Value: dir})
		hasID = hasID || field == "_id"
	}
	if !hasID {
		doc = append(doc, bson.E{Key: "_id", Value: 1})
	}
	return doc, nil
}
