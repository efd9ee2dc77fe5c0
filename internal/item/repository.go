package item

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/aquamarinepk/cruddemo/internal/platform/cache"
	"github.com/aquamarinepk/cruddemo/internal/platform/seed"
	"github.com/aquamarinepk/cruddemo/internal/repository"
	"github.com/aquamarinepk/cruddemo/internal/repository/memory"
	"github.com/aquamarinepk/cruddemo/internal/repository/mongorepo"
	"github.com/aquamarinepk/cruddemo/internal/repository/sqlrepo"
	"go.mongodb.org/mongo-driver/mongo"
)

// ItemRepository is the data access for items. It adds nothing to the
// generic contract.
type ItemRepository interface {
	repository.Repository[*Item, int64]
}

// Schema is written in the sqlite flavour; sqlrepo rewrites it for the
// other dialects.
const Schema = `CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name VARCHAR(120) NOT NULL,
	description TEXT NOT NULL,
	price REAL NOT NULL,
	quantity INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`

var sortable = map[string]string{
	"name":      "name",
	"price":     "price",
	"quantity":  "quantity",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// Table maps Item onto the items table.
var Table = sqlrepo.Table{
	Name:     "items",
	IDColumn: "id",
	Columns:  []string{"name", "description", "price", "quantity", "created_at", "updated_at"},
	Sortable: sortable,
}

func NewMemoryRepository() ItemRepository {
	return memory.New[*Item, int64](Clone,
		memory.WithSorter[*Item, int64]("name", func(a, b *Item) int { return cmp.Compare(a.Name, b.Name) }),
		memory.WithSorter[*Item, int64]("price", func(a, b *Item) int { return cmp.Compare(a.Price, b.Price) }),
		memory.WithSorter[*Item, int64]("quantity", func(a, b *Item) int { return cmp.Compare(a.Quantity, b.Quantity) }),
		memory.WithSorter[*Item, int64]("createdAt", func(a, b *Item) int { return a.CreatedAt.Compare(b.CreatedAt) }),
		memory.WithSorter[*Item, int64]("updatedAt", func(a, b *Item) int { return a.UpdatedAt.Compare(b.UpdatedAt) }),
	)
}

func NewSQLRepository(db *sqlrepo.DB) (ItemRepository, error) {
	repo, err := sqlrepo.New[*Item, int64](db, Table, newItem)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func NewMongoRepository(db *mongo.Database) (ItemRepository, error) {
	repo, err := mongorepo.New[*Item, int64](db, mongorepo.Collection{Name: "items", Sortable: sortable}, newItem)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// StorageConfig selects the backend. DB.Driver is one of memory, sqlite,
// postgres, mysql or mongo.
type StorageConfig struct {
	DB    sqlrepo.Options
	Mongo mongorepo.Config
	Cache cache.Options
}

// Storage is the resolved item persistence plus what it owns.
type Storage struct {
	Repo    ItemRepository
	Tracker seed.Tracker
	SQL     *sqlrepo.DB

	components []any
}

// Components returns connections and caches that need lifecycle hooks
// and health checks.
func (s *Storage) Components() []any {
	return s.components
}

// Migrate applies the items schema. Non-SQL backends have nothing to do.
func (s *Storage) Migrate(ctx context.Context) error {
	if s.SQL == nil {
		return nil
	}
	if err := s.SQL.Migrate(ctx, Schema); err != nil {
		return err
	}
	if t, ok := s.Tracker.(*seed.SQLTracker); ok {
		return t.Ensure(ctx)
	}
	return nil
}

// Close stops every owned component, most recent first.
func (s *Storage) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.components) - 1; i >= 0; i-- {
		if c, ok := s.components[i].(platform.Stoppable); ok {
			errs = append(errs, c.Stop(ctx))
		}
	}
	return errors.Join(errs...)
}

// OpenStorage resolves the configured driver into an ItemRepository,
// wrapped with the cache decorator when a cache driver is set.
func OpenStorage(ctx context.Context, cfg StorageConfig, log platform.Logger) (*Storage, error) {
	if log == nil {
		log = platform.NewNoopLogger()
	}
	s := &Storage{}

	driver := strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	switch driver {
	case "", "memory":
		s.Repo = NewMemoryRepository()
		s.Tracker = seed.NewMemoryTracker()

	case "sqlite", "postgres", "mysql":
		db, err := sqlrepo.Open(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		s.SQL = db
		s.components = append(s.components, db)
		if s.Repo, err = NewSQLRepository(db); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		if s.Tracker, err = seed.NewSQLTracker(db.DB, ""); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}

	case "mongo":
		client, err := mongorepo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		s.components = append(s.components, client)
		if s.Repo, err = NewMongoRepository(client.Database()); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.Tracker = seed.NewMongoTracker(client.Database())

	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
	}

	store, err := cache.New(cfg.Cache)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	if store != nil {
		s.components = append(s.components, store)
		s.Repo = repository.NewCached[*Item, int64](s.Repo, store, ResourceType, cfg.Cache.TTL, newItem)
		log.Info("item cache enabled", "driver", cfg.Cache.Driver)
	}

	log.Info("item storage ready", "driver", cmp.Or(driver, "memory"))
	return s, nil
}

// Ready pings the repository when it supports it.
func (s *Storage) Ready(ctx context.Context) error {
	p, ok := s.Repo.(repository.Pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Ping(ctx)
}
