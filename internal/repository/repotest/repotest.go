// Package repotest holds the behaviour every repository.Repository
// implementation must share, as a reusable test suite.
package repotest

import (
	"context"
	"math"
	"testing"

	"github.com/aquamarinepk/cruddemo/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Widget is the entity the suite stores. Backends must declare "name" and
// "price" as sortable.
type Widget struct {
	ID    int64   `db:"id" bson:"_id" json:"id"`
	Name  string  `db:"name" bson:"name" json:"name"`
	Price float64 `db:"price" bson:"price" json:"price"`
}

func (w *Widget) GetID() int64   { return w.ID }
func (w *Widget) SetID(id int64) { w.ID = id }

// Clone copies a widget.
func Clone(w *Widget) *Widget {
	c := *w
	return &c
}

// Schema is the sqlite-flavoured DDL for the widgets table.
const Schema = `CREATE TABLE IF NOT EXISTS widgets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name VARCHAR(120) NOT NULL,
	price REAL NOT NULL
)`

// Repo is the instantiation under test.
type Repo = repository.Repository[*Widget, int64]

// Run exercises newRepo against the shared contract. newRepo must return
// an empty store on every call.
func Run(t *testing.T, newRepo func(t *testing.T) Repo) {
	t.Helper()
	ctx := context.Background()

	t.Run("SaveInsertsWithIncreasingIDs", func(t *testing.T) {
		repo := newRepo(t)
		a, err := repo.Save(ctx, &Widget{Name: "a", Price: 1})
		require.NoError(t, err)
		b, err := repo.Save(ctx, &Widget{Name: "b", Price: 2})
		require.NoError(t, err)

		assert.NotZero(t, a.ID)
		assert.Greater(t, b.ID, a.ID)

		got, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, *a, *got)
	})

	t.Run("SaveUpdatesExisting", func(t *testing.T) {
		repo := newRepo(t)
		w, err := repo.Save(ctx, &Widget{Name: "old", Price: 1})
		require.NoError(t, err)

		w.Name = "new"
		_, err = repo.Save(ctx, w)
		require.NoError(t, err)

		got, err := repo.FindByID(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.Name)
		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("SaveUnchangedEntity", func(t *testing.T) {
		repo := newRepo(t)
		w, err := repo.Save(ctx, &Widget{Name: "same", Price: 1})
		require.NoError(t, err)
		_, err = repo.Save(ctx, w)
		require.NoError(t, err)
	})

	t.Run("SaveMissingIDIsNotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Save(ctx, &Widget{ID: 999, Name: "ghost"})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("SaveNil", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Save(ctx, nil)
		assert.ErrorIs(t, err, repository.ErrNilEntity)
	})

	t.Run("SaveAllIsAllOrNothing", func(t *testing.T) {
		repo := newRepo(t)
		saved, err := repo.SaveAll(ctx, []*Widget{{Name: "a"}, {Name: "b"}})
		require.NoError(t, err)
		require.Len(t, saved, 2)
		assert.NotZero(t, saved[0].ID)
		assert.NotEqual(t, saved[0].ID, saved[1].ID)

		_, err = repo.SaveAll(ctx, []*Widget{{Name: "c"}, {ID: 999, Name: "ghost"}})
		assert.ErrorIs(t, err, repository.ErrNotFound)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)
	})

	t.Run("FindByIDMissing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindByID(ctx, 42)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		ok, err := repo.ExistsByID(ctx, 42)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ExistsByID", func(t *testing.T) {
		repo := newRepo(t)
		w, err := repo.Save(ctx, &Widget{Name: "x"})
		require.NoError(t, err)
		ok, err := repo.ExistsByID(ctx, w.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("FindAllSorts", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo, "b", 2, "a", 3, "c", 1)

		byID, err := repo.FindAll(ctx, repository.Sort{})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "c"}, names(byID))

		byName, err := repo.FindAll(ctx, repository.By("name"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, names(byName))

		sort, err := repository.ParseSort("price,desc")
		require.NoError(t, err)
		byPrice, err := repo.FindAll(ctx, sort)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, names(byPrice))
	})

	t.Run("FindAllRejectsUnknownSort", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindAll(ctx, repository.By("name; DROP TABLE widgets"))
		assert.ErrorIs(t, err, repository.ErrInvalidSort)
		_, err = repo.FindPage(ctx, repository.PageRequest(0, 10, repository.By("secret")))
		assert.ErrorIs(t, err, repository.ErrInvalidSort)
	})

	t.Run("FindAllByIDSkipsMissingAndOrders", func(t *testing.T) {
		repo := newRepo(t)
		ws := seed(t, repo, "a", 1, "b", 2, "c", 3)

		got, err := repo.FindAllByID(ctx, []int64{ws[2].ID, 999, ws[0].ID, ws[2].ID})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, names(got))

		empty, err := repo.FindAllByID(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("FindPage", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo, "a", 1, "b", 2, "c", 3, "d", 4, "e", 5)

		first, err := repo.FindPage(ctx, repository.PageRequest(0, 2, repository.By("name")))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, names(first.Content))
		assert.EqualValues(t, 5, first.TotalElements)
		assert.Equal(t, 3, first.TotalPages)
		assert.True(t, first.IsFirst())
		assert.True(t, first.HasNext())

		last, err := repo.FindPage(ctx, repository.PageRequest(2, 2, repository.By("name")))
		require.NoError(t, err)
		assert.Equal(t, []string{"e"}, names(last.Content))
		assert.True(t, last.IsLast())
		assert.True(t, last.HasPrevious())

		past, err := repo.FindPage(ctx, repository.PageRequest(9, 2, repository.Sort{}))
		require.NoError(t, err)
		assert.Empty(t, past.Content)
		assert.EqualValues(t, 5, past.TotalElements)
	})

	t.Run("FindPageValidates", func(t *testing.T) {
		repo := newRepo(t)
		for _, p := range []repository.Pageable{
			{Page: -1, Size: 10},
			{Page: 0, Size: -1},
			{Page: 0, Size: repository.MaxPageSize + 1},
			{Page: math.MaxInt/2 + 1, Size: 2},
		} {
			_, err := repo.FindPage(ctx, p)
			assert.ErrorIs(t, err, repository.ErrInvalidPage, "pageable %+v", p)
		}
	})

	t.Run("FindPageFarPastTheEnd", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo, "a", 1, "b", 2)

		page, err := repo.FindPage(ctx, repository.PageRequest(math.MaxInt/repository.MaxPageSize, repository.MaxPageSize, repository.Sort{}))
		require.NoError(t, err)
		assert.Empty(t, page.Content)
		assert.EqualValues(t, 2, page.TotalElements)
		assert.Equal(t, 1, page.TotalPages)
	})

	t.Run("DeleteByID", func(t *testing.T) {
		repo := newRepo(t)
		w, err := repo.Save(ctx, &Widget{Name: "x"})
		require.NoError(t, err)

		require.NoError(t, repo.DeleteByID(ctx, w.ID))
		assert.ErrorIs(t, repo.DeleteByID(ctx, w.ID), repository.ErrNotFound)
		_, err = repo.FindByID(ctx, w.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		w, err := repo.Save(ctx, &Widget{Name: "x"})
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, w))
		assert.ErrorIs(t, repo.Delete(ctx, nil), repository.ErrNilEntity)
	})

	t.Run("DeleteAllByIDSkipsMissing", func(t *testing.T) {
		repo := newRepo(t)
		ws := seed(t, repo, "a", 1, "b", 2, "c", 3)

		require.NoError(t, repo.DeleteAllByID(ctx, []int64{ws[0].ID, 999, ws[2].ID}))
		rest, err := repo.FindAll(ctx, repository.Sort{})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, names(rest))
		require.NoError(t, repo.DeleteAllByID(ctx, nil))
	})

	t.Run("DeleteAllNeverReusesIDs", func(t *testing.T) {
		repo := newRepo(t)
		ws := seed(t, repo, "a", 1, "b", 2)

		require.NoError(t, repo.DeleteAll(ctx))
		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		next, err := repo.Save(ctx, &Widget{Name: "c"})
		require.NoError(t, err)
		assert.Greater(t, next.ID, ws[1].ID)
	})

	t.Run("ReturnedEntitiesAreDetached", func(t *testing.T) {
		repo := newRepo(t)
		w, err := repo.Save(ctx, &Widget{Name: "orig"})
		require.NoError(t, err)

		got, err := repo.FindByID(ctx, w.ID)
		require.NoError(t, err)
		got.Name = "mutated"
		w.Name = "mutated too"

		again, err := repo.FindByID(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, "orig", again.Name)
	})

	t.Run("Ping", func(t *testing.T) {
		repo := newRepo(t)
		p, ok := repo.(repository.Pinger)
		if !ok {
			t.Skip("store does not implement Pinger")
		}
		assert.NoError(t, p.Ping(ctx))
	})
}

// seed saves pairs of (name, price) in order.
func seed(t *testing.T, repo Repo, pairs ...any) []*Widget {
	t.Helper()
	var out []*Widget
	for i := 0; i+1 < len(pairs); i += 2 {
		w, err := repo.Save(context.Background(), &Widget{
			Name:  pairs[i].(string),
			Price: float64(pairs[i+1].(int)),
		})
		require.NoError(t, err)
		out = append(out, w)
	}
	return out
}

func names(ws []*Widget) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Name
	}
	return out
}
