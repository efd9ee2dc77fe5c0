package mongorepo

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/repository"
	"github.com/aquamarinepk/cruddemo/internal/repository/repotest"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var widgets = Collection{
	Name:     "widgets",
	Sortable: map[string]string{"name": "name", "price": "price"},
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		coll Collection
		fn   func() *repotest.Widget
	}{
		{"no collection name", Collection{}, func() *repotest.Widget { return &repotest.Widget{} }},
		{"no factory", widgets, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New[*repotest.Widget, int64](nil, tt.coll, tt.fn); err == nil {
				t.Errorf("New() error = nil, want error")
			}
		})
	}
}

func TestConnectValidation(t *testing.T) {
	if _, err := Connect(context.Background(), Config{Database: "x"}); err == nil {
		t.Errorf("Connect() without uri error = nil, want error")
	}
	if _, err := Connect(context.Background(), Config{URI: "mongodb://localhost"}); err == nil {
		t.Errorf("Connect() without database error = nil, want error")
	}
}

func TestSortDoc(t *testing.T) {
	repo := &Repo[*repotest.Widget, int64]{sortable: map[string]string{"id": "_id", "name": "name"}}

	doc, err := repo.sortDoc(repository.Sort{Orders: []repository.Order{{Property: "name", Direction: repository.DESC}}})
	require.NoError(t, err)
	require.Len(t, doc, 2)
	assert.Equal(t, "name", doc[0].Key)
	assert.Equal(t, -1, doc[0].Value)
	assert.Equal(t, "_id", doc[1].Key)

	doc, err = repo.sortDoc(repository.Sort{})
	require.NoError(t, err)
	assert.Len(t, doc, 1)

	_, err = repo.sortDoc(repository.By("secret"))
	assert.ErrorIs(t, err, repository.ErrInvalidSort)
}

func TestRepoContract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mongo container test in short mode")
	}
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	resource, err := pool.Run("mongo", "7", nil)
	if err != nil {
		t.Skipf("cannot start mongo: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	uri := "mongodb://localhost:" + resource.GetPort("27017/tcp")
	pool.MaxWait = 90 * time.Second
	var client *Client
	if err := pool.Retry(func() error {
		var err error
		client, err = Connect(context.Background(), Config{URI: uri, Database: "test", ConnectTimeout: 5 * time.Second})
		return err
	}); err != nil {
		t.Fatalf("mongo not ready: %v", err)
	}
	t.Cleanup(func() { _ = client.Stop(context.Background()) })

	var n atomic.Int64
	repotest.Run(t, func(t *testing.T) repotest.Repo {
		db := client.client.Database(fmt.Sprintf("test_%d", n.Add(1)))
		repo, err := New[*repotest.Widget, int64](db, widgets, func() *repotest.Widget { return &repotest.Widget{} })
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Drop(context.Background()) })
		return repo
	})

	if err := client.HealthChecks().Readiness["mongo"](context.Background()); err != nil {
		t.Errorf("readiness error = %v", err)
	}
}
