// Package sqlrepo implements repository.Repository on database/sql via
// sqlx for sqlite, postgres and mysql.
package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aquamarinepk/cruddemo/internal/repository"
	"github.com/jmoiron/sqlx"
)

// Table describes how an entity maps onto a table. Column and property
// names are trusted identifiers; only sort properties listed in Sortable
// reach ORDER BY.
type Table struct {
	Name     string
	IDColumn string
	// Columns are the data columns written on insert and update, without
	// the ID column. Each must match a db tag on the entity.
	Columns []string
	// Sortable maps an API property name to its column.
	Sortable map[string]string
}

type queries struct {
	insert     string
	update     string
	findByID   string
	exists     string
	selectAll  string
	selectIn   string
	count      string
	deleteByID string
	deleteIn   string
	deleteAll  string
}

// Repo is a generic SQL repository.
type Repo[T repository.Entity[ID], ID repository.Identifier] struct {
	db        *DB
	table     Table
	newEntity func() T
	q         queries
}

// New prepares the statements for table. newEntity must return a fresh,
// non-nil T to scan into.
func New[T repository.Entity[ID], ID repository.Identifier](db *DB, table Table, newEntity func() T) (*Repo[T, ID], error) {
	if db == nil {
		return nil, errors.New("sqlrepo: nil db")
	}
	if table.Name == "" || len(table.Columns) == 0 {
		return nil, errors.New("sqlrepo: table name and columns required")
	}
	if table.IDColumn == "" {
		table.IDColumn = "id"
	}
	sortable := map[string]string{"id": table.IDColumn}
	for k, v := range table.Sortable {
		sortable[k] = v
	}
	table.Sortable = sortable

	r := &Repo[T, ID]{db: db, table: table, newEntity: newEntity}
	r.q = r.buildQueries()
	return r, nil
}

func (r *Repo[T, ID]) buildQueries() queries {
	name := r.db.Dialect.Quote(r.table.Name)
	id := r.table.IDColumn
	cols := strings.Join(r.table.Columns, ", ")
	all := id + ", " + cols

	named := make([]string, len(r.table.Columns))
	sets := make([]string, len(r.table.Columns))
	for i, c := range r.table.Columns {
		named[i] = ":" + c
		sets[i] = c + " = :" + c
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, cols, strings.Join(named, ", "))
	if r.db.Dialect.ReturningID() {
		insert += " RETURNING " + id
	}

	rebind := r.rebind
	return queries{
		insert:     insert,
		update:     fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s", name, strings.Join(sets, ", "), id, id),
		findByID:   rebind(fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", all, name, id)),
		exists:     rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", name, id)),
		selectAll:  fmt.Sprintf("SELECT %s FROM %s", all, name),
		selectIn:   fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (?) ORDER BY %s ASC", all, name, id, id),
		count:      fmt.Sprintf("SELECT COUNT(*) FROM %s", name),
		deleteByID: rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", name, id)),
		deleteIn:   fmt.Sprintf("DELETE FROM %s WHERE %s IN (?)", name, id),
		deleteAll:  fmt.Sprintf("DELETE FROM %s", name),
	}
}

func (r *Repo[T, ID]) Save(ctx context.Context, entity T) (T, error) {
	if repository.IsNil(entity) {
		return entity, repository.ErrNilEntity
	}
	if err := r.save(ctx, r.db, entity); err != nil {
		return entity, err
	}
	return entity, nil
}

// SaveAll runs in one transaction. On failure IDs assigned during the
// attempt are reset to zero.
func (r *Repo[T, ID]) SaveAll(ctx context.Context, entities []T) ([]T, error) {
	for i, e := range entities {
		if repository.IsNil(e) {
			return nil, fmt.Errorf("entity %d: %w", i, repository.ErrNilEntity)
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	var inserted []T
	fail := func(err error) ([]T, error) {
		_ = tx.Rollback()
		for _, e := range inserted {
			e.SetID(0)
		}
		return nil, err
	}

	for i, e := range entities {
		isNew := e.GetID() == 0
		if err := r.save(ctx, tx, e); err != nil {
			return fail(fmt.Errorf("entity %d: %w", i, err))
		}
		if isNew {
			inserted = append(inserted, e)
		}
	}
	if err := tx.Commit(); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}
	return entities, nil
}

func (r *Repo[T, ID]) save(ctx context.Context, ext sqlx.ExtContext, entity T) error {
	if entity.GetID() == 0 {
		return r.insert(ctx, ext, entity)
	}
	return r.update(ctx, ext, entity)
}

func (r *Repo[T, ID]) insert(ctx context.Context, ext sqlx.ExtContext, entity T) error {
	if r.db.Dialect.ReturningID() {
		rows, err := sqlx.NamedQueryContext(ctx, ext, r.q.insert, entity)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", r.table.Name, err)
		}
		defer rows.Close()
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return fmt.Errorf("insert into %s: %w", r.table.Name, err)
			}
			return fmt.Errorf("insert into %s: no id returned", r.table.Name)
		}
		var id ID
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan id: %w", err)
		}
		entity.SetID(id)
		return nil
	}

	res, err := sqlx.NamedExecContext(ctx, ext, r.q.insert, entity)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", r.table.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	entity.SetID(ID(id))
	return nil
}

// update treats zero affected rows as missing only after checking, since
// mysql reports unchanged rows as unaffected.
func (r *Repo[T, ID]) update(ctx context.Context, ext sqlx.ExtContext, entity T) error {
	res, err := sqlx.NamedExecContext(ctx, ext, r.q.update, entity)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.table.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	ok, err := r.exists(ctx, ext, entity.GetID())
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Repo[T, ID]) FindByID(ctx context.Context, id ID) (T, error) {
	entity := r.newEntity()
	if err := r.db.GetContext(ctx, entity, r.q.findByID, id); err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, repository.ErrNotFound
		}
		return zero, fmt.Errorf("find %s %v: %w", r.table.Name, id, err)
	}
	return entity, nil
}

func (r *Repo[T, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	return r.exists(ctx, r.db, id)
}

func (r *Repo[T, ID]) exists(ctx context.Context, q sqlx.QueryerContext, id ID) (bool, error) {
	var n int64
	if err := sqlx.GetContext(ctx, q, &n, r.q.exists, id); err != nil {
		return false, fmt.Errorf("exists %s %v: %w", r.table.Name, id, err)
	}
	return n > 0, nil
}

func (r *Repo[T, ID]) FindAll(ctx context.Context, sort repository.Sort) ([]T, error) {
	orderBy, err := r.orderBy(sort)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := r.db.SelectContext(ctx, &out, r.q.selectAll+orderBy); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.table.Name, err)
	}
	return out, nil
}

func (r *Repo[T, ID]) FindAllByID(ctx context.Context, ids []ID) ([]T, error) {
	ids = repository.UniqueIDs(ids)
	out := []T{}
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(r.q.selectIn, ids)
	if err != nil {
		return nil, fmt.Errorf("expand ids: %w", err)
	}
	if err := r.db.SelectContext(ctx, &out, r.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list %s by id: %w", r.table.Name, err)
	}
	return out, nil
}

func (r *Repo[T, ID]) FindPage(ctx context.Context, p repository.Pageable) (repository.Page[T], error) {
	if err := p.Validate(); err != nil {
		return repository.Page[T]{}, err
	}
	orderBy, err := r.orderBy(p.Sort)
	if err != nil {
		return repository.Page[T]{}, err
	}
	total, err := r.Count(ctx)
	if err != nil {
		return repository.Page[T]{}, err
	}

	content := []T{}
	if int64(p.Offset()) < total {
		query := r.rebind(r.q.selectAll + orderBy + " LIMIT ? OFFSET ?")
		if err := r.db.SelectContext(ctx, &content, query, p.Size, p.Offset()); err != nil {
			return repository.Page[T]{}, fmt.Errorf("page %s: %w", r.table.Name, err)
		}
	}
	return repository.NewPage(content, p, total), nil
}

func (r *Repo[T, ID]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, r.q.count); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table.Name, err)
	}
	return n, nil
}

func (r *Repo[T, ID]) DeleteByID(ctx context.Context, id ID) error {
	res, err := r.db.ExecContext(ctx, r.q.deleteByID, id)
	if err != nil {
		return fmt.Errorf("delete %s %v: %w", r.table.Name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
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
	query, args, err := sqlx.In(r.q.deleteIn, ids)
	if err != nil {
		return fmt.Errorf("expand ids: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.rebind(query), args...); err != nil {
		return fmt.Errorf("delete %s by id: %w", r.table.Name, err)
	}
	return nil
}

// DeleteAll uses DELETE rather than TRUNCATE so auto-increment counters
// keep their position.
func (r *Repo[T, ID]) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.q.deleteAll); err != nil {
		return fmt.Errorf("delete all %s: %w", r.table.Name, err)
	}
	return nil
}

func (r *Repo[T, ID]) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *Repo[T, ID]) rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(r.db.Dialect.DriverName()), query)
}

// orderBy builds the ORDER BY clause from whitelisted properties, always
// ending with the ID for a stable order.
func (r *Repo[T, ID]) orderBy(sort repository.Sort) (string, error) {
	if err := sort.Validate(func(p string) bool { _, ok := r.table.Sortable[p]; return ok }); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(sort.Orders)+1)
	hasID := false
	for _, o := range sort.Orders {
		col := r.table.Sortable[o.Property]
		dir := "ASC"
		if o.Direction == repository.DESC {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
		hasID = hasID || col == r.table.IDColumn
	}
	if !hasID {
		parts = append(parts, r.table.IDColumn+" ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}
