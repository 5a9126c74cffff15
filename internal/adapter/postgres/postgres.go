// Package postgres stores entities and places in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/couchcryptid/geocoder-bundle/internal/orm"
)

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS places (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_places_missing_coordinates
		ON places (id) WHERE latitude IS NULL OR longitude IS NULL`,
}

// EnsureSchema creates the tables the service needs.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Persister implements orm.Persister with one database transaction per flush.
type Persister struct {
	db *sql.DB
}

// NewPersister creates a Persister on db.
func NewPersister(db *sql.DB) *Persister {
	return &Persister{db: db}
}

// Transaction runs fn in a transaction and commits when it returns nil.
func (p *Persister) Transaction(ctx context.Context, fn func(w orm.Writer) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&writer{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (p *Persister) CheckReadiness(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

type writer struct {
	tx *sql.Tx
}

func (w *writer) Insert(ctx context.Context, meta *orm.EntityMetadata, entity any) error {
	query, args, generated := insertStatement(meta, entity)
	if !generated {
		_, err := w.tx.ExecContext(ctx, query, args...)
		return err
	}
	var id int64
	if err := w.tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return err
	}
	return meta.SetID(entity, id)
}

func (w *writer) Update(ctx context.Context, meta *orm.EntityMetadata, entity any, cs orm.ChangeSet) error {
	query, args := updateStatement(meta, entity, cs)
	if query == "" {
		return nil
	}
	res, err := w.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no row with %s = %v", meta.PrimaryKey().Column, args[len(args)-1])
	}
	return nil
}

func (w *writer) Delete(ctx context.Context, meta *orm.EntityMetadata, entity any) error {
	pk := meta.PrimaryKey()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", pq.QuoteIdentifier(meta.Table), pq.QuoteIdentifier(pk.Column))
	_, err := w.tx.ExecContext(ctx, query, meta.Value(entity, pk))
	return err
}

// insertStatement builds the INSERT for entity. A zero integer key is left to
// the database and read back with RETURNING; generated reports that case.
func insertStatement(meta *orm.EntityMetadata, entity any) (query string, args []any, generated bool) {
	pk := meta.PrimaryKey()
	id, isInt := meta.IDOf(entity)
	generated = isInt && id == 0

	var cols, marks []string
	for _, f := range meta.Fields {
		if f.PrimaryKey && generated {
			continue
		}
		cols = append(cols, pq.QuoteIdentifier(f.Column))
		args = append(args, meta.Value(entity, f))
		marks = append(marks, fmt.Sprintf("$%d", len(args)))
	}

	query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(meta.Table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if generated {
		query += " RETURNING " + pq.QuoteIdentifier(pk.Column)
	}
	return query, args, generated
}

// updateStatement builds the UPDATE writing the fields in cs, or "" when no
// mapped column changed.
func updateStatement(meta *orm.EntityMetadata, entity any, cs orm.ChangeSet) (string, []any) {
	var sets []string
	var args []any
	for _, name := range cs.Fields() {
		f, ok := meta.Field(name)
		if !ok || f.PrimaryKey {
			continue
		}
		args = append(args, meta.Value(entity, f))
		sets = append(sets, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(f.Column), len(args)))
	}
	if len(sets) == 0 {
		return "", nil
	}
	pk := meta.PrimaryKey()
	args = append(args, meta.Value(entity, pk))
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		pq.QuoteIdentifier(meta.Table), strings.Join(sets, ", "), pq.QuoteIdentifier(pk.Column), len(args))
	return query, args
}
