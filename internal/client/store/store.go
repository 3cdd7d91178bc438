// Package store assembles the client repositories over one SQLite database
// and provides the transaction discipline for multi-row changes: a document
// create with attachments, or a delete with cascade, tombstone, and queue
// entry, commits or rolls back as one unit.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dkarpov/papersync/internal/client/migrations"
	"github.com/dkarpov/papersync/internal/client/models"
	"github.com/dkarpov/papersync/internal/client/repositories/attachments"
	"github.com/dkarpov/papersync/internal/client/repositories/conflicts"
	"github.com/dkarpov/papersync/internal/client/repositories/documents"
	"github.com/dkarpov/papersync/internal/client/repositories/queue"
	"github.com/dkarpov/papersync/internal/client/repositories/tombstones"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repos bundles all repositories bound to one DBTX, either the raw database
// for reads or a transaction inside WithTx.
type Repos struct {
	Documents   documents.Repository
	Attachments attachments.Repository
	Tombstones  tombstones.Repository
	Queue       queue.Repository
	Conflicts   conflicts.Repository
}

func newRepos(db dbx.DBTX) *Repos {
	return &Repos{
		Documents:   documents.NewSQLiteRepository(db),
		Attachments: attachments.NewSQLiteRepository(db),
		Tombstones:  tombstones.NewSQLiteRepository(db),
		Queue:       queue.NewSQLiteRepository(db),
		Conflicts:   conflicts.NewSQLiteRepository(db),
	}
}

// Store is the local persistence root of the sync engine.
type Store struct {
	db    *sql.DB
	repos *Repos
}

// Open opens (or creates) the local database and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	// per-entity writes are serialized at the store level
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	return &Store{db: db, repos: newRepos(db)}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Repos returns repositories bound directly to the database, suitable for
// single-statement reads and writes.
func (s *Store) Repos() *Repos {
	return s.repos
}

// WithTx runs fn with repositories bound to one transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r *Repos) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, newRepos(tx))
	})
}

// Transition moves a document to a new sync state, enforcing the state
// machine. Illegal edges fail with ErrValidation.
func (s *Store) Transition(ctx context.Context, r *Repos, syncID string, to models.SyncState) error {
	d, err := r.Documents.Get(ctx, syncID)
	if err != nil {
		return err
	}
	if !models.CanTransition(d.SyncState, to) {
		return fmt.Errorf("%w: illegal sync state transition %s -> %s for %s",
			common.ErrValidation, d.SyncState, to, syncID)
	}
	return r.Documents.UpdateState(ctx, syncID, to)
}
