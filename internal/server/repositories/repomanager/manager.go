package repomanager

import (
	"context"
	"database/sql"

	"github.com/dkarpov/papersync/internal/dbx"
	"github.com/dkarpov/papersync/internal/server/repositories/documents"
	"github.com/dkarpov/papersync/internal/server/repositories/refreshtokens"
	"github.com/dkarpov/papersync/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// provides the transaction discipline for multi-row changes. Services keep
// one manager plus the raw *sql.DB and ask for repositories per call.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error

	// WithTx runs fn atomically. The DBTX handed to fn must be passed to
	// the repository accessors used inside.
	WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error

	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Documents(db dbx.DBTX) documents.Repository
}
