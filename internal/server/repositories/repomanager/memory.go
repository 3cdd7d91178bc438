package repomanager

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dkarpov/papersync/internal/dbx"
	"github.com/dkarpov/papersync/internal/server/repositories/documents"
	"github.com/dkarpov/papersync/internal/server/repositories/refreshtokens"
	"github.com/dkarpov/papersync/internal/server/repositories/users"
)

// MemoryRepositoryManager backs all repositories with in-process maps. It
// ignores the DBTX arguments, so services can run with a nil database.
// WithTx serializes callers with a mutex instead of a real transaction,
// which is enough for the single-process test scenarios it exists for.
type MemoryRepositoryManager struct {
	mu            sync.Mutex
	users         *users.MemoryRepository
	refreshTokens *refreshtokens.MemoryRepository
	documents     *documents.MemoryRepository
}

// NewMemoryRepositoryManager constructs an in-memory RepositoryManager.
func NewMemoryRepositoryManager() RepositoryManager {
	return &MemoryRepositoryManager{
		users:         users.NewMemoryRepository(),
		refreshTokens: refreshtokens.NewMemoryRepository(),
		documents:     documents.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return m.users
}

func (m *MemoryRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return m.refreshTokens
}

func (m *MemoryRepositoryManager) Documents(db dbx.DBTX) documents.Repository {
	return m.documents
}

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, nil)
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}
