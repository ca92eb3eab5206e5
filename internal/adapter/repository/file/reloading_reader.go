package file

import (
	"context"
	"fmt"

	"github.com/iller75/BybitMover/internal/domain"
)

// ReloadingReader re-reads the ledger file on every List. It serves reports
// from a process that does not own the ledger.
type ReloadingReader struct {
	repo *LedgerRepository
}

// NewReloadingReader wraps repo.
func NewReloadingReader(repo *LedgerRepository) *ReloadingReader {
	return &ReloadingReader{repo: repo}
}

// List reloads the file and returns its records.
func (r *ReloadingReader) List(ctx context.Context) ([]*domain.TransferRecord, error) {
	if err := r.repo.Reload(ctx); err != nil {
		return nil, fmt.Errorf("reload ledger %s: %w", r.repo.Path(), err)
	}
	return r.repo.List(ctx)
}
