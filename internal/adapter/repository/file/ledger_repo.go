package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/domain"
)

// legacyTimestampLayout matches timestamps written without a zone offset.
const legacyTimestampLayout = "2006-01-02T15:04:05.999999999"

// fileRecord is the on-disk shape of a transfer record.
type fileRecord struct {
	ID          string      `json:"id,omitempty"`
	FromAccount string      `json:"from_account"`
	ToAccount   string      `json:"to_account"`
	Amount      json.Number `json:"amount"`
	Timestamp   string      `json:"timestamp"`
}

// LedgerRepository implements usecase.Ledger as a JSON array in a single file.
// Every append rewrites the whole file through a temp file and a rename, so a
// crash leaves either the old or the new contents.
type LedgerRepository struct {
	path string

	mu      sync.RWMutex
	records []*domain.TransferRecord
}

// NewLedgerRepository loads the ledger at path. A missing file is an empty
// ledger; an unreadable or malformed one is an error.
func NewLedgerRepository(path string) (*LedgerRepository, error) {
	r := &LedgerRepository{path: path}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the file backing the ledger.
func (r *LedgerRepository) Path() string {
	return r.path
}

func (r *LedgerRepository) load() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		r.records = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	var raw []fileRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode ledger %s: %w", r.path, err)
	}

	records := make([]*domain.TransferRecord, 0, len(raw))
	for i, fr := range raw {
		record, err := fr.toDomain()
		if err != nil {
			return fmt.Errorf("decode ledger %s: record %d: %w", r.path, i, err)
		}
		records = append(records, record)
	}

	r.records = records
	return nil
}

// Append adds a record and persists the ledger. When the write fails the
// record is kept in memory and written out with the next successful append.
func (r *LedgerRepository) Append(ctx context.Context, record *domain.TransferRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, record)

	if err := r.persist(); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// List returns every record in insertion order.
func (r *LedgerRepository) List(ctx context.Context) ([]*domain.TransferRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.TransferRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

// Reload re-reads the file. The report server uses it to pick up appends made
// by a separate sweeping process.
func (r *LedgerRepository) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *LedgerRepository) persist() error {
	raw := make([]fileRecord, 0, len(r.records))
	for _, record := range r.records {
		raw = append(raw, fromDomain(record))
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func fromDomain(record *domain.TransferRecord) fileRecord {
	return fileRecord{
		ID:          record.ID,
		FromAccount: record.FromAccount,
		ToAccount:   record.ToAccount,
		Amount:      json.Number(record.Amount.String()),
		Timestamp:   record.Timestamp.Format(time.RFC3339Nano),
	}
}

func (fr fileRecord) toDomain() (*domain.TransferRecord, error) {
	amount, err := decimal.NewFromString(fr.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", fr.Amount, err)
	}

	ts, err := parseTimestamp(fr.Timestamp)
	if err != nil {
		return nil, err
	}

	return &domain.TransferRecord{
		ID:          fr.ID,
		FromAccount: fr.FromAccount,
		ToAccount:   fr.ToAccount,
		Amount:      amount,
		Timestamp:   ts,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(legacyTimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return ts, nil
}
