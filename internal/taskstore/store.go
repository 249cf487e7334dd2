package taskstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/alekspetrov/dobby/internal/intent"
)

// Backends selectable in configuration.
const (
	BackendBitable = "bitable"
	BackendSQLite  = "sqlite"
)

// Config selects and configures the record store.
type Config struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ErrStore is wrapped by every failure of the adapter. Callers only learn
// that the operation failed.
var ErrStore = errors.New("task store operation failed")

// RecordStore is the black-box table the adapter drives.
type RecordStore interface {
	Create(ctx context.Context, fields Fields) (string, error)
	// Search returns every record of the table.
	Search(ctx context.Context) ([]Record, error)
	Update(ctx context.Context, id string, fields Fields) error
}

// Matcher picks one candidate for a free-text reference. An empty id with
// a nil error means no candidate fits.
type Matcher interface {
	Match(ctx context.Context, query string, candidates []intent.Candidate) (string, error)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
