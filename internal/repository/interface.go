package repository

import (
	"context"
	"errors"

	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate value for unique field")
)

// Reader reads records and edges. Readers handed out by Store.View and
// Store.Atomic are bound to one transaction and must not outlive it.
type Reader interface {
	// Records returns every record of a model in natural (id) order.
	Records(model string) ([]schema.Record, error)
	// Record returns one record or a NotFound error wrapping ErrRecordNotFound.
	Record(model string, id int64) (schema.Record, error)
	// Pairs returns every instance of an edge.
	Pairs(edge string) ([]schema.Pair, error)
	HasPair(edge string, p schema.Pair) (bool, error)
	// CountPairs counts the edges whose side column equals id.
	CountPairs(edge string, side schema.Side, id int64) (int64, error)
}

// Tx is a Reader that can also write. All writes made through one Tx commit
// or roll back together.
type Tx interface {
	Reader
	// Insert stores a new record and returns its id.
	Insert(model string, values map[string]any) (int64, error)
	// Update assigns several stored fields of one record at once.
	Update(model string, id int64, values map[string]any) error
	// InsertPair adds an edge. It reports false when the edge already existed.
	InsertPair(edge string, p schema.Pair) (bool, error)
	// DeletePair removes an edge. It reports false when the edge did not exist.
	DeletePair(edge string, p schema.Pair) (bool, error)
	// AddToCounter adds delta to a stored counter field.
	AddToCounter(model string, id int64, field string, delta int64) error
	// RecordForUpdate reads one record and holds a row lock on it until the
	// transaction ends.
	RecordForUpdate(model string, id int64) (schema.Record, error)
	// SetCounter overwrites a stored counter field.
	SetCounter(model string, id int64, field string, value int64) error
}

// Store is the storage interface the query engine and mutation executor run
// against. Errors it returns are classified: NotFound, ErrDuplicate,
// Unavailable for transient backend failures, or Internal.
type Store interface {
	// View runs fn against a read-only snapshot.
	View(ctx context.Context, fn func(r Reader) error) error
	// Atomic runs fn in a single transaction.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}
