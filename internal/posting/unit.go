package posting

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ranchbook/ranchbook/internal/accounting/accounts"
	"github.com/ranchbook/ranchbook/internal/accounting/ledger"
	"github.com/ranchbook/ranchbook/internal/inventory"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

// ErrDocumentNotFound wraps core.ErrNotFound for every document type.
var ErrDocumentNotFound = fmt.Errorf("posting: document %w", core.ErrNotFound)

func notFound(ref DocumentRef) error {
	return fmt.Errorf("posting: %s %s: %w", ref.noun(), ref.ID, ErrDocumentNotFound)
}

// DocumentStore reads and writes source documents inside a unit of work.
type DocumentStore interface {
	// Load returns the document with its lines, locked for the rest of the unit.
	Load(ctx context.Context, tenantID uuid.UUID, ref DocumentRef) (PostableDocument, error)
	MarkPosted(ctx context.Context, tenantID uuid.UUID, ref DocumentRef, wb WriteBack) error
	MarkReversed(ctx context.Context, tenantID uuid.UUID, ref DocumentRef, wb WriteBack) error
	// LoadPayable returns the balance of an invoice or bill, locked for the rest of the unit.
	LoadPayable(ctx context.Context, tenantID uuid.UUID, ref DocumentRef) (Payable, error)
	SavePayable(ctx context.Context, tenantID uuid.UUID, p Payable) error
	NextNumber(ctx context.Context, tenantID uuid.UUID, sequence string) (int64, error)
	Insert(ctx context.Context, doc PostableDocument) error
}

// Tx is the set of repositories sharing one database transaction.
type Tx interface {
	Documents() DocumentStore
	Ledger() ledger.TxRepository
	Inventory() inventory.TxRepository
	Accounts() accounts.Lister
}

// UnitOfWork runs fn atomically: every write inside fn commits together or not at all.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(context.Context, Tx) error) error
}

// Reader loads documents outside a unit of work.
type Reader interface {
	Get(ctx context.Context, tenantID uuid.UUID, ref DocumentRef) (PostableDocument, error)
}
