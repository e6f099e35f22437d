package posting

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranchbook/ranchbook/internal/accounting/accounts"
	"github.com/ranchbook/ranchbook/internal/accounting/journals"
	"github.com/ranchbook/ranchbook/internal/accounting/ledger"
	acctshared "github.com/ranchbook/ranchbook/internal/accounting/shared"
	"github.com/ranchbook/ranchbook/internal/inventory"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

type siteKey struct{ site, item uuid.UUID }

// memoryState is the whole database of the in-memory unit of work.
type memoryState struct {
	docs      map[uuid.UUID]PostableDocument
	accounts  map[uuid.UUID]accounts.Account
	txns      map[uuid.UUID]ledger.Transaction
	keys      map[string]uuid.UUID
	items     map[uuid.UUID]inventory.Item
	balances  map[siteKey]inventory.SiteBalance
	movements []inventory.Movement
	sequences map[string]int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		docs:      make(map[uuid.UUID]PostableDocument),
		accounts:  make(map[uuid.UUID]accounts.Account),
		txns:      make(map[uuid.UUID]ledger.Transaction),
		keys:      make(map[string]uuid.UUID),
		items:     make(map[uuid.UUID]inventory.Item),
		balances:  make(map[siteKey]inventory.SiteBalance),
		sequences: make(map[string]int64),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for id, d := range s.docs {
		c.docs[id] = cloneDoc(d)
	}
	for id, a := range s.accounts {
		c.accounts[id] = a
	}
	for id, t := range s.txns {
		t.Entries = append([]ledger.Entry(nil), t.Entries...)
		c.txns[id] = t
	}
	for k, v := range s.keys {
		c.keys[k] = v
	}
	for id, item := range s.items {
		c.items[id] = item
	}
	for k, b := range s.balances {
		c.balances[k] = b
	}
	c.movements = append([]inventory.Movement(nil), s.movements...)
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

func cloneDoc(doc PostableDocument) PostableDocument {
	switch d := doc.(type) {
	case *Invoice:
		c := *d
		c.Lines = append([]InvoiceLine(nil), d.Lines...)
		return &c
	case *Bill:
		c := *d
		c.Lines = append([]BillLine(nil), d.Lines...)
		return &c
	case *Check:
		c := *d
		c.Lines = append([]CheckLine(nil), d.Lines...)
		c.BillPayments = append([]BillPayment(nil), d.BillPayments...)
		return &c
	case *Receipt:
		c := *d
		c.InvoicePayments = append([]InvoicePayment(nil), d.InvoicePayments...)
		return &c
	case *Event:
		c := *d
		c.Lines = append([]EventLine(nil), d.Lines...)
		return &c
	case *journalDocument:
		c := *d
		c.entry.Lines = append([]journals.Line(nil), d.entry.Lines...)
		return &c
	}
	panic("unknown document")
}

// memoryUnit runs each unit on a copy of the state and keeps the copy only on success.
type memoryUnit struct {
	mu    sync.Mutex
	state *memoryState
	// failAfter, when set, fails the unit after fn succeeds, simulating a storage error at commit.
	failAfter error
}

func newMemoryUnit() *memoryUnit {
	return &memoryUnit{state: newMemoryState()}
}

func (u *memoryUnit) Do(ctx context.Context, fn func(context.Context, Tx) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	work := u.state.clone()
	if err := fn(ctx, &memoryTx{s: work}); err != nil {
		return err
	}
	if u.failAfter != nil {
		return u.failAfter
	}
	u.state = work
	return nil
}

func (u *memoryUnit) Get(_ context.Context, tenantID uuid.UUID, ref DocumentRef) (PostableDocument, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return memoryDocs{u.state}.get(tenantID, ref)
}

type memoryTx struct{ s *memoryState }

func (t *memoryTx) Documents() DocumentStore          { return memoryDocs{t.s} }
func (t *memoryTx) Ledger() ledger.TxRepository       { return memoryLedger{t.s} }
func (t *memoryTx) Inventory() inventory.TxRepository { return memoryInventory{t.s} }
func (t *memoryTx) Accounts() accounts.Lister         { return memoryAccounts{t.s} }

type memoryDocs struct{ s *memoryState }

func (m memoryDocs) get(tenantID uuid.UUID, ref DocumentRef) (PostableDocument, error) {
	doc, ok := m.s.docs[ref.ID]
	if !ok || doc.Ref().Type != ref.Type || doc.Header().TenantID != tenantID {
		return nil, notFound(ref)
	}
	return cloneDoc(doc), nil
}

func (m memoryDocs) Load(_ context.Context, tenantID uuid.UUID, ref DocumentRef) (PostableDocument, error) {
	return m.get(tenantID, ref)
}

func (m memoryDocs) MarkPosted(_ context.Context, tenantID uuid.UUID, ref DocumentRef, wb WriteBack) error {
	doc, err := m.get(tenantID, ref)
	if err != nil {
		return err
	}
	if doc.Header().LedgerTransactionID != nil {
		return notFound(ref)
	}
	txID, at := wb.LedgerTransactionID, wb.At
	switch d := doc.(type) {
	case *Invoice:
		d.Status, d.LedgerTransactionID, d.PostedAt, d.PostedBy = wb.Status, &txID, &at, wb.By
	case *Bill:
		d.Status, d.LedgerTransactionID, d.PostedAt, d.PostedBy = wb.Status, &txID, &at, wb.By
	case *Check:
		d.Status, d.LedgerTransactionID, d.PostedAt, d.PostedBy = wb.Status, &txID, &at, wb.By
	case *Receipt:
		d.Status, d.LedgerTransactionID, d.PostedAt, d.PostedBy = wb.Status, &txID, &at, wb.By
	case *Event:
		d.Status, d.LedgerTransactionID, d.PostedAt, d.PostedBy = wb.Status, &txID, &at, wb.By
	case *journalDocument:
		d.entry.Status, d.entry.LedgerTransactionID, d.entry.PostedAt, d.entry.PostedBy = journals.StatusPosted, &txID, &at, wb.By
	}
	m.s.docs[ref.ID] = doc
	return nil
}

func (m memoryDocs) MarkReversed(_ context.Context, tenantID uuid.UUID, ref DocumentRef, wb WriteBack) error {
	doc, err := m.get(tenantID, ref)
	if err != nil {
		return err
	}
	switch d := doc.(type) {
	case *Invoice:
		d.Status = wb.Status
	case *Bill:
		d.Status = wb.Status
	case *Check:
		d.Status = wb.Status
	case *Receipt:
		d.Status = wb.Status
	case *Event:
		d.Status = wb.Status
	case *journalDocument:
		txID, at := wb.LedgerTransactionID, wb.At
		d.entry.Status = journals.StatusReversed
		d.entry.ReversalTransactionID, d.entry.ReversalReason, d.entry.ReversedAt, d.entry.ReversedBy = &txID, wb.Reason, &at, wb.By
	}
	m.s.docs[ref.ID] = doc
	return nil
}

func (m memoryDocs) LoadPayable(_ context.Context, tenantID uuid.UUID, ref DocumentRef) (Payable, error) {
	doc, err := m.get(tenantID, ref)
	if err != nil {
		return Payable{}, err
	}
	switch d := doc.(type) {
	case *Invoice:
		return Payable{Ref: ref, Number: d.Number, Status: d.Status, Total: d.Total, AmountPaid: d.AmountPaid, BalanceDue: d.BalanceDue}, nil
	case *Bill:
		return Payable{Ref: ref, Number: d.Number, Status: d.Status, Total: d.Total, AmountPaid: d.AmountPaid, BalanceDue: d.BalanceDue}, nil
	}
	return Payable{}, notFound(ref)
}

func (m memoryDocs) SavePayable(_ context.Context, tenantID uuid.UUID, p Payable) error {
	doc, err := m.get(tenantID, p.Ref)
	if err != nil {
		return err
	}
	switch d := doc.(type) {
	case *Invoice:
		d.Status, d.AmountPaid, d.BalanceDue = p.Status, p.AmountPaid, p.BalanceDue
	case *Bill:
		d.Status, d.AmountPaid, d.BalanceDue = p.Status, p.AmountPaid, p.BalanceDue
	}
	m.s.docs[p.Ref.ID] = doc
	return nil
}

func (m memoryDocs) NextNumber(_ context.Context, tenantID uuid.UUID, sequence string) (int64, error) {
	k := tenantID.String() + "/" + sequence
	m.s.sequences[k]++
	return m.s.sequences[k], nil
}

func (m memoryDocs) Insert(_ context.Context, doc PostableDocument) error {
	m.s.docs[doc.Ref().ID] = cloneDoc(doc)
	return nil
}

type memoryLedger struct{ s *memoryState }

func (m memoryLedger) FindByIdempotencyKey(_ context.Context, tenantID uuid.UUID, key string) (ledger.Transaction, error) {
	id, ok := m.s.keys[tenantID.String()+"/"+key]
	if !ok {
		return ledger.Transaction{}, acctshared.ErrTransactionNotFound
	}
	return m.s.txns[id], nil
}

func (m memoryLedger) GetTransactionForUpdate(_ context.Context, tenantID, id uuid.UUID) (ledger.Transaction, error) {
	txn, ok := m.s.txns[id]
	if !ok || txn.TenantID != tenantID {
		return ledger.Transaction{}, acctshared.ErrTransactionNotFound
	}
	return txn, nil
}

func (m memoryLedger) InactiveOrUnknownAccounts(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	var bad []uuid.UUID
	for _, id := range ids {
		if acc, ok := m.s.accounts[id]; !ok || !acc.IsActive || acc.TenantID != tenantID {
			bad = append(bad, id)
		}
	}
	return bad, nil
}

func (m memoryLedger) InsertTransaction(_ context.Context, txn ledger.Transaction) error {
	k := txn.TenantID.String() + "/" + txn.IdempotencyKey
	if _, ok := m.s.keys[k]; ok {
		return acctshared.ErrIdempotencyConflict
	}
	m.s.keys[k] = txn.ID
	m.s.txns[txn.ID] = txn
	return nil
}

func (m memoryLedger) InsertEntries(_ context.Context, _ uuid.UUID, entries []ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	txn := m.s.txns[entries[0].TransactionID]
	txn.Entries = append(append([]ledger.Entry(nil), txn.Entries...), entries...)
	m.s.txns[txn.ID] = txn
	return nil
}

func (m memoryLedger) ApplyBalanceDeltas(_ context.Context, _ uuid.UUID, netDebits map[uuid.UUID]decimal.Decimal) error {
	for id, delta := range netDebits {
		acc := m.s.accounts[id]
		if acc.NormalBalance == accounts.NormalCredit {
			acc.CurrentBalance = acc.CurrentBalance.Sub(delta)
		} else {
			acc.CurrentBalance = acc.CurrentBalance.Add(delta)
		}
		m.s.accounts[id] = acc
	}
	return nil
}

func (m memoryLedger) MarkReversed(_ context.Context, _ uuid.UUID, id, reversedBy uuid.UUID) error {
	txn := m.s.txns[id]
	if txn.Status != ledger.StatusPosted {
		return acctshared.ErrAlreadyReversed
	}
	txn.Status = ledger.StatusReversed
	txn.ReversedByTransactionID = &reversedBy
	m.s.txns[id] = txn
	return nil
}

type memoryInventory struct{ s *memoryState }

func (m memoryInventory) GetItemForUpdate(_ context.Context, tenantID, itemID uuid.UUID) (inventory.Item, error) {
	item, ok := m.s.items[itemID]
	if !ok || item.TenantID != tenantID {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	return item, nil
}

func (m memoryInventory) GetSiteBalanceForUpdate(_ context.Context, _, siteID, itemID uuid.UUID) (inventory.SiteBalance, error) {
	b, ok := m.s.balances[siteKey{siteID, itemID}]
	if !ok {
		return inventory.SiteBalance{}, inventory.ErrBalanceNotFound
	}
	return b, nil
}

func (m memoryInventory) UpsertSiteBalance(_ context.Context, b inventory.SiteBalance) error {
	m.s.balances[siteKey{b.SiteID, b.ItemID}] = b
	return nil
}

func (m memoryInventory) UpdateItemTotals(_ context.Context, item inventory.Item) error {
	m.s.items[item.ID] = item
	return nil
}

func (m memoryInventory) InsertMovement(_ context.Context, mv inventory.Movement) error {
	m.s.movements = append(m.s.movements, mv)
	return nil
}

func (m memoryInventory) GetMovement(_ context.Context, _, id uuid.UUID) (inventory.Movement, error) {
	for _, mv := range m.s.movements {
		if mv.ID == id {
			return mv, nil
		}
	}
	return inventory.Movement{}, inventory.ErrMovementNotFound
}

func (m memoryInventory) IsMovementReversed(_ context.Context, _, id uuid.UUID) (bool, error) {
	for _, mv := range m.s.movements {
		if mv.ReversesMovementID != nil && *mv.ReversesMovementID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m memoryInventory) ListMovementsBySource(_ context.Context, _, sourceID uuid.UUID) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, mv := range m.s.movements {
		if mv.SourceID != nil && *mv.SourceID == sourceID {
			out = append(out, mv)
		}
	}
	return out, nil
}

type memoryAccounts struct{ s *memoryState }

func (m memoryAccounts) ListActive(_ context.Context, tenantID uuid.UUID) ([]accounts.Account, error) {
	var out []accounts.Account
	for _, acc := range m.s.accounts {
		if acc.TenantID == tenantID && acc.IsActive {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// memoryRequests stands in for the Idempotency-Key store.
type memoryRequests struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryRequests() *memoryRequests {
	return &memoryRequests{keys: make(map[string]string)}
}

func (r *memoryRequests) CheckAndInsert(_ context.Context, tenantID uuid.UUID, key, module string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := tenantID.String() + "/" + key
	if _, ok := r.keys[k]; ok {
		return core.ErrIdempotencyConflict
	}
	r.keys[k] = module
	return nil
}

func (r *memoryRequests) Delete(_ context.Context, tenantID uuid.UUID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, tenantID.String()+"/"+key)
	return nil
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingMetrics) ObservePosting(documentType, action, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[documentType+"/"+action+"/"+outcome]++
}

func (c *countingMetrics) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}
