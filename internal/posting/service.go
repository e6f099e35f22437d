package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ranchbook/ranchbook/internal/accounting/accounts"
	"github.com/ranchbook/ranchbook/internal/accounting/ledger"
	"github.com/ranchbook/ranchbook/internal/inventory"
	"github.com/ranchbook/ranchbook/internal/platform/db"
	"github.com/ranchbook/ranchbook/internal/platform/events"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

// AuditPort records posting activity.
type AuditPort interface {
	Record(ctx context.Context, log core.AuditLog) error
}

// Invalidator drops cached balances after a commit.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// MetricsPort counts posting outcomes.
type MetricsPort interface {
	ObservePosting(documentType, action, outcome string)
}

// LockPort takes the advisory lock a caller asks for.
type LockPort interface {
	Acquire(ctx context.Context, key, token string) (func(), error)
}

// RequestKeyPort records processed Idempotency-Key headers.
type RequestKeyPort interface {
	CheckAndInsert(ctx context.Context, tenantID uuid.UUID, key, module string) error
	Delete(ctx context.Context, tenantID uuid.UUID, key string) error
}

// Dependencies wires the service. Only UnitOfWork, Reader, Writer and Mover are required.
type Dependencies struct {
	UnitOfWork UnitOfWork
	Reader     Reader
	Writer     *ledger.Writer
	Mover      *inventory.Mover
	Resolver   *accounts.Resolver
	Cache      Invalidator
	Audit      AuditPort
	Publisher  events.Publisher
	Metrics    MetricsPort
	Locker     LockPort
	Requests   RequestKeyPort
	Logger     *slog.Logger
}

// Outcome is the result of posting or reversing a document.
type Outcome struct {
	Document            PostableDocument
	LedgerTransactionID uuid.UUID
	AlreadyPosted       bool
	Movements           []inventory.Result
}

// Service posts source documents to the ledger.
type Service struct {
	uow       UnitOfWork
	reader    Reader
	writer    *ledger.Writer
	mover     *inventory.Mover
	resolver  *accounts.Resolver
	cache     Invalidator
	audit     AuditPort
	publisher events.Publisher
	metrics   MetricsPort
	locker    LockPort
	requests  RequestKeyPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the posting service.
func NewService(deps Dependencies) *Service {
	if deps.Writer == nil {
		deps.Writer = ledger.NewWriter(ledger.DuplicateStrict)
	}
	if deps.Mover == nil {
		deps.Mover = inventory.NewMover(inventory.MoverConfig{AllowNegative: true})
	}
	if deps.Resolver == nil {
		deps.Resolver = accounts.NewResolver(accounts.ResolveFirstMatch)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		uow:       deps.UnitOfWork,
		reader:    deps.Reader,
		writer:    deps.Writer,
		mover:     deps.Mover,
		resolver:  deps.Resolver,
		cache:     deps.Cache,
		audit:     deps.Audit,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		locker:    deps.Locker,
		requests:  deps.Requests,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns a document.
func (s *Service) Get(ctx context.Context, actor core.Actor, ref DocumentRef) (PostableDocument, error) {
	return s.reader.Get(ctx, actor.TenantID, ref)
}

// Post moves a document from its pre-posting state to posted, writing its ledger transaction,
// stock movements, payment applications and status in one unit.
func (s *Service) Post(ctx context.Context, actor core.Actor, ref DocumentRef) (Outcome, error) {
	var out Outcome
	err := s.uow.Do(ctx, func(ctx context.Context, tx Tx) error {
		doc, err := tx.Documents().Load(ctx, actor.TenantID, ref)
		if err != nil {
			return err
		}
		if err := checkPostable(doc); err != nil {
			return err
		}
		if err := doc.Validate(); err != nil {
			return err
		}
		controls, err := s.resolve(ctx, tx, actor.TenantID, doc.AccountMapping())
		if err != nil {
			return err
		}
		payables, err := s.allocate(ctx, tx, actor.TenantID, doc)
		if err != nil {
			return err
		}

		plan := &Plan{
			ref:      ref,
			tenantID: actor.TenantID,
			controls: controls,
			move: func(ctx context.Context, in inventory.MovementInput) (inventory.Result, error) {
				return s.mover.Apply(ctx, tx.Inventory(), in)
			},
		}
		if err := doc.BuildLines(ctx, plan); err != nil {
			return err
		}
		h := doc.Header()
		res, err := s.writer.Post(ctx, tx.Ledger(), ledger.PostingInput{
			TenantID:       actor.TenantID,
			SiteID:         h.SiteID,
			SourceType:     string(ref.Type),
			SourceID:       ref.ID,
			IdempotencyKey: ref.IdempotencyKey(),
			Date:           h.Date,
			Description:    h.Description,
			PostedBy:       actor.UserID,
			Lines:          plan.lines,
		})
		if err != nil {
			return err
		}
		if res.Duplicate {
			// Roll back the movements applied above; the caller reports the earlier posting.
			return &core.DuplicateError{Message: "already posted", LedgerTransactionID: res.Transaction.ID.String()}
		}
		for _, p := range payables {
			if err := tx.Documents().SavePayable(ctx, actor.TenantID, p); err != nil {
				return err
			}
		}
		wb := WriteBack{Status: doc.StatusTransition().To, LedgerTransactionID: res.Transaction.ID, At: s.now().UTC(), By: actor.UserID}
		if err := tx.Documents().MarkPosted(ctx, actor.TenantID, ref, wb); err != nil {
			return err
		}
		updated, err := tx.Documents().Load(ctx, actor.TenantID, ref)
		if err != nil {
			return err
		}
		out = Outcome{Document: updated, LedgerTransactionID: res.Transaction.ID, Movements: plan.movements}
		return nil
	})
	if err != nil {
		if isDuplicate(err) {
			return s.alreadyPosted(ctx, actor, ref, err)
		}
		s.observe(ref, "post", err)
		return Outcome{}, err
	}
	s.afterCommit(ctx, actor, "post", ref, out.LedgerTransactionID)
	return out, nil
}

// Reverse posts the mirror image of a document's transaction and moves the document to its
// reversed state. Payments it applied are restored and its stock movements are reversed.
func (s *Service) Reverse(ctx context.Context, actor core.Actor, ref DocumentRef, reason string) (Outcome, error) {
	var out Outcome
	err := s.uow.Do(ctx, func(ctx context.Context, tx Tx) error {
		doc, err := tx.Documents().Load(ctx, actor.TenantID, ref)
		if err != nil {
			return err
		}
		h, tr := doc.Header(), doc.StatusTransition()
		label := describe(doc)
		switch {
		case h.Status == tr.Reversed:
			return core.Preconditionf("%s is already %s", label, h.Status)
		case h.LedgerTransactionID == nil || !tr.isPosted(h.Status):
			return core.Preconditionf("only posted %ss can be reversed; %s is %s", ref.noun(), label, h.Status)
		}
		if paid, ok := doc.(settleable); ok && paid.Paid().IsPositive() {
			return core.Preconditionf("%s has %s in payments applied; reverse those payments first", label, paid.Paid().StringFixed(2))
		}

		_, reversal, err := s.writer.Reverse(ctx, tx.Ledger(), ledger.ReverseInput{
			TenantID:      actor.TenantID,
			TransactionID: *h.LedgerTransactionID,
			Reason:        reason,
			PostedBy:      actor.UserID,
		})
		if err != nil {
			return err
		}
		if a, ok := doc.(allocator); ok {
			restored, err := s.loadPayables(ctx, tx, actor.TenantID, a.Allocations())
			if err != nil {
				return err
			}
			for _, al := range a.Allocations() {
				p := restored[al.Target.ID]
				p.apply(al.Amount.Round(2).Neg(), postedStatus(al.Target.Type))
				restored[al.Target.ID] = p
			}
			for _, id := range sortedIDs(restored) {
				if err := tx.Documents().SavePayable(ctx, actor.TenantID, restored[id]); err != nil {
					return err
				}
			}
		}
		movements, err := s.mover.ReverseSource(ctx, tx.Inventory(), actor.TenantID, ref.ID, "Reversal of "+label)
		if err != nil {
			return err
		}
		wb := WriteBack{Status: tr.Reversed, LedgerTransactionID: reversal.ID, At: s.now().UTC(), By: actor.UserID, Reason: reason}
		if err := tx.Documents().MarkReversed(ctx, actor.TenantID, ref, wb); err != nil {
			return err
		}
		updated, err := tx.Documents().Load(ctx, actor.TenantID, ref)
		if err != nil {
			return err
		}
		out = Outcome{Document: updated, LedgerTransactionID: reversal.ID, Movements: movements}
		return nil
	})
	if err != nil {
		s.observe(ref, "reverse", err)
		return Outcome{}, err
	}
	s.afterCommit(ctx, actor, "reverse", ref, out.LedgerTransactionID)
	return out, nil
}

// ProcessEventInput is a request to post one farm event.
type ProcessEventInput struct {
	EventID uuid.UUID
	// LockerID, when set, holds an advisory lock on the event for the attempt.
	LockerID string
	// RequestKey is the client's Idempotency-Key header.
	RequestKey string
}

const processEventModule = "posting.process-event"

// ProcessEvent posts a farm event.
func (s *Service) ProcessEvent(ctx context.Context, actor core.Actor, in ProcessEventInput) (Outcome, error) {
	ref := DocumentRef{Type: TypeEvent, ID: in.EventID}
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, core.PostingLockKey(actor.TenantID, string(TypeEvent), in.EventID), in.LockerID)
		if err != nil {
			return Outcome{}, err
		}
		defer release()
	}
	if in.RequestKey != "" && s.requests != nil {
		err := s.requests.CheckAndInsert(ctx, actor.TenantID, in.RequestKey, processEventModule)
		if errors.Is(err, core.ErrIdempotencyConflict) {
			return s.alreadyPosted(ctx, actor, ref, &core.DuplicateError{Message: "request " + in.RequestKey + " was already processed"})
		}
		if err != nil {
			return Outcome{}, err
		}
	}
	out, err := s.Post(ctx, actor, ref)
	if err != nil && in.RequestKey != "" && s.requests != nil {
		if derr := s.requests.Delete(context.WithoutCancel(ctx), actor.TenantID, in.RequestKey); derr != nil {
			s.logger.Warn("release request key", slog.String("key", in.RequestKey), slog.Any("error", derr))
		}
	}
	return out, err
}

func checkPostable(doc PostableDocument) error {
	h, tr := doc.Header(), doc.StatusTransition()
	if h.LedgerTransactionID != nil && tr.isPosted(h.Status) {
		return &core.DuplicateError{Message: describe(doc) + " already posted", LedgerTransactionID: h.LedgerTransactionID.String()}
	}
	if h.LedgerTransactionID != nil || h.Status != tr.From {
		return core.Preconditionf("only %s %ss can be posted; %s is %s", tr.From, doc.Ref().noun(), describe(doc), h.Status)
	}
	return nil
}

func describe(doc PostableDocument) string {
	ref := doc.Ref()
	if n := doc.Header().Number; n != "" {
		return ref.noun() + " " + n
	}
	return ref.noun() + " " + ref.ID.String()
}

// resolve finds the account of every mapped role against the unit's view of the chart.
func (s *Service) resolve(ctx context.Context, tx Tx, tenantID uuid.UUID, mappings []Mapping) (map[accounts.ControlKind]uuid.UUID, error) {
	controls := make(map[accounts.ControlKind]uuid.UUID)
	if len(mappings) == 0 {
		return controls, nil
	}
	chart, err := tx.Accounts().ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, m := range mappings {
		if len(m.Kinds) == 0 {
			continue
		}
		if _, done := controls[m.Role]; done {
			continue
		}
		var found *accounts.Account
		for _, kind := range m.Kinds {
			acc, err := s.resolver.Resolve(chart, kind)
			if err != nil {
				return nil, err
			}
			if acc != nil {
				found = acc
				break
			}
		}
		if found == nil {
			return nil, &core.PreconditionError{Message: accounts.MissingMessage(m.Kinds[len(m.Kinds)-1])}
		}
		controls[m.Role] = found.ID
	}
	return controls, nil
}

// allocate checks a payment's allocations against the open balances and returns the
// payables as they will be after the payment.
func (s *Service) allocate(ctx context.Context, tx Tx, tenantID uuid.UUID, doc PostableDocument) ([]Payable, error) {
	a, ok := doc.(allocator)
	if !ok {
		return nil, nil
	}
	allocations := a.Allocations()
	for _, al := range allocations {
		if !al.Amount.IsPositive() {
			return nil, core.NewValidationError("invalid payment", map[string]string{
				fmt.Sprintf("payments[%d].amount", al.LineNo): "must be greater than 0",
			})
		}
	}
	payables, err := s.loadPayables(ctx, tx, tenantID, allocations)
	if err != nil {
		return nil, err
	}
	for _, al := range allocations {
		p := payables[al.Target.ID]
		posted := postedStatus(al.Target.Type)
		if p.Status != posted && p.Status != StatusPartiallyPaid {
			return nil, core.Preconditionf("line %d: %s %s is %s; only open %ss can be paid", al.LineNo, al.Target.noun(), p.Number, p.Status, al.Target.noun())
		}
		amount := al.Amount.Round(2)
		if amount.GreaterThan(p.BalanceDue) {
			return nil, core.Preconditionf("line %d: payment %s exceeds the %s balance due on %s %s",
				al.LineNo, amount.StringFixed(2), p.BalanceDue.StringFixed(2), al.Target.noun(), p.Number)
		}
		p.apply(amount, posted)
		payables[al.Target.ID] = p
	}
	out := make([]Payable, 0, len(payables))
	for _, id := range sortedIDs(payables) {
		out = append(out, payables[id])
	}
	return out, nil
}

// loadPayables locks every target once, in id order.
func (s *Service) loadPayables(ctx context.Context, tx Tx, tenantID uuid.UUID, allocations []Allocation) (map[uuid.UUID]Payable, error) {
	targets := make(map[uuid.UUID]DocumentRef)
	for _, al := range allocations {
		targets[al.Target.ID] = al.Target
	}
	ids := make([]uuid.UUID, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	payables := make(map[uuid.UUID]Payable, len(ids))
	for _, id := range ids {
		p, err := tx.Documents().LoadPayable(ctx, tenantID, targets[id])
		if err != nil {
			return nil, err
		}
		payables[id] = p
	}
	return payables, nil
}

func sortedIDs(payables map[uuid.UUID]Payable) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(payables))
	for id := range payables {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// postedStatus is the status of a payable document with nothing paid yet.
func postedStatus(t DocumentType) Status {
	if t == TypeInvoice {
		return StatusSent
	}
	return StatusPosted
}

func isDuplicate(err error) bool {
	return errors.Is(err, core.ErrDuplicatePosting) || db.IsSerializationFailure(err)
}

// alreadyPosted re-reads a document after a duplicate posting and reports the first result.
// A loser of a concurrent post can still see the document in DRAFT, so the earlier transaction
// is taken from the document, then from the duplicate error, then looked up by idempotency key.
func (s *Service) alreadyPosted(ctx context.Context, actor core.Actor, ref DocumentRef, cause error) (Outcome, error) {
	doc, err := s.reader.Get(ctx, actor.TenantID, ref)
	if err != nil {
		s.observe(ref, "post", cause)
		return Outcome{}, cause
	}
	txID, ok := s.existingTransaction(ctx, actor.TenantID, ref, doc, cause)
	if !ok {
		s.observe(ref, "post", cause)
		return Outcome{}, cause
	}
	s.observe(ref, "post", core.ErrDuplicatePosting)
	if s.writer.Mode() == ledger.DuplicateReturnExisting {
		return Outcome{Document: doc, LedgerTransactionID: txID, AlreadyPosted: true}, nil
	}
	return Outcome{}, &core.DuplicateError{Message: describe(doc) + " already posted", LedgerTransactionID: txID.String()}
}

func (s *Service) existingTransaction(ctx context.Context, tenantID uuid.UUID, ref DocumentRef, doc PostableDocument, cause error) (uuid.UUID, bool) {
	if id := doc.Header().LedgerTransactionID; id != nil {
		return *id, true
	}
	var dup *core.DuplicateError
	if errors.As(cause, &dup) && dup.LedgerTransactionID != "" {
		if id, err := uuid.Parse(dup.LedgerTransactionID); err == nil {
			return id, true
		}
	}
	var found uuid.UUID
	err := s.uow.Do(ctx, func(ctx context.Context, tx Tx) error {
		txn, err := tx.Ledger().FindByIdempotencyKey(ctx, tenantID, ref.IdempotencyKey())
		found = txn.ID
		return err
	})
	return found, err == nil && found != uuid.Nil
}

func (s *Service) afterCommit(ctx context.Context, actor core.Actor, action string, ref DocumentRef, txID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	now := s.now().UTC()
	s.observe(ref, action, nil)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate balance cache", slog.Any("error", err))
		}
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, core.AuditLog{
			TenantID: actor.TenantID,
			ActorID:  actor.UserID,
			Action:   "posting." + action,
			Entity:   string(ref.Type),
			EntityID: ref.ID.String(),
			Meta:     map[string]any{"ledger_transaction_id": txID.String()},
			At:       now,
		}); err != nil {
			s.logger.Warn("record audit log", slog.String("action", action), slog.Any("error", err))
		}
	}
	eventType := events.TypeTransactionPosted
	if action == "reverse" {
		eventType = events.TypeTransactionReversed
	}
	if err := s.publisher.Publish(ctx, events.PostedEvent{
		Type:                eventType,
		TenantID:            actor.TenantID,
		DocumentType:        string(ref.Type),
		DocumentID:          ref.ID,
		LedgerTransactionID: txID,
		ActorID:             actor.UserID,
		OccurredAt:          now,
	}); err != nil {
		s.logger.Warn("publish ledger event", slog.String("type", eventType), slog.Any("error", err))
	}
	s.logger.Info("document "+action,
		slog.String("tenant_id", actor.TenantID.String()),
		slog.String("document_type", string(ref.Type)),
		slog.String("document_id", ref.ID.String()),
		slog.String("ledger_transaction_id", txID.String()))
}

func (s *Service) observe(ref DocumentRef, action string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObservePosting(string(ref.Type), action, outcomeLabel(err))
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, core.ErrDuplicatePosting):
		return "duplicate"
	case errors.Is(err, core.ErrValidation):
		return "validation"
	case errors.Is(err, core.ErrPrecondition):
		return "precondition"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
