package journals

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	core "github.com/ranchbook/ranchbook/internal/shared"
)

// RepositoryPort abstracts journal persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (Entry, error)
	List(ctx context.Context, tenantID uuid.UUID, status Status) ([]Entry, error)
}

// AuditPort records draft changes.
type AuditPort interface {
	Record(ctx context.Context, log core.AuditLog) error
}

// Service manages journal drafts. Posting and reversal run through the posting units.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the draft service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns the tenant's entries, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, status Status) ([]Entry, error) {
	return s.repo.List(ctx, tenantID, status)
}

// Get loads one entry with lines.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (Entry, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// Create stores a new DRAFT with the next tenant number.
func (s *Service) Create(ctx context.Context, in DraftInput) (Entry, error) {
	date, err := in.Validate()
	if err != nil {
		return Entry{}, err
	}
	now := s.now().UTC()
	entry := Entry{
		ID:        uuid.New(),
		TenantID:  in.TenantID,
		SiteID:    in.SiteID,
		EntryDate: date,
		Memo:      strings.TrimSpace(in.Memo),
		Status:    StatusDraft,
		CreatedBy: in.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := buildLines(ctx, tx, in.TenantID, in.Lines)
		if err != nil {
			return err
		}
		entry.Lines = lines
		entry.Recalculate()
		n, err := tx.NextNumber(ctx, in.TenantID)
		if err != nil {
			return err
		}
		entry.EntryNumber = FormatNumber(n)
		return tx.Insert(ctx, entry)
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, entry, in.ActorID, "journal.create")
	return entry, nil
}

// Update replaces a DRAFT's header and lines.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in DraftInput) (Entry, error) {
	date, err := in.Validate()
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, in.TenantID, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return core.Preconditionf("only DRAFT journal entries can be edited; %s is %s", current.EntryNumber, current.Status)
		}
		lines, err := buildLines(ctx, tx, in.TenantID, in.Lines)
		if err != nil {
			return err
		}
		entry = current
		entry.SiteID = in.SiteID
		entry.EntryDate = date
		entry.Memo = strings.TrimSpace(in.Memo)
		entry.Lines = lines
		entry.Recalculate()
		entry.UpdatedAt = s.now().UTC()
		return tx.ReplaceDraft(ctx, entry)
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, entry, in.ActorID, "journal.update")
	return entry, nil
}

// Delete removes a DRAFT.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID, actorID string) error {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return core.Preconditionf("only DRAFT journal entries can be deleted; %s is %s", current.EntryNumber, current.Status)
		}
		entry = current
		return tx.DeleteDraft(ctx, tenantID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, entry, actorID, "journal.delete")
	return nil
}

func (s *Service) record(ctx context.Context, entry Entry, actorID, action string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, core.AuditLog{
		TenantID: entry.TenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: entry.ID.String(),
		Meta:     map[string]any{"number": entry.EntryNumber, "balanced": entry.IsBalanced},
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("journal audit", slog.Any("error", err))
	}
}

func buildLines(ctx context.Context, tx TxRepository, tenantID uuid.UUID, inputs []LineInput) ([]Line, error) {
	ids := make([]uuid.UUID, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.AccountID)
	}
	refs, err := tx.AccountRefs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(inputs))
	for idx, in := range inputs {
		ref, ok := refs[in.AccountID]
		if !ok {
			return nil, core.Preconditionf("line %d: account %s does not exist", idx+1, in.AccountID)
		}
		if !ref.IsActive {
			return nil, core.Preconditionf("line %d: account %s %s is inactive", idx+1, ref.Code, ref.Name)
		}
		lines = append(lines, Line{
			LineNo:      idx + 1,
			AccountID:   in.AccountID,
			AccountCode: ref.Code,
			AccountName: ref.Name,
			Debit:       in.Debit.Round(2),
			Credit:      in.Credit.Round(2),
			Memo:        in.Memo,
			EntityType:  in.EntityType,
			EntityID:    in.EntityID,
		})
	}
	return lines, nil
}
