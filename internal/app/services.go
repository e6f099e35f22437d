package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ranchbook/ranchbook/internal/accounting/accounts"
	"github.com/ranchbook/ranchbook/internal/accounting/journals"
	"github.com/ranchbook/ranchbook/internal/accounting/ledger"
	"github.com/ranchbook/ranchbook/internal/inventory"
	"github.com/ranchbook/ranchbook/internal/observability"
	"github.com/ranchbook/ranchbook/internal/platform/events"
	"github.com/ranchbook/ranchbook/internal/posting"
	"github.com/ranchbook/ranchbook/internal/shared"
)

// Services is the wired domain layer shared by the API and the worker.
type Services struct {
	Accounts    *accounts.Service
	Ledger      *ledger.Service
	Journals    *journals.Service
	Inventory   *inventory.Service
	Posting     *posting.Service
	Idempotency *shared.IdempotencyStore
	Publisher   events.Publisher
}

// NewServices builds every service over one pool and redis client. metrics may be nil.
func NewServices(cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics) *Services {
	audit := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)
	resolver := accounts.NewResolver(cfg.ResolutionMode())
	writer := ledger.NewWriter(cfg.DuplicateMode())
	mover := inventory.NewMover(inventory.MoverConfig{AllowNegative: cfg.InventoryAllowNegative})

	accountService := accounts.NewService(
		accounts.NewRepository(pool),
		resolver,
		accounts.NewBalanceCache(redisClient, cfg.BalanceCacheTTL),
		logger,
	)
	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopics())

	documents := posting.NewRepository(pool)
	deps := posting.Dependencies{
		UnitOfWork: documents,
		Reader:     documents,
		Writer:     writer,
		Mover:      mover,
		Resolver:   resolver,
		Cache:      accountService,
		Audit:      audit,
		Publisher:  publisher,
		Requests:   idempotency,
		Logger:     logger,
	}
	if metrics != nil {
		deps.Metrics = metrics
	}
	if redisClient != nil {
		deps.Locker = shared.NewLocker(redisClient, cfg.PostingLockTTL)
	}

	return &Services{
		Accounts:    accountService,
		Ledger:      ledger.NewService(ledger.NewRepository(pool), writer, audit, accountService, logger),
		Journals:    journals.NewService(journals.NewRepository(pool), audit, logger),
		Inventory:   inventory.NewService(inventory.NewRepository(pool), mover, logger),
		Posting:     posting.NewService(deps),
		Idempotency: idempotency,
		Publisher:   publisher,
	}
}

// Handlers builds the HTTP handlers for every service.
func (s *Services) Handlers(logger *slog.Logger) RouterParams {
	return RouterParams{
		Logger:           logger,
		AccountsHandler:  accounts.NewHandler(logger, s.Accounts),
		LedgerHandler:    ledger.NewHandler(logger, s.Ledger),
		JournalsHandler:  journals.NewHandler(logger, s.Journals),
		InventoryHandler: inventory.NewHandler(logger, s.Inventory),
		PostingHandler:   posting.NewHandler(logger, s.Posting),
	}
}
