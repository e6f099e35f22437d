package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ranchbook/ranchbook/internal/accounting/accounts"
	"github.com/ranchbook/ranchbook/internal/accounting/ledger"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 5*time.Minute, cfg.BalanceCacheTTL)
	require.Equal(t, 30*time.Second, cfg.PostingLockTTL)
	require.True(t, cfg.DBMigrateOnStart)
	require.True(t, cfg.InventoryAllowNegative)
	require.Equal(t, ledger.DuplicateStrict, cfg.DuplicateMode())
	require.Equal(t, accounts.ResolveFirstMatch, cfg.ResolutionMode())
	require.Empty(t, cfg.KafkaBrokers)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("POSTING_DUPLICATE_MODE", "retry-safe")
	t.Setenv("ACCOUNTS_CONTROL_RESOLUTION", "strict")
	t.Setenv("INVENTORY_ALLOW_NEGATIVE", "false")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("KAFKA_TOPIC_POSTED", "ranch.posted")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ledger.DuplicateReturnExisting, cfg.DuplicateMode())
	require.Equal(t, accounts.ResolveStrict, cfg.ResolutionMode())
	require.False(t, cfg.InventoryAllowNegative)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "ranch.posted", cfg.KafkaTopics()["ledger.transaction.posted"])
}

func TestLoadConfigRejectsUnknownModes(t *testing.T) {
	t.Setenv("POSTING_DUPLICATE_MODE", "lenient")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "POSTING_DUPLICATE_MODE")

	t.Setenv("POSTING_DUPLICATE_MODE", "strict")
	t.Setenv("ACCOUNTS_CONTROL_RESOLUTION", "random")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "ACCOUNTS_CONTROL_RESOLUTION")
}

func TestRefreshTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
