package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPolicyHolderDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	holder, err := NewPolicyHolder(Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), holder.Get())
}

func TestNewPolicyHolderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yml")
	body := []byte(`liquidation:
  periodicIntervalYears: 3
receipt:
  maxAttempts: 5
  retryInitialInterval: 25ms
withdrawal:
  accountTypes: [savings, surplus]
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	holder, err := NewPolicyHolder(Config{PolicyPath: path}, zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, 3, policy.Liquidation.PeriodicIntervalYears)
	assert.Equal(t, 5, policy.Receipt.MaxAttempts)
	assert.Equal(t, 25*time.Millisecond, policy.Receipt.RetryInitialInterval)
	assert.Equal(t, []string{"savings", "surplus"}, policy.Withdrawal.AccountTypes)
}

func TestNewPolicyHolderRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yml")
	require.NoError(t, os.WriteFile(path, []byte("receipt:\n  maxAttempts: 0\n"), 0o600))

	_, err := NewPolicyHolder(Config{PolicyPath: path}, zap.NewNop())
	assert.Error(t, err)
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *PolicyHolder
	assert.Equal(t, DefaultPolicy(), holder.Get())

	static := NewStaticPolicyHolder(Policy{Receipt: ReceiptPolicy{MaxAttempts: 1}})
	assert.Equal(t, 1, static.Get().Receipt.MaxAttempts)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "SQLite")
	t.Setenv("DEFAULT_COOPERATIVE", "12")
	t.Setenv("DATABASE_MAX_OPEN_CONN", "not-a-number")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, int64(12), cfg.DefaultCooperativeID)
	assert.Equal(t, 20, cfg.DBMaxOpenConn)
}
