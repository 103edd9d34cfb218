package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Policy holds the tunable ledger rules operators may change at runtime.
type Policy struct {
	Liquidation LiquidationPolicy `mapstructure:"liquidation"`
	Receipt     ReceiptPolicy     `mapstructure:"receipt"`
	Withdrawal  WithdrawalPolicy  `mapstructure:"withdrawal"`
}

type LiquidationPolicy struct {
	// PeriodicIntervalYears is the number of fiscal years that must elapse
	// between two periodic liquidations of the same member. Zero disables
	// the check.
	PeriodicIntervalYears int `mapstructure:"periodicIntervalYears"`
}

type ReceiptPolicy struct {
	MaxAttempts          int           `mapstructure:"maxAttempts"`
	RetryInitialInterval time.Duration `mapstructure:"retryInitialInterval"`
}

type WithdrawalPolicy struct {
	// AccountTypes lists the account types members may withdraw from.
	AccountTypes []string `mapstructure:"accountTypes"`
}

func DefaultPolicy() Policy {
	return Policy{
		Liquidation: LiquidationPolicy{PeriodicIntervalYears: 6},
		Receipt: ReceiptPolicy{
			MaxAttempts:          3,
			RetryInitialInterval: 10 * time.Millisecond,
		},
		Withdrawal: WithdrawalPolicy{AccountTypes: []string{"savings"}},
	}
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewPolicyHolder reads ledger.yml when present, falling back to defaults,
// and keeps the policy in sync with the file afterwards.
func NewPolicyHolder(cfg Config, log *zap.Logger) (*PolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.policy")

	v := viper.New()
	if cfg.PolicyPath != "" {
		v.SetConfigFile(cfg.PolicyPath)
	} else {
		v.SetConfigName("ledger")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/coopledger")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("COOPLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicy()
	v.SetDefault("liquidation.periodicIntervalYears", defaults.Liquidation.PeriodicIntervalYears)
	v.SetDefault("receipt.maxAttempts", defaults.Receipt.MaxAttempts)
	v.SetDefault("receipt.retryInitialInterval", defaults.Receipt.RetryInitialInterval)
	v.SetDefault("withdrawal.accountTypes", defaults.Withdrawal.AccountTypes)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	var policy Policy
	if err := v.Unmarshal(&policy); err != nil {
		return nil, err
	}
	if err := ValidatePolicy(policy); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(policy)

	if found {
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated Policy
			if err := v.Unmarshal(&updated); err != nil {
				log.Warn("policy reload failed", zap.Error(err))
				return
			}
			if err := ValidatePolicy(updated); err != nil {
				log.Warn("invalid policy ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("policy reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

// Get returns the current policy. A nil holder yields the defaults.
func (h *PolicyHolder) Get() Policy {
	if h == nil {
		return DefaultPolicy()
	}
	return h.current.Load().(Policy)
}

func ValidatePolicy(p Policy) error {
	if p.Liquidation.PeriodicIntervalYears < 0 {
		return errors.New("liquidation.periodicIntervalYears cannot be negative")
	}
	if p.Receipt.MaxAttempts < 1 {
		return errors.New("receipt.maxAttempts must be at least 1")
	}
	if p.Receipt.RetryInitialInterval < 0 {
		return errors.New("receipt.retryInitialInterval cannot be negative")
	}
	if len(p.Withdrawal.AccountTypes) == 0 {
		return errors.New("withdrawal.accountTypes cannot be empty")
	}
	return nil
}
