package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingPolicy carries the platform-wide money constants. Every value is
// expressed in integer units so fee math stays exact: the fee rate is in
// basis points and all amounts are minor currency units.
type BillingPolicy struct {
	// HoldDays is how long a new earning stays pending before it can be
	// withdrawn, sized to absorb typical chargeback windows.
	HoldDays int `mapstructure:"holdDays"`

	// FeeRateBps is the platform cut, in basis points of gross.
	FeeRateBps int64 `mapstructure:"feeRateBps"`

	// PayoutMinimum is the smallest available balance a creator may
	// withdraw, in minor currency units.
	PayoutMinimum int64 `mapstructure:"payoutMinimum"`

	// DefaultTierDays is the subscription term used when a sale carries
	// no tier reference.
	DefaultTierDays int `mapstructure:"defaultTierDays"`
}

func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		HoldDays:        14,
		FeeRateBps:      2000,
		PayoutMinimum:   1000,
		DefaultTierDays: 30,
	}
}

// BillingPolicyHolder exposes the current policy and hot-reloads it when the
// mounted config file changes.
type BillingPolicyHolder struct {
	current atomic.Value // holds BillingPolicy
}

func NewBillingPolicyHolder() (*BillingPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/aifans/config")
	v.AddConfigPath("/etc/aifans")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AIFANS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingPolicy()
	v.SetDefault("billing.holdDays", defaults.HoldDays)
	v.SetDefault("billing.feeRateBps", defaults.FeeRateBps)
	v.SetDefault("billing.payoutMinimum", defaults.PayoutMinimum)
	v.SetDefault("billing.defaultTierDays", defaults.DefaultTierDays)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var policy BillingPolicy
	if err := v.UnmarshalKey("billing", &policy); err != nil {
		return nil, err
	}
	if err := validateBillingPolicy(policy); err != nil {
		return nil, err
	}

	holder := &BillingPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingPolicy
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-policy] reload failed: %v", err)
			return
		}
		if err := validateBillingPolicy(updated); err != nil {
			log.Printf("[billing-policy] invalid policy ignored: %v", err)
			return
		}
		holder.current.Store(updated)
	})

	return holder, nil
}

// NewStaticBillingPolicyHolder returns a holder pinned to the given policy.
// Used by tests that need deterministic constants.
func NewStaticBillingPolicyHolder(policy BillingPolicy) *BillingPolicyHolder {
	holder := &BillingPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func (h *BillingPolicyHolder) Current() BillingPolicy {
	return h.current.Load().(BillingPolicy)
}

func validateBillingPolicy(policy BillingPolicy) error {
	if policy.HoldDays < 0 {
		return errors.New("billing policy: holdDays must not be negative")
	}
	if policy.FeeRateBps < 0 || policy.FeeRateBps > 10_000 {
		return errors.New("billing policy: feeRateBps out of range")
	}
	if policy.PayoutMinimum < 0 {
		return errors.New("billing policy: payoutMinimum must not be negative")
	}
	if policy.DefaultTierDays <= 0 {
		return errors.New("billing policy: defaultTierDays must be positive")
	}
	return nil
}
