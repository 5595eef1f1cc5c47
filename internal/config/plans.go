package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanConfig defines the entitlement plan enforced by the usage gate:
// the monthly token cap and the per-operation rate-limit policies.
type PlanConfig struct {
	// MonthlyTokenCap is the accumulated usage-cost ceiling per billing
	// period. It must be a positive integer; a misconfigured value is
	// rejected at load time rather than compared loosely at check time.
	MonthlyTokenCap int64 `mapstructure:"monthlyTokenCap"`

	Operations map[string]OperationPolicy `mapstructure:"operations"`
}

// OperationPolicy is the per-operation gate policy.
type OperationPolicy struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
	// FailOpen admits the request when the rate-limit backend is
	// unreachable. Financial-linking operations run fail-closed.
	FailOpen bool `mapstructure:"failOpen"`
	// RequireSubscription gates the operation on an active subscription.
	RequireSubscription bool `mapstructure:"requireSubscription"`
}

// DefaultPlanConfig mirrors the limits the product shipped with.
func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		MonthlyTokenCap: 15_000_000,
		Operations: map[string]OperationPolicy{
			"chat":           {Limit: 60, Window: time.Minute, FailOpen: true, RequireSubscription: true},
			"receipt_search": {Limit: 60, Window: time.Minute, FailOpen: true, RequireSubscription: true},
			"bank_link":      {Limit: 10, Window: 720 * time.Minute, FailOpen: false, RequireSubscription: true},
			"bank_exchange":  {Limit: 10, Window: 720 * time.Minute, FailOpen: false, RequireSubscription: false},
			"bank_sync":      {Limit: 15, Window: 60 * time.Minute, FailOpen: true, RequireSubscription: true},
		},
	}
}

// PlanConfigHolder serves the current plan config and hot-reloads it from
// disk, rejecting invalid updates.
type PlanConfigHolder struct {
	current atomic.Value // holds PlanConfig
}

// NewPlanConfigHolder loads plans.yml, falling back to defaults when no
// config file is present.
func NewPlanConfigHolder() (*PlanConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/ynter")
	v.AddConfigPath(".")

	v.SetEnvPrefix("YNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PlanConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultPlanConfig())
		return holder, nil
	}

	var cfg PlanConfig
	if err := v.UnmarshalKey("plan", &cfg); err != nil {
		return nil, err
	}
	if err := validatePlanConfig(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlanConfig
		if err := v.UnmarshalKey("plan", &updated); err != nil {
			log.Printf("[plan-config] reload failed: %v", err)
			return
		}
		if err := validatePlanConfig(updated); err != nil {
			log.Printf("[plan-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPlanConfigHolder wraps a fixed config without file watching.
func NewStaticPlanConfigHolder(cfg PlanConfig) *PlanConfigHolder {
	holder := &PlanConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// Get returns the current plan config.
func (h *PlanConfigHolder) Get() PlanConfig {
	return h.current.Load().(PlanConfig)
}

// Operation returns the policy for the named operation.
func (h *PlanConfigHolder) Operation(name string) (OperationPolicy, bool) {
	policy, ok := h.Get().Operations[name]
	return policy, ok
}

func validatePlanConfig(cfg PlanConfig) error {
	if cfg.MonthlyTokenCap <= 0 {
		return errors.New("plan.monthlyTokenCap must be a positive integer")
	}
	if len(cfg.Operations) == 0 {
		return errors.New("plan.operations cannot be empty")
	}
	for name, op := range cfg.Operations {
		if op.Limit <= 0 {
			return fmt.Errorf("plan.operations.%s.limit must be positive", name)
		}
		if op.Window <= 0 {
			return fmt.Errorf("plan.operations.%s.window must be positive", name)
		}
	}
	return nil
}
