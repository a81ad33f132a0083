package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Layout describes the dashboard defaults the backend was deployed with.
type Layout struct {
	DefaultTransactionType        string   `yaml:"default_transaction_type"`
	TransactionTypes              []string `yaml:"transaction_types,omitempty"`
	FixedAggregateIntervalSeconds int      `yaml:"fixed_aggregate_interval_seconds"`
	Timezone                      string   `yaml:"timezone,omitempty"`
}

// DefaultLayout matches a stock backend: 5 minute aggregates of web transactions.
func DefaultLayout() *Layout {
	return &Layout{
		DefaultTransactionType:        "Web",
		TransactionTypes:              []string{"Web", "Background"},
		FixedAggregateIntervalSeconds: 300,
	}
}

// LoadLayout reads and validates a layout YAML file. An empty path or a
// missing file yields DefaultLayout.
func LoadLayout(path string) (*Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultLayout(), nil
		}
		return nil, fmt.Errorf("layout config: %w", err)
	}
	cfg := DefaultLayout()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("layout config: %w", err)
	}
	if cfg.DefaultTransactionType == "" {
		return nil, fmt.Errorf("layout config: default_transaction_type is required")
	}
	if cfg.FixedAggregateIntervalSeconds <= 0 {
		return nil, fmt.Errorf("layout config: fixed_aggregate_interval_seconds must be positive")
	}
	if _, err := cfg.TimeLocation(); err != nil {
		return nil, fmt.Errorf("layout config: %w", err)
	}
	return cfg, nil
}

// AggregateInterval is the fixed server-side bucket width.
func (l *Layout) AggregateInterval() time.Duration {
	return time.Duration(l.FixedAggregateIntervalSeconds) * time.Second
}

// TimeLocation resolves the zone used for day boundaries.
func (l *Layout) TimeLocation() (*time.Location, error) {
	if l.Timezone == "" || l.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(l.Timezone)
}
