package config

import (
	"fmt"
	"strings"

	"stockdaily/internal/schedule"
)

// Config is the root configuration for the stockdaily daemon.
//
// Files may be JSON or YAML; unknown fields are rejected so typos fail fast.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Schedule ScheduleConfig `json:"schedule"`
	Analysis AnalysisConfig `json:"analysis"`

	// StockNames configures the name-resolution service and its cache.
	StockNames StockNamesConfig `json:"stock_names"`

	// Notify is optional; when omitted the daily summary is only logged.
	Notify *NotifyConfig `json:"notify,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"` // TRACE/DEBUG/INFO/WARN/ERROR
	Console bool   `json:"console"`
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path,omitempty"`
	} `json:"file"`
}

// ScheduleConfig controls the recurring analysis run.
//
// Spec accepts a time list ("18:00" or "09:30,13:30"), a rule string
// ("1-5@09:30,13:30;6-7@10:00") or a day→times mapping.
type ScheduleConfig struct {
	Enabled        bool          `json:"enabled"`
	Spec           schedule.Spec `json:"spec"`
	RunImmediately bool          `json:"run_immediately"`

	// PollInterval is a Go duration string; default "30s".
	PollInterval string `json:"poll_interval,omitempty"`
}

type AnalysisConfig struct {
	// Codes are the stock codes analyzed each run.
	Codes []string `json:"codes"`

	// Timeout bounds one whole analysis run (Go duration string, default "10m").
	Timeout string `json:"timeout,omitempty"`

	// QuoteURL is the market-data endpoint queried per code.
	QuoteURL string `json:"quote_url,omitempty"`

	// QuoteRatePerSec throttles quote requests; default 5.
	QuoteRatePerSec int `json:"quote_rate_per_sec,omitempty"`
}

// StockNamesConfig controls the injected stock-name cache.
type StockNamesConfig struct {
	// CachePath is the SQLite database file; empty disables persistence
	// (the service then runs on its in-memory cache only).
	CachePath string `json:"cache_path,omitempty"`

	// PrimaryURL and SecondaryURL are the bulk name sources, tried in order.
	PrimaryURL   string `json:"primary_url,omitempty"`
	SecondaryURL string `json:"secondary_url,omitempty"`

	// FetchTimeout bounds one source call (Go duration string, default "5s").
	FetchTimeout string `json:"fetch_timeout,omitempty"`

	// RatePerSec throttles per-code fallback lookups; default 2.
	RatePerSec int `json:"rate_per_sec,omitempty"`

	// RefreshSpec schedules the cache refresh that detects new listings
	// (default "09:00", before market open). Empty disables the refresh job.
	RefreshSpec schedule.Spec `json:"refresh_spec,omitempty"`
}

type NotifyConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
}

// Validate checks cross-field constraints that the strict decoder cannot.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Schedule.Enabled {
		if c.Schedule.Spec.IsZero() {
			return fmt.Errorf("schedule.enabled is set but schedule.spec is missing")
		}
		if _, err := c.Schedule.Spec.Table(); err != nil {
			return fmt.Errorf("schedule.spec: %w", err)
		}
	}
	if !c.StockNames.RefreshSpec.IsZero() {
		if _, err := c.StockNames.RefreshSpec.Table(); err != nil {
			return fmt.Errorf("stock_names.refresh_spec: %w", err)
		}
	}
	if n := c.Notify; n != nil && n.Enabled {
		if strings.TrimSpace(n.Token) == "" {
			return fmt.Errorf("notify.enabled is set but notify.token is empty")
		}
		if n.ChatID == 0 {
			return fmt.Errorf("notify.enabled is set but notify.chat_id is missing")
		}
	}
	return nil
}
