package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every recognized option for the reconciliation daemon.
// Values come from the environment; a .env file is honoured when present.
type Config struct {
	DatabaseDSN string

	// WatchRoot holds the inbound tree laid out as <root>/<region>/<system>/<file>.
	WatchRoot  string
	ArchiveDir string
	ErrorDir   string

	// Extensions lists the file extensions the watcher will claim (with dot).
	Extensions []string

	// BusinessUnits is the allow-list of business units eligible for matching.
	BusinessUnits []string

	// PaymentGroupTypes are group types routed to the payment tables.
	// LedgerGroupTypes are group types routed to the ledger table.
	PaymentGroupTypes []string
	LedgerGroupTypes  []string

	// IgnoredStatuses are source statuses also checked against the
	// excluded-payment table before a record is flagged unmatched.
	IgnoredStatuses []string

	// PaymentIDSystems are source systems whose in-allow-list records are
	// looked up by payment id rather than original payment id.
	PaymentIDSystems []string

	RetryThreshold     int
	PollInterval       time.Duration
	DeliveryInterval   time.Duration
	RescanInterval     time.Duration
	Concurrent         bool
	MaxConcurrentFiles int

	ListenAddr string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseDSN:        os.Getenv("DATABASE_DSN"),
		WatchRoot:          getEnv("WATCH_ROOT", "data/inbound"),
		ArchiveDir:         getEnv("ARCHIVE_DIR", "data/archive"),
		ErrorDir:           getEnv("ERROR_DIR", "data/error"),
		Extensions:         SplitList(getEnv("FILE_EXTENSIONS", ".csv,.dat,.xml")),
		BusinessUnits:      SplitList(os.Getenv("BU_ID")),
		PaymentGroupTypes:  SplitList(getEnv("PAYMENT_GROUP_TYPES", "C,F")),
		LedgerGroupTypes:   SplitList(getEnv("LEDGER_GROUP_TYPES", "V")),
		IgnoredStatuses:    SplitList(os.Getenv("IGNORED_STATUSES")),
		PaymentIDSystems:   SplitList(os.Getenv("PAYMENT_ID_SYSTEMS")),
		RetryThreshold:     getEnvInt("RETRY_THRESHOLD", 3),
		PollInterval:       getEnvDuration("POLL_INTERVAL", 30*time.Second),
		DeliveryInterval:   getEnvDuration("DELIVERY_INTERVAL", 15*time.Minute),
		RescanInterval:     getEnvDuration("RESCAN_INTERVAL", 5*time.Minute),
		Concurrent:         getEnvBool("CONCURRENT_FILES", false),
		MaxConcurrentFiles: getEnvInt("MAX_CONCURRENT_FILES", 4),
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.WatchRoot == "" {
		return fmt.Errorf("watch root must be set")
	}
	if c.ArchiveDir == "" || c.ErrorDir == "" {
		return fmt.Errorf("archive and error directories must be set")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("at least one file extension must be accepted")
	}
	if c.RetryThreshold <= 0 {
		return fmt.Errorf("retry threshold must be positive: %d", c.RetryThreshold)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %s", c.PollInterval)
	}
	if c.Concurrent && c.MaxConcurrentFiles <= 0 {
		return fmt.Errorf("max concurrent files must be positive: %d", c.MaxConcurrentFiles)
	}
	return nil
}

// AllowsBusinessUnit reports whether bu is in the configured allow-list.
func (c *Config) AllowsBusinessUnit(bu string) bool {
	for _, b := range c.BusinessUnits {
		if b == bu {
			return true
		}
	}
	return false
}

// AcceptsExtension reports whether ext (with dot) is a claimable extension.
func (c *Config) AcceptsExtension(ext string) bool {
	for _, e := range c.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// UsesPaymentID reports whether system looks payments up by payment id.
func (c *Config) UsesPaymentID(system string) bool {
	for _, s := range c.PaymentIDSystems {
		if s == system {
			return true
		}
	}
	return false
}

// SplitList splits a comma-separated value, trimming whitespace and
// dropping empty entries.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// QuoteList renders values as a SQL-safe quoted list: each non-empty entry
// wrapped in single quotes, comma-joined, no trailing separator.
func QuoteList(values []string) string {
	var b strings.Builder
	for _, v := range values {
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(v, "'", "''"))
		b.WriteByte('\'')
	}
	return b.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
