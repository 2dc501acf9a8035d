// Package config loads and holds all index configuration.
// Settings are layered: defaults → index-config.json → environment
// variables (env vars win).
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// Backend selects which Store implementation serves the index.
type Backend string

// Supported store backends.
const (
	BackendMemory     Backend = "memory"
	BackendRelational Backend = "relational"
)

// Config holds the full index configuration.
type Config struct {
	// Secret is the PRF key material. Required; loading with it
	// empty produces core.ErrSecretMissing at startup.
	Secret string `json:"secret"`
	// SecretVersion tags the currently active secret for diagnostics only.
	SecretVersion int `json:"secretVersion"`

	GramWidth        int     `json:"gramWidth"`        // K for contains queries; default 3, must be >= 2
	KAnonymityMin    int     `json:"kAnonymityMin"`    // result sets smaller than this are suppressed; 1 disables
	RetentionSeconds int     `json:"retentionSeconds"` // time-to-live applied to new entries
	MaxResults       int     `json:"maxResults"`       // hard cap on returned result cardinality; 0 = unbounded
	StoreBackend     Backend `json:"storeBackend"`

	SQLiteDSN          string `json:"sqliteDSN"`          // relational backend data source name
	MaxPostingSize     int    `json:"maxPostingSize"`     // per-key posting list cap; 0 = unbounded
	RemediationLedger  string `json:"remediationLedger"`  // bbolt file path for overflow remediation
	MaxInFlightBatches int    `json:"maxInFlightBatches"` // indexer backpressure semaphore size

	AdminPort   int    `json:"adminPort"`
	AdminToken  string `json:"adminToken"`
	BindAddress string `json:"bindAddress"`
	LogLevel    string `json:"logLevel"`

	SweepIntervalSeconds int `json:"sweepIntervalSeconds"` // 0 disables the background sweep ticker
}

// Load returns config with defaults overridden by index-config.json and
// env vars.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg, "index-config.json")
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		GramWidth:            3,
		KAnonymityMin:        5,
		RetentionSeconds:     int((365 * 24) * 3600), // one year
		MaxResults:           1000,
		StoreBackend:         BackendMemory,
		SQLiteDSN:            "index.db",
		MaxPostingSize:       100_000,
		RemediationLedger:    "remediation.db",
		MaxInFlightBatches:   8,
		AdminPort:            8090,
		BindAddress:          "127.0.0.1",
		LogLevel:             "info",
		SweepIntervalSeconds: 3600,
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G703: path is a controlled config file path, not user input
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("INDEX_SECRET"); v != "" {
		cfg.Secret = v
	}
	if v := os.Getenv("INDEX_SECRET_VERSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SecretVersion = n
		}
	}
	if v := os.Getenv("GRAM_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 2 {
			cfg.GramWidth = n
		}
	}
	if v := os.Getenv("K_ANONYMITY_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.KAnonymityMin = n
		}
	}
	if v := os.Getenv("RETENTION_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionSeconds = n
		}
	}
	if v := os.Getenv("MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxResults = n
		}
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = Backend(v)
	}
	if v := os.Getenv("SQLITE_DSN"); v != "" {
		cfg.SQLiteDSN = v
	}
	if v := os.Getenv("MAX_POSTING_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxPostingSize = n
		}
	}
	if v := os.Getenv("REMEDIATION_LEDGER"); v != "" {
		cfg.RemediationLedger = v
	}
	if v := os.Getenv("MAX_INFLIGHT_BATCHES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxInFlightBatches = n
		}
	}
	if v := os.Getenv("ADMIN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AdminPort = n
		}
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SWEEP_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.SweepIntervalSeconds = n
		}
	}
}
