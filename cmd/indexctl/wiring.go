package main

import (
	"fmt"
	"time"

	"piiindex/internal/anonymity"
	"piiindex/internal/config"
	"piiindex/internal/evaluator"
	"piiindex/internal/indexer"
	"piiindex/internal/keyedhash"
	"piiindex/internal/logger"
	"piiindex/internal/store"
)

// components bundles the pieces every subcommand needs, built once from
// cfg so serve/ingest/query/sweep/stats all wire the same way.
type components struct {
	hasher *keyedhash.Hasher
	st     store.Store
	ix     *indexer.Indexer
	eval   *evaluator.Evaluator
	log    *logger.Logger
}

func buildComponents(cfg *config.Config) (*components, error) {
	log := logger.New("INDEXCTL", cfg.LogLevel)

	hasher, err := keyedhash.FromSource(keyedhash.NewStaticSecretSource([]byte(cfg.Secret), cfg.SecretVersion))
	if err != nil {
		return nil, fmt.Errorf("build hasher: %w", err)
	}

	var st store.Store
	switch cfg.StoreBackend {
	case config.BackendRelational:
		st, err = store.NewSQLite(cfg.SQLiteDSN, cfg.MaxPostingSize)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
	default:
		st = store.NewMemory(cfg.MaxPostingSize)
	}

	var opts []indexer.Option
	opts = append(opts, indexer.WithLogger(log))
	if cfg.RemediationLedger != "" {
		ledger, err := store.OpenRemediationLedger(cfg.RemediationLedger)
		if err != nil {
			return nil, fmt.Errorf("open remediation ledger: %w", err)
		}
		opts = append(opts, indexer.WithRemediationLedger(ledger))
	}

	ix := indexer.New(hasher, st, cfg.GramWidth, cfg.MaxInFlightBatches, opts...)
	eval := evaluator.New(hasher, st, cfg.GramWidth)

	return &components{hasher: hasher, st: st, ix: ix, eval: eval, log: log}, nil
}

// anonymityGate builds the k-anonymity gate the query subcommand applies
// to results the same way the server does.
func anonymityGate(cfg *config.Config) anonymity.Gate {
	return anonymity.NewGate(cfg.KAnonymityMin)
}

// expiresAt returns the configured retention horizon measured from now.
func expiresAt(cfg *config.Config) time.Time {
	if cfg.RetentionSeconds <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(cfg.RetentionSeconds) * time.Second)
}
