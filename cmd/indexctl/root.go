package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"piiindex/internal/config"
	"piiindex/internal/core"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "indexctl",
	Short:         "operate a privacy-preserving PII substring index",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if cfg.Secret == "" {
			return fmt.Errorf("%w: INDEX_SECRET is not set", core.ErrSecretMissing)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, ingestCmd, queryCmd, sweepCmd, statsCmd)
}

// exitCodeFor maps an error to its CLI exit code.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, core.ErrSecretMissing):
		return 4
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrUnknownField), errors.Is(err, core.ErrUnknownOperator):
		return 2
	case errors.Is(err, core.ErrStoreTransient), errors.Is(err, core.ErrStorePermanent):
		return 3
	case errors.Is(err, core.ErrIntegrity):
		return 5
	default:
		fmt.Println("error:", err)
		return 1
	}
}
