package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "run one expiry sweep pass and print the number of entries removed",
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildComponents(cfg)
		if err != nil {
			return err
		}
		n, err := comps.st.ExpireSweep(context.Background(), time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("expired %d entries\n", n)
		return nil
	},
}
