package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"piiindex/internal/core"
)

var (
	ingestField string
	ingestValue string
	ingestRef   string
	ingestErase bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "index (or erase) one decrypted field value",
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildComponents(cfg)
		if err != nil {
			return err
		}
		ctx := context.Background()
		ref := core.Reference(ingestRef)

		if ingestErase {
			if ingestField == "" {
				return fmt.Errorf("%w: --field is required with --erase", core.ErrInvalidInput)
			}
			field, ok := core.FieldByName(ingestField)
			if !ok {
				return fmt.Errorf("%w: %s", core.ErrUnknownField, ingestField)
			}
			if err := comps.ix.Erase(ctx, field, ingestValue, ref); err != nil {
				return err
			}
			fmt.Println("erased")
			return nil
		}

		if ingestField == "" {
			if err := comps.ix.IndexUntagged(ctx, ingestValue, ref, expiresAt(cfg)); err != nil {
				return err
			}
			fmt.Println("indexed (inferred field)")
			return nil
		}

		field, ok := core.FieldByName(ingestField)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrUnknownField, ingestField)
		}
		if err := comps.ix.IndexValue(ctx, field, ingestValue, ref, expiresAt(cfg)); err != nil {
			return err
		}
		fmt.Println("indexed")
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestField, "field", "", "field name (e.g. EMAIL); omit to infer")
	ingestCmd.Flags().StringVar(&ingestValue, "value", "", "decrypted plaintext value")
	ingestCmd.Flags().StringVar(&ingestRef, "ref", "", "opaque reference token for the owning record")
	ingestCmd.Flags().BoolVar(&ingestErase, "erase", false, "retract this value's fragment keys instead of indexing")
	ingestCmd.MarkFlagRequired("value") //nolint:errcheck
	ingestCmd.MarkFlagRequired("ref")   //nolint:errcheck
}
