package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"piiindex/internal/compose"
	"piiindex/internal/core"
	"piiindex/internal/evaluator"
)

var (
	queryField    string
	queryOperator string
	queryQuery    string
	queryFile     string
	queryOp       string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "evaluate a predicate, or a JSON file of predicates composed with AND/OR",
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildComponents(cfg)
		if err != nil {
			return err
		}
		ctx := context.Background()

		preds, op, err := loadPredicates()
		if err != nil {
			return err
		}

		results := make([]core.RefSet, 0, len(preds))
		for _, p := range preds {
			refs, err := comps.eval.Evaluate(ctx, p)
			if err != nil {
				return err
			}
			results = append(results, refs)
		}

		composed, err := compose.Compose(op, results...)
		if err != nil {
			return err
		}

		gate := anonymityGate(cfg)
		gated := gate.Apply(composed)
		refs := gated.Refs.Slice()

		out := struct {
			Refs                   []string `json:"refs"`
			SuppressedForAnonymity bool     `json:"suppressedForAnonymity"`
		}{
			SuppressedForAnonymity: gated.Suppressed,
		}
		for _, r := range refs {
			out.Refs = append(out.Refs, string(r))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// predicateFile is the on-disk shape for --file: a Boolean composition of
// predicates, the same JSON shape the /query HTTP endpoint accepts.
type predicateFile struct {
	Op         string `json:"op"`
	Predicates []struct {
		Field    string `json:"field"`
		Operator string `json:"operator"`
		Query    string `json:"query"`
	} `json:"predicates"`
}

func loadPredicates() ([]evaluator.Predicate, compose.Op, error) {
	if queryFile != "" {
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return nil, compose.And, fmt.Errorf("%w: reading %s: %v", core.ErrInvalidInput, queryFile, err)
		}
		var pf predicateFile
		if err := json.Unmarshal(data, &pf); err != nil {
			return nil, compose.And, fmt.Errorf("%w: parsing %s: %v", core.ErrInvalidInput, queryFile, err)
		}
		op := compose.And
		if strings.EqualFold(pf.Op, "OR") {
			op = compose.Or
		}
		preds := make([]evaluator.Predicate, 0, len(pf.Predicates))
		for _, p := range pf.Predicates {
			field, ok := core.FieldByName(p.Field)
			if !ok {
				return nil, op, fmt.Errorf("%w: %s", core.ErrUnknownField, p.Field)
			}
			operator, ok := queryOperatorByName(p.Operator)
			if !ok {
				return nil, op, fmt.Errorf("%w: %s", core.ErrUnknownOperator, p.Operator)
			}
			preds = append(preds, evaluator.Predicate{Field: field, Operator: operator, Query: p.Query})
		}
		return preds, op, nil
	}

	field, ok := core.FieldByName(queryField)
	if !ok {
		return nil, compose.And, fmt.Errorf("%w: %s", core.ErrUnknownField, queryField)
	}
	operator, ok := queryOperatorByName(queryOperator)
	if !ok {
		return nil, compose.And, fmt.Errorf("%w: %s", core.ErrUnknownOperator, queryOperator)
	}
	return []evaluator.Predicate{{Field: field, Operator: operator, Query: queryQuery}}, compose.And, nil
}

func queryOperatorByName(name string) (core.Operator, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "eq":
		return core.OpEquals, true
	case "startswith":
		return core.OpPrefix, true
	case "endswith":
		return core.OpSuffix, true
	case "contains":
		return core.OpContains, true
	default:
		return "", false
	}
}

func init() {
	queryCmd.Flags().StringVar(&queryField, "field", "", "field name (e.g. EMAIL)")
	queryCmd.Flags().StringVar(&queryOperator, "operator", "", "eq, startsWith, endsWith, or contains")
	queryCmd.Flags().StringVar(&queryQuery, "query", "", "query substring")
	queryCmd.Flags().StringVar(&queryFile, "file", "", "path to a JSON predicate composition file, overrides --field/--operator/--query")
}
