package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/docexchange/internal/match"
	"github.com/rezonia/docexchange/internal/model"
)

var (
	resolveCatalog string
	resolveStrict  bool
	resolveOutput  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [file]",
	Short: "Match a canonical document against a catalog",
	Long: `Resolve the loose party, product, tax, currency and unit
references of a canonical JSON document against a catalog, attaching
catalog identifiers next to the original attributes.

The catalog is a JSON file with partners, products, taxes, currencies,
uoms and accounts arrays.

Examples:
  docexchange resolve document.json --catalog catalog.json
  docexchange resolve document.json --catalog catalog.json --strict`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(&resolveCatalog, "catalog", "", "Catalog JSON file (required)")
	resolveCmd.Flags().BoolVar(&resolveStrict, "strict", false, "Fail on unmatched references instead of warning")
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "", "Output file (default: stdout)")
	_ = resolveCmd.MarkFlagRequired("catalog")
}

func runResolve(cmd *cobra.Command, args []string) error {
	docData, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var doc model.Document
	if err := json.Unmarshal(docData, &doc); err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	catData, err := os.ReadFile(resolveCatalog)
	if err != nil {
		return err
	}
	var catalog match.MemoryCatalog
	if err := json.Unmarshal(catData, &catalog); err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}

	resolver := match.NewResolver(&catalog)
	resolver.Strict = resolveStrict
	if err := resolver.ResolveAll(&doc); err != nil {
		return err
	}

	for _, w := range doc.Messages {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	out, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if resolveOutput != "" {
		return os.WriteFile(resolveOutput, out, 0o644)
	}
	_, err = os.Stdout.Write(out)
	return err
}
