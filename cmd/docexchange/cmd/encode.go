package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/docexchange/internal/edifact"
	"github.com/rezonia/docexchange/internal/model"
	"github.com/rezonia/docexchange/internal/ubl"
)

var (
	encodeTo     string
	encodeOutput string
	encodePeppol bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode [file]",
	Short: "Encode a canonical JSON document to a wire format",
	Long: `Encode a canonical JSON document (as produced by decode) into
UBL 2.1 XML or an EDIFACT interchange.

Examples:
  docexchange encode --to ubl document.json
  docexchange encode --to ubl --peppol document.json
  docexchange encode --to edifact document.json -o out.edi`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringVar(&encodeTo, "to", "ubl", "Target format (ubl, edifact)")
	encodeCmd.Flags().StringVarP(&encodeOutput, "output", "o", "", "Output file (default: stdout)")
	encodeCmd.Flags().BoolVar(&encodePeppol, "peppol", false, "Apply the PEPPOL BIS 3.0 pass to UBL output")
}

func runEncode(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	var payload []byte
	switch encodeTo {
	case "ubl":
		enc := ubl.NewEncoder()
		enc.Peppol = encodePeppol
		enc.Indent = true
		payload, err = enc.Encode(&doc)
	case "edifact":
		payload, err = edifact.NewEncoder().Encode(&doc)
	default:
		return fmt.Errorf("unknown target format %q", encodeTo)
	}
	if err != nil {
		return err
	}

	if encodeOutput != "" {
		return os.WriteFile(encodeOutput, payload, 0o644)
	}
	_, err = os.Stdout.Write(payload)
	return err
}
