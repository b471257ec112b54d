package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rezonia/docexchange/internal/logging"
)

var (
	version = "1.0.0"

	// Global flags
	verbose     bool
	apiKey      string
	llmBaseURL  string
	llmModel    string
	templateDir string
)

var rootCmd = &cobra.Command{
	Use:   "docexchange",
	Short: "Convert trade documents between UBL, EDIFACT, PDF and a canonical form",
	Long: `DocExchange imports and exports electronic trade documents.

Supported inbound formats:
  - UBL 2.1 XML: invoices, credit notes, orders, despatch advices, catalogues
  - EDIFACT: INVOIC, ORDERS, DESADV interchanges
  - PDF: embedded Factur-X XML, template extraction, LLM fallback

Supported outbound formats:
  - UBL 2.1 XML, with an optional PEPPOL BIS 3.0 pass
  - EDIFACT INVOIC and ORDERS

Examples:
  # Decode a file to canonical JSON
  docexchange decode invoice.xml

  # Decode a PDF with templates and LLM fallback
  docexchange decode invoice.pdf --templates ./templates --api-key <key>

  # Encode canonical JSON to UBL
  docexchange encode --to ubl --peppol document.json

  # Start the HTTP API
  docexchange serve --address :8080`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for LLM provider (env: LLM_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&llmBaseURL, "llm-base-url", "", "LLM API base URL (env: LLM_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&llmModel, "llm-model", "", "LLM model (env: LLM_MODEL)")
	rootCmd.PersistentFlags().StringVar(&templateDir, "templates", "", "Directory with PDF extraction templates (env: TEMPLATE_DIR)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env is optional; flags beat environment
	_ = godotenv.Load()

	if apiKey == "" {
		apiKey = os.Getenv("LLM_API_KEY")
	}
	if llmBaseURL == "" {
		llmBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if llmModel == "" {
		llmModel = os.Getenv("LLM_MODEL")
	}
	if templateDir == "" {
		templateDir = os.Getenv("TEMPLATE_DIR")
	}

	logging.SetVerbose(verbose)
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
