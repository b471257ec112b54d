package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/docexchange/internal/llm"
	"github.com/rezonia/docexchange/internal/pdftemplate"
	"github.com/rezonia/docexchange/internal/processor"
)

var (
	decodeOutput  string
	decodeTimeout time.Duration
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a trade document to canonical JSON",
	Long: `Decode a UBL XML, EDIFACT or PDF document into the canonical JSON form.

PDF decoding cascades: embedded Factur-X XML first, then the template
engine over the extracted text, then the LLM fallback when an API key
is configured.

Examples:
  docexchange decode invoice.xml
  docexchange decode interchange.edi -o document.json
  docexchange decode invoice.pdf --templates ./templates`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVarP(&decodeOutput, "output", "o", "", "Output file (default: stdout)")
	decodeCmd.Flags().DurationVar(&decodeTimeout, "timeout", 2*time.Minute, "Processing timeout")
}

func buildPipeline() (*processor.Pipeline, error) {
	var opts []processor.PipelineOption

	if templateDir != "" {
		templates, err := pdftemplate.LoadDir(templateDir)
		if err != nil {
			return nil, fmt.Errorf("loading templates: %w", err)
		}
		printVerbose("Loaded %d templates\n", len(templates))
		opts = append(opts, processor.WithTemplates(pdftemplate.NewEngine(templates...)))
	}

	if apiKey != "" {
		var clientOpts []llm.ClientOption
		if llmBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(llmBaseURL))
		}
		client := llm.NewClient(apiKey, clientOpts...)
		opts = append(opts, processor.WithLLMExtractor(llm.NewExtractor(client, llmModel)))
		printVerbose("LLM extraction enabled\n")
	}

	return processor.NewPipeline(opts...), nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	pipeline, err := buildPipeline()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), decodeTimeout)
	defer cancel()

	result := pipeline.Process(ctx, data)
	if result.Error != nil {
		return result.Error
	}

	printVerbose("Method: %s, Confidence: %.2f\n", result.Method, result.Confidence)
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	out, err := json.MarshalIndent(result.Document, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if decodeOutput != "" {
		return os.WriteFile(decodeOutput, out, 0o644)
	}
	_, err = os.Stdout.Write(out)
	return err
}
