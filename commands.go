package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	runs "pdf-translator/internal/errors"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/types"
)

// translateOptions holds options for the translate command.
type translateOptions struct {
	source      string
	target      string
	from        string
	to          string
	region      string
	terms       string
	termsFile   string
	provider    string
	concurrency int
}

func (a *App) newTranslateCmd() *cobra.Command {
	opts := &translateOptions{}

	cmd := &cobra.Command{
		Use:   "translate [source.pdf]",
		Short: "Translate a PDF document",
		Long: `Translate a PDF document page by page.

Protected terms are kept verbatim in the translation. The result is written
as a translation overlay on top of the original pages; when the target is not
a .pdf file, or rendering fails, a plain text report is written instead.

Examples:
  # Translate to Traditional Chinese with the configured provider
  pdf-translator translate guide.pdf

  # Japanese translation through Bedrock, protecting two product names
  pdf-translator translate --source guide.pdf --to ja --provider bedrock \
      --terms "Amazon ElastiCache, Valkey"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if opts.source != "" && opts.source != args[0] {
					return types.NewAppErrorWithDetails(types.ErrInvalidInput, "conflicting source paths",
						fmt.Sprintf("%s and %s", opts.source, args[0]), nil)
				}
				opts.source = args[0]
			}
			return a.translate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.source, "source", "s", "", "PDF file to translate")
	f.StringVarP(&opts.target, "target", "o", "", "Output path (default <source>_translated.pdf)")
	f.StringVar(&opts.from, "from", "", "Source language code")
	f.StringVar(&opts.to, "to", "", "Target language code")
	f.StringVar(&opts.region, "region", "", "AWS region for Bedrock backed services")
	f.StringVar(&opts.terms, "terms", "", "Comma separated terms to keep untranslated")
	f.StringVar(&opts.termsFile, "terms-file", "", "File with one protected term per line")
	f.StringVar(&opts.provider, "provider", "", "Translation provider (openai or bedrock)")
	f.IntVar(&opts.concurrency, "concurrency", 0, "Pages translated in parallel")
	return cmd
}

func (a *App) translate(cmd *cobra.Command, opts *translateOptions) error {
	if opts.source == "" {
		return types.NewAppError(types.ErrInvalidInput, "no source PDF given", nil)
	}
	terms, err := loadTerms(opts.terms, opts.termsFile)
	if err != nil {
		return err
	}

	if err := a.startup(); err != nil {
		return err
	}
	defer a.shutdown()

	cfg := a.config.GetConfig()
	if opts.provider != "" {
		cfg.Provider = opts.provider
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}
	if err := a.config.Validate(); err != nil {
		return err
	}

	req := pdf.Request{
		SourcePath:     opts.source,
		TargetPath:     opts.target,
		SourceLang:     opts.from,
		TargetLang:     opts.to,
		Region:         opts.region,
		ProtectedTerms: terms,
	}

	fmt.Fprintf(a.stderr, "Translating %s\n", opts.source)
	result, err := a.newTranslator(a.progressPrinter()).TranslateDocument(cmd.Context(), req)
	if err != nil {
		logger.Error("translation failed", err, logger.String("source", opts.source))
		return err
	}

	fmt.Fprintln(a.stdout, result.Report)
	if result.Cancelled {
		return types.NewAppErrorWithDetails(types.ErrCancelled, "translation cancelled",
			fmt.Sprintf("partial result saved to %s", result.ArtifactPath), nil)
	}
	return nil
}

func (a *App) newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages and regions",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, "Languages:")
			for _, code := range types.SupportedLanguages {
				fmt.Fprintf(a.stdout, "  %-6s %s\n", code, types.LanguageName(code))
			}
			fmt.Fprintln(a.stdout, "Regions:")
			for _, region := range types.SupportedRegions {
				fmt.Fprintf(a.stdout, "  %s\n", region)
			}
		},
	}
}

func (a *App) newRunsCmd() *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List failed, partial and cancelled runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.startup(); err != nil {
				return err
			}
			defer a.shutdown()

			if clearAll {
				if err := a.journal.ClearAll(); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "Run journal cleared.")
				return nil
			}
			return a.listRuns()
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Remove all journaled runs")
	return cmd
}

func (a *App) listRuns() error {
	records := a.journal.List()
	if len(records) == 0 {
		fmt.Fprintln(a.stdout, "No recorded runs.")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOUTCOME\tSTAGE\tPAGES\tRETRIES\tWHEN\tSOURCE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Outcome, runs.GetStageDisplayName(r.Stage), r.Pages, r.RetryCount,
			r.Timestamp.Local().Format(time.DateTime), r.SourcePath)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, r := range records {
		if r.ErrorMsg != "" {
			fmt.Fprintf(a.stdout, "%s: %s\n", r.ID, r.ErrorMsg)
		}
	}
	return nil
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "pdf-translator version %s\n", Version)
		},
	}
}
