package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pdf-translator/internal/config"
	runs "pdf-translator/internal/errors"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
)

// Version is set at build time.
var Version = "dev"

// App is the command line application. It owns the cobra command tree and
// the collaborators loaded at startup.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool

	config  *config.ConfigManager
	journal *runs.RunJournal

	// 以下字段为空时使用默认实现
	extractor pdf.PageTextExtractor
	renderer  pdf.DocumentRenderer
	backends  pdf.BackendFactory
}

// NewApp creates the application and its command tree.
func NewApp() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "pdf-translator",
		Short: "Translate PDF documents while protecting technical terms",
		Long: `pdf-translator extracts the text of a PDF page by page, removes copyright
boilerplate, translates each page with an LLM while keeping protected terms
(product names, commands, identifiers) untouched, and writes the translation
as an overlay on the original document.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Path to the configuration file")
	app.root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Log debug output to the console")

	app.root.AddCommand(
		app.newTranslateCmd(),
		app.newLanguagesCmd(),
		app.newRunsCmd(),
		app.newVersionCmd(),
	)
	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the application. SIGINT and SIGTERM cancel the context so
// that a running translation stops and records what it has.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the application with the given arguments.
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// startup loads the environment and configuration, initializes logging and
// opens the run journal.
func (a *App) startup() error {
	config.LoadDotEnv()

	cm, err := config.NewConfigManager(a.configPath)
	if err != nil {
		return err
	}
	if err := cm.Load(); err != nil {
		return err
	}
	a.config = cm
	cfg := cm.GetConfig()

	logCfg := logger.DefaultConfig()
	logCfg.LogFilePath = cfg.LogFilePath
	if logCfg.LogFilePath == "" {
		logCfg.LogFilePath = filepath.Join(filepath.Dir(cm.GetConfigPath()), "pdf-translator.log")
	}
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	if a.verbose {
		logCfg.Level = logger.LevelDebug
		logCfg.EnableConsole = true
	}
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintf(a.stderr, "warning: cannot open log file %s: %v\n", logCfg.LogFilePath, err)
	}

	journal, err := runs.NewRunJournal(cm.GetRunsDirectory())
	if err != nil {
		return err
	}
	a.journal = journal

	logger.Info("application started",
		logger.String("config", cm.GetConfigPath()),
		logger.String("provider", cfg.Provider))
	return nil
}

// shutdown releases what startup acquired.
func (a *App) shutdown() {
	logger.Info("application shutting down")
	logger.Close()
}

// newTranslator builds a PDFTranslator from the loaded configuration.
func (a *App) newTranslator(onStatus func(types.Status)) *pdf.PDFTranslator {
	return pdf.NewPDFTranslator(pdf.PDFTranslatorConfig{
		Config:    a.config.GetConfig(),
		Extractor: a.extractor,
		Renderer:  a.renderer,
		Backends:  a.backends,
		Cache:     translator.NewTranslationCache(a.config.GetCachePath()),
		Journal:   a.journal,
		OnStatus:  onStatus,
	})
}

// progressPrinter returns a status callback that prints one line per phase
// change and per completed page.
func (a *App) progressPrinter() func(types.Status) {
	var last types.Status
	return func(s types.Status) {
		if s.Phase == last.Phase && s.CompletedPages == last.CompletedPages {
			return
		}
		last = s
		if s.TotalPages > 0 {
			fmt.Fprintf(a.stderr, "  [%3d%%] %s: %s (%d/%d pages)\n",
				s.Progress, s.Phase, s.Message, s.CompletedPages, s.TotalPages)
			return
		}
		fmt.Fprintf(a.stderr, "  [%3d%%] %s: %s\n", s.Progress, s.Phase, s.Message)
	}
}

// loadTerms merges the inline term list with the terms file, one term per
// line in the result.
func loadTerms(inline, file string) (string, error) {
	terms := translator.ParseProtectedTerms(inline)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "cannot read terms file", file, err)
		}
		terms = append(terms, translator.ParseProtectedTerms(string(data))...)
	}
	return strings.Join(terms, "\n"), nil
}
