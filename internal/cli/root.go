package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"emctl/internal/format"
	"emctl/internal/store"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type App struct {
	BaseURL    string
	Company    string
	PrettyJSON bool
	Format     string
	LogLevel   string
	Timeout    time.Duration
	NoCache    bool

	cfg     *store.Config
	logger  *log.Logger
	logSink io.Closer
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "emctl",
		Short:        "Employees-manager allocation editor (CLI + TUI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive allocation editor
  emctl

  # Log in and pick a company
  emctl login --username alice
  emctl companies list

  # Who is on a project?
  emctl allocations show --relation user-project --by project --pivot "Website"

  # Put bob on it too (the full member set is sent)
  emctl allocations add --relation user-project --by project --pivot "Website" --member bob
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive editor.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runEditor(cmd, app, editorArgs{})
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.configure(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		app.close()
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.BaseURL, "base-url", "", "Server base URL (overrides EMCTL_BASE_URL and config.yaml)")
	cmd.PersistentFlags().StringVar(&app.Company, "company", "", "Company id or name")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON/EDN output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", "", "Output format (json|edn|text)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().DurationVar(&app.Timeout, "timeout", 0, "Per-request timeout (e.g. 10s)")
	cmd.PersistentFlags().BoolVar(&app.NoCache, "no-cache", false, "Ignore cached catalogs and refetch")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newCompaniesCmd(app))
	cmd.AddCommand(newCatalogCmd(app))
	cmd.AddCommand(newRelationsCmd(app))
	cmd.AddCommand(newAllocationsCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newCacheCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// configure resolves config with flag > env > file > default precedence and builds the logger.
func (app *App) configure(cmd *cobra.Command) error {
	cfg, err := store.LoadConfig()
	if err != nil {
		return writeErr(cmd, err)
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = strings.TrimRight(strings.TrimSpace(app.BaseURL), "/")
	}
	if flags.Changed("company") {
		cfg.Company = strings.TrimSpace(app.Company)
	}
	if flags.Changed("format") {
		cfg.Format = app.Format
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = app.LogLevel
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = app.Timeout
	}
	if err := cfg.Validate(); err != nil {
		return writeErr(cmd, err)
	}
	app.cfg = cfg
	app.Format = cfg.Format

	var w io.Writer = cmd.ErrOrStderr()
	if cfg.LogFile != "" {
		f, err := openLogFile(cfg.LogFile)
		if err != nil {
			return writeErr(cmd, err)
		}
		app.logSink = f
		w = f
	}
	app.logger = newLogger(w, cfg.LogLevel)
	return nil
}

func (app *App) close() {
	if app.logSink != nil {
		_ = app.logSink.Close()
		app.logSink = nil
	}
}

func newLogger(w io.Writer, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "emctl",
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.WarnLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
