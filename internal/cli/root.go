// Package cli provides the csvsql command line: load delimited files into a
// database, run SQL against them, and optionally drop into a shell.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/JonMunkholm/csvsql/internal/config"
	"github.com/JonMunkholm/csvsql/internal/core"
	"github.com/JonMunkholm/csvsql/internal/logging"
	"github.com/JonMunkholm/csvsql/internal/render"
	"github.com/JonMunkholm/csvsql/internal/repl"
	"github.com/JonMunkholm/csvsql/internal/store"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitDatabase = 2
)

// rootOptions holds flag state that does not live in config.Config.
type rootOptions struct {
	cfg *config.Config

	loads       loadList
	globs       []string
	verbose     int
	quiet       int
	pretty      bool
	interactive bool
	dryRun      bool
}

// NewRootCmd creates the root command. Flags write straight into cfg, so
// command-line values override whatever the environment set.
func NewRootCmd(cfg *config.Config) *cobra.Command {
	o := &rootOptions{cfg: cfg}

	rootCmd := &cobra.Command{
		Use:   "csvsql [flags] [SQL...]",
		Short: "Load delimited text files into SQL tables and query them",
		Long: `csvsql sniffs the delimiter of each file, infers INTEGER, REAL or TEXT
column types from a sample of rows, creates a table and loads every row.

Files are named with the letter options -A FILE through -Z FILE and land in
a table named after the letter, unless --table NAME comes right before the
letter option. --glob loads every matching file into a table named after
its file stem.

SQL statements given as arguments run after loading; their results print
tab-separated, or boxed with --pretty. Without --database the tables live in
memory and csvsql opens an interactive shell.`,
		Example: `  csvsql -A sales.csv "SELECT count(*) FROM A"
  csvsql --database shop.db --table orders -A orders.tsv.gz --invalid=fail
  csvsql --glob 'exports/**/*.csv' -i`,
		Args: cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			return o.setup()
		},
		RunE:          o.run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fs := rootCmd.Flags()
	addLoadFlags(fs, &o.loads)
	fs.StringSliceVar(&o.globs, "glob", nil, "load every file matching PATTERN (** allowed) into a table named after its stem")
	fs.StringVar(&cfg.Import.InvalidPolicy, "invalid", cfg.Import.InvalidPolicy, "what to do with rows that do not fit the schema: warn, ignore or fail")
	fs.StringVar(&cfg.Import.IfExists, "if-exists", cfg.Import.IfExists, "when the table exists: append, replace or fail")
	fs.StringSliceVar(&cfg.Import.Delimiters, "delimiters", cfg.Import.Delimiters, "candidate delimiters in tie-break order")
	fs.IntVar(&cfg.Import.SampleSize, "sample-size", cfg.Import.SampleSize, "rows used to infer column types")
	fs.IntVar(&cfg.Import.SniffLines, "sniff-lines", cfg.Import.SniffLines, "lines used to detect the delimiter")
	fs.StringVar(&cfg.Import.Encoding, "encoding", cfg.Import.Encoding, "source charset (WHATWG label, default utf-8)")
	fs.BoolVar(&o.pretty, "pretty", false, "print query results as boxed tables")
	fs.StringVar(&cfg.Display.Format, "format", cfg.Display.Format, "query output: tsv, pretty, table, markdown, csv or json")
	fs.StringVar(&cfg.Display.Width, "width", cfg.Display.Width, "cell width measure for boxed output: codepoint or eastasian")
	fs.BoolVarP(&o.interactive, "interactive", "i", false, "open the SQL shell after loading")
	fs.BoolVar(&o.dryRun, "dry-run", false, "report what loading would do without writing")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.Database.URL, "database", cfg.Database.URL, "database file or URL (default: in memory)")
	pf.StringVar(&cfg.Database.Driver, "driver", cfg.Database.Driver, "database driver: sqlite, duckdb or postgres")
	pf.StringVar(&cfg.Logging.Level, "loglevel", cfg.Logging.Level, "log level: debug, info, warn or error")
	pf.CountVarP(&o.verbose, "verbose", "v", "more log output (repeatable)")
	pf.CountVarP(&o.quiet, "quiet", "q", "less log output (repeatable)")

	_ = rootCmd.RegisterFlagCompletionFunc("invalid", fixedCompletion("warn", "ignore", "fail"))
	_ = rootCmd.RegisterFlagCompletionFunc("if-exists", fixedCompletion("append", "replace", "fail"))
	_ = rootCmd.RegisterFlagCompletionFunc("format", fixedCompletion("tsv", "pretty", "table", "markdown", "csv", "json"))
	_ = rootCmd.RegisterFlagCompletionFunc("driver", fixedCompletion("sqlite", "duckdb", "postgres"))

	rootCmd.AddCommand(NewServeCommand(cfg))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

func fixedCompletion(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// setup validates the merged configuration and configures logging.
func (o *rootOptions) setup() error {
	if err := o.cfg.Validate(); err != nil {
		return err
	}
	level := logging.Setup(logging.Options{
		Level:     o.cfg.Logging.Level,
		Format:    o.cfg.Logging.Format,
		File:      o.cfg.Logging.File,
		MaxSizeMB: o.cfg.Logging.MaxSizeMB,
	})
	logging.Step(level, o.verbose-o.quiet)
	slog.Debug("configuration loaded", "config", o.cfg.String())
	return nil
}

func (o *rootOptions) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := o.loads.check(); err != nil {
		return err
	}
	jobs, err := o.jobs()
	if err != nil {
		return err
	}

	format, err := render.ParseFormat(o.cfg.Display.Format)
	if err != nil {
		return err
	}
	if o.pretty {
		format = render.FormatPretty
	}
	width, err := render.ParseWidth(o.cfg.Display.Width)
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, o.cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := core.NewService(db, o.cfg.Import)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.dryRun {
		return previewAll(ctx, out, svc, jobs, format)
	}

	if err := importAll(ctx, svc, jobs); err != nil {
		return err
	}

	if err := runStatements(ctx, out, db, args, format, render.Options{Width: width}); err != nil {
		return err
	}

	if o.interactive || store.InMemory(o.cfg.Database) {
		return startShell(ctx, cmd, db, width)
	}
	return nil
}

// jobs lists the letter-option files in order, then the glob matches.
func (o *rootOptions) jobs() ([]core.ImportJob, error) {
	jobs := make([]core.ImportJob, 0, len(o.loads.loads))
	for _, l := range o.loads.loads {
		jobs = append(jobs, core.ImportJob{Path: l.Path, Table: l.Table})
	}

	for _, pattern := range o.globs {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			slog.Warn("glob matched no files", "pattern", pattern)
		}
		for _, m := range matches {
			jobs = append(jobs, core.ImportJob{Path: m, Table: core.TableName(m)})
		}
	}
	return jobs, nil
}

// importAll loads every job concurrently. Ctrl+C cancels the loads; rows
// already committed stay.
func importAll(ctx context.Context, svc *core.Service, jobs []core.ImportJob) error {
	if len(jobs) == 0 {
		return nil
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	results, err := svc.ImportAll(ctx, jobs, svc.Defaults())
	for _, res := range results {
		if res == nil {
			continue
		}
		slog.Info("file imported",
			"source", res.Source,
			"table", res.Table,
			"delimiter", res.Delimiter,
			"header", res.Header,
			"schema", res.Schema.String(),
			"rows_loaded", res.RowsLoaded,
			"rows_rejected", res.RowsRejected,
			"duration", res.Duration,
		)
	}
	return err
}

// runStatements executes the trailing SQL arguments in order and prints any
// result sets. Pretty output skips empty results.
func runStatements(ctx context.Context, out io.Writer, db store.DB, stmts []string, format render.Format, opts render.Options) error {
	level := slog.LevelDebug
	if len(stmts) > 1 {
		level = slog.LevelInfo
	}

	for _, stmt := range stmts {
		slog.Log(ctx, level, "executing statement", "sql", stmt)

		res, err := repl.Exec(ctx, db, stmt)
		if err != nil {
			return err
		}
		if !res.Query || (format == render.FormatPretty && len(res.Rows) == 0) {
			continue
		}
		if err := render.Render(out, format, res.Columns, res.Rows, opts); err != nil {
			return err
		}
	}
	return nil
}

// startShell runs the REPL on the command's input.
func startShell(ctx context.Context, cmd *cobra.Command, db store.DB, width render.Width) error {
	shell := repl.New(db, cmd.OutOrStdout(), cmd.ErrOrStderr(), width)

	f, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return shell.Run(ctx, repl.NewScanReader(cmd.InOrStdin()))
	}

	in, release, err := repl.NewLineReader(ctx, db, f, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer release()
	return shell.Run(ctx, in)
}

// ExitCode maps a command error to the process exit status: 2 when the
// database reported the failure, 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var dbErr *store.Error
	if errors.As(err, &dbErr) {
		return ExitDatabase
	}
	return ExitFailure
}

// Execute runs the root command with args and returns the exit status.
// Errors are printed to stderr with their support code when one applies.
func Execute(ctx context.Context, cfg *config.Config, args []string) int {
	rootCmd := NewRootCmd(cfg)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return ExitCode(err)
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if core.IsUserFacing(err) {
		msg := core.MapError(err)
		fmt.Fprintf(w, "%s (Code: %s)\n", msg.Action, msg.Code)
	}
}
