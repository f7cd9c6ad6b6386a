// Package cli implements the psm command: a terminal host for the same
// matching workflow the web UI drives.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/JonMunkholm/psm/internal/config"
	"github.com/JonMunkholm/psm/internal/core"
	"github.com/JonMunkholm/psm/internal/logging"
	"github.com/JonMunkholm/psm/internal/matcher"
)

// Version is set at build time.
var Version = "dev"

// app holds the state shared by all subcommands of one invocation.
type app struct {
	matcher core.Matcher // injected in tests; built from config otherwise
	stdout  io.Writer
	stderr  io.Writer

	// Flags
	matcherURL  string
	timeout     time.Duration
	maxFileSize int64
	logLevel    string
	outputFmt   string
	query       string

	// Resolved in PersistentPreRunE
	cfg     *config.Config
	format  Format
	logger  *slog.Logger
	printer *Printer
}

// Option configures the root command.
type Option func(*app)

// WithMatcher replaces the HTTP matcher client.
func WithMatcher(m core.Matcher) Option {
	return func(a *app) {
		a.matcher = m
	}
}

// WithOutput redirects standard output and error.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *app) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// Run executes the command line and returns the process exit code:
// 0 on success, 1 on any failure.
func Run(ctx context.Context, args []string, opts ...Option) int {
	cmd, a := newRootCmd(opts...)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		printError(a.stderr, err)
		return 1
	}
	return 0
}

// NewRootCmd builds the psm command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	cmd, _ := newRootCmd(opts...)
	return cmd
}

func newRootCmd(opts ...Option) (*cobra.Command, *app) {
	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "psm",
		Short: "Propensity score matching client",
		Long: `psm sends an experiment cohort and a control pool to the matching
service and returns the matched control subset.

Both files must be CSV with identical headers in the same order.

Environment Variables:
  MATCHER_URL      Matching service base URL (alias PSM_API_URL)
  MATCHER_TIMEOUT  Deadline for one match
  LOG_LEVEL        Log level for stderr diagnostics`,
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.matcherURL, "matcher-url", "", "matching service base URL (default from MATCHER_URL)")
	pf.DurationVar(&a.timeout, "timeout", 0, "deadline for one match (default from MATCHER_TIMEOUT)")
	pf.Int64Var(&a.maxFileSize, "max-file-size", 0, "per-file size cap in bytes (default from UPLOAD_MAX_FILE_SIZE)")
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level for stderr: debug|info|warn|error")
	pf.StringVarP(&a.outputFmt, "output", "o", "table", "output format: table|json|yaml|csv (json when not a terminal)")
	pf.StringVarP(&a.query, "query", "q", "", "jq expression applied to json or yaml output")

	root.AddCommand(
		newMatchCmd(a),
		newCheckCmd(a),
		newPreviewCmd(a),
	)
	return root, a
}

// setup loads configuration, applies flag overrides and resolves the
// output format.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if flagChanged(cmd, "matcher-url") {
		cfg.Matcher.URL = a.matcherURL
	}
	if flagChanged(cmd, "timeout") {
		cfg.Matcher.Timeout = a.timeout
	}
	if flagChanged(cmd, "max-file-size") {
		cfg.Upload.MaxFileSize = a.maxFileSize
	}
	if flagChanged(cmd, "log-level") || os.Getenv("LOG_LEVEL") == "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	formatStr := a.outputFmt
	if !flagChanged(cmd, "output") && !isTerminal(a.stdout) {
		formatStr = string(FormatJSON)
	}
	format, err := ParseFormat(formatStr)
	if err != nil {
		return err
	}
	if a.query != "" && !format.Structured() {
		return fmt.Errorf("--query requires json or yaml output, got %s", format)
	}
	a.format = format

	a.logger = logging.New(a.stderr, cfg.Logging.Level, cfg.Logging.Format)
	a.printer = NewPrinter(a.stdout, format, a.query)
	return nil
}

// newOrchestrator creates a single-use session for one invocation.
func (a *app) newOrchestrator() *core.Orchestrator {
	m := a.matcher
	if m == nil {
		m = matcher.NewClient(
			matcher.WithBaseURL(a.cfg.Matcher.URL),
			matcher.WithTimeout(a.cfg.Matcher.Timeout),
			matcher.WithRateLimit(a.cfg.Matcher.RateLimit, a.cfg.Matcher.RateBurst),
			matcher.WithUserAgent(a.cfg.Matcher.UserAgent),
			matcher.WithLogger(a.logger),
		)
	}
	return core.NewOrchestrator(m,
		core.WithLogger(a.logger),
		core.WithMatchTimeout(a.cfg.Matcher.Timeout),
		core.WithMaxFileSize(a.cfg.Upload.MaxFileSize),
	)
}

// printError writes err to w, preferring the mapped user message. The
// technical cause follows on its own line when it adds information.
func printError(w io.Writer, err error) {
	if !core.IsUserFacing(err) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "Error: %s\n", core.FormatUserError(err))

	cause := err
	var werr *core.WorkflowError
	if errors.As(err, &werr) && werr.Err != nil {
		cause = werr.Err
	}
	if detail := cause.Error(); detail != core.MapError(err).Message {
		fmt.Fprintf(w, "  %s\n", detail)
	}
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	if cmd.Flags().Changed(name) {
		return true
	}
	return cmd.InheritedFlags().Changed(name)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
