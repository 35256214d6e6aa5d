// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/invowk/bufstage/internal/bufcli"
	"github.com/invowk/bufstage/internal/config"
	"github.com/invowk/bufstage/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// skipConfigAnnotation marks commands that run without loading configuration.
const skipConfigAnnotation = "bufstage/skip-config"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// App carries what every subcommand needs: loaded configuration, the
	// logger, the resolved build directory and the output writers.
	App struct {
		// Config loads configuration; replaced in tests.
		Config config.Provider

		stdout io.Writer
		stderr io.Writer

		flags  rootFlagValues
		cfg    *config.Config
		logger *log.Logger
		dir    string
	}

	rootFlagValues struct {
		verbose    bool
		configPath string
		dir        string
	}
)

// NewApp creates an App writing to stdout and stderr.
func NewApp(stdout, stderr io.Writer) *App {
	return &App{
		Config: config.NewProvider(),
		stdout: stdout,
		stderr: stderr,
		cfg:    config.DefaultConfig(),
		logger: log.New(io.Discard),
	}
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bufstage",
		Short: "Compile buf modules with plain protoc",
		Long: TitleStyle.Render("bufstage") + SubtitleStyle.Render(" - compile buf modules with plain protoc") + `

bufstage exports the dependencies declared in buf.yaml into a temporary
staging directory, lists the module's files with 'buf ls-files', and runs
protoc with include paths that resolve every import.

` + SubtitleStyle.Render("Examples:") + `
  bufstage build                 Build the module or workspace in .
  bufstage -C proto build        Build the module in ./proto
  bufstage build --dry-run       Show the commands a build would run
  bufstage build --watch         Rebuild whenever a .proto file changes
  bufstage deps                  List declared dependencies
  bufstage config show           Show the effective configuration`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}
			return app.init(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is <config dir>/bufstage/config.cue)")
	rootCmd.PersistentFlags().StringVarP(&app.flags.dir, "dir", "C", "", "directory holding buf.yaml or buf.work.yaml (default from config, else .)")

	rootCmd.AddCommand(newBuildCommand(app))
	rootCmd.AddCommand(newLsFilesCommand(app))
	rootCmd.AddCommand(newDepsCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))
	rootCmd.AddCommand(newVersionCommand(app))

	return rootCmd
}

// init loads configuration and derives the logger and build directory.
func (a *App) init(ctx context.Context) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configPath,
		WorkDir:        wd,
	})
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Apply verbose from config if not set via flag
	if !a.flags.verbose {
		a.flags.verbose = cfg.UI.Verbose
	}

	level := cfg.Log.Level.Level()
	if a.flags.verbose {
		level = log.DebugLevel
	}
	a.logger = log.NewWithOptions(a.stderr, log.Options{
		Prefix:          "bufstage",
		Level:           level,
		ReportTimestamp: a.flags.verbose,
	})
	if src := a.Config.Source(); src != "" {
		a.logger.Debug("loaded configuration", "path", src)
	}

	a.dir = a.flags.dir
	if a.dir == "" {
		a.dir = cfg.Buf.Dir
	}
	return nil
}

// bufCLI returns a buf wrapper configured from the loaded configuration.
func (a *App) bufCLI() *bufcli.CLI {
	return bufcli.New(
		bufcli.WithBinary(string(a.cfg.Buf.Binary)),
		bufcli.WithStdout(a.stdout),
		bufcli.WithLogger(a.logger),
	)
}

// handleError renders a failed command: the concise error, its suggestions,
// and the matching guidance page when one exists.
func (a *App) handleError(w io.Writer, _ fang.Styles, err error) {
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.flags.verbose))

	guide := issue.ForError(err)
	if guide == nil {
		return
	}
	rendered, renderErr := guide.Render(issueStyle(w))
	if renderErr != nil {
		a.logger.Warn("failed to render issue", "id", guide.Id(), "err", renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}

// issueStyle picks the glamour style: "dark" on a terminal, "notty" otherwise.
func issueStyle(w io.Writer) string {
	if f, ok := w.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "dark"
		}
	}
	return "notty"
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// formatErrorForDisplay formats an error for user display.
// ActionableErrors use their Format method; verbose mode adds the error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// Execute runs the CLI with os.Args and exits non-zero on failure.
func Execute() {
	app := NewApp(os.Stdout, os.Stderr)
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	); err != nil {
		os.Exit(1)
	}
}
