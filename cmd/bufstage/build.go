// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/invowk/bufstage/internal/bufcli"
	"github.com/invowk/bufstage/internal/compiler"
	"github.com/invowk/bufstage/internal/export"
	"github.com/invowk/bufstage/internal/pipeline"
	"github.com/invowk/bufstage/internal/watch"

	"github.com/spf13/cobra"
)

const (
	workspaceAuto  = "auto"
	workspaceTrue  = "true"
	workspaceFalse = "false"
)

type buildFlagValues struct {
	workspace string
	dryRun    bool
	watch     bool
	clear     bool
}

func newBuildCommand(app *App) *cobra.Command {
	var flags buildFlagValues

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Export dependencies and run protoc",
		Long: `Export every dependency declared in buf.yaml into a fresh staging
directory, list the module's files with 'buf ls-files', and run protoc once.

A directory holding buf.work.yaml is built as a workspace: each member's
dependencies are exported into the same staging directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd.Context(), app, &flags)
		},
	}

	buildCmd.Flags().StringVar(&flags.workspace, "workspace", workspaceAuto, "build as a workspace: auto, true or false")
	buildCmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "print the commands a build would run without running them")
	buildCmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "rebuild when .proto files or manifests change")
	buildCmd.Flags().BoolVar(&flags.clear, "clear", false, "clear the screen before each rebuild (with --watch)")

	return buildCmd
}

// resolveMode maps the --workspace flag to a pipeline mode.
func resolveMode(dir, workspace string) (pipeline.Mode, error) {
	switch strings.ToLower(workspace) {
	case workspaceAuto:
		return pipeline.DetectMode(dir), nil
	case workspaceTrue:
		return pipeline.ModeWorkspace, nil
	case workspaceFalse:
		return pipeline.ModeModule, nil
	default:
		return 0, fmt.Errorf("invalid --workspace value %q (valid: auto, true, false)", workspace)
	}
}

func runBuild(ctx context.Context, app *App, flags *buildFlagValues) error {
	if flags.dryRun && flags.watch {
		return errors.New("--watch and --dry-run cannot be used together")
	}

	mode, err := resolveMode(app.dir, flags.workspace)
	if err != nil {
		return err
	}
	app.logger.Debug("build mode", "mode", mode, "dir", app.dir)

	if err := app.bufCLI().Available(); err != nil {
		return err
	}

	switch {
	case flags.dryRun:
		return runDryRun(ctx, app, mode)
	case flags.watch:
		return runWatch(ctx, app, mode, flags.clear)
	default:
		return buildOnce(ctx, app, mode)
	}
}

// buildOnce runs the pipeline with protoc configured from app's configuration.
func buildOnce(ctx context.Context, app *App, mode pipeline.Mode) error {
	protoc := compiler.NewProtoc(app.cfg.ProtocOptions(),
		compiler.WithStdout(app.stdout),
		compiler.WithLogger(app.logger),
	)
	p := pipeline.New(protoc,
		pipeline.WithBuf(app.bufCLI()),
		pipeline.WithStagingRoot(app.cfg.Staging.Root),
		pipeline.WithLogger(app.logger),
	)

	res, err := p.Run(ctx, app.dir, mode)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "%s Compiled %d file(s) as %s with %d include path(s)\n",
		SuccessStyle.Render("✓"), len(res.Files), mode, len(res.IncludePaths))
	return nil
}

// runDryRun walks the pipeline with exports and compilation replaced by
// printing. Files are still listed with buf so the protoc line is complete.
func runDryRun(ctx context.Context, app *App, mode pipeline.Mode) error {
	w := app.stdout
	cli := app.bufCLI()
	protoc := compiler.NewProtoc(app.cfg.ProtocOptions())

	fmt.Fprintln(w, TitleStyle.Render("Dry Run"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("Mode:"), mode)
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("Directory:"), app.dir)
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("buf:"), cli.BinaryPath())
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("protoc:"), protoc.Binary())
	fmt.Fprintln(w)

	exports := export.RunnerFunc(func(_ context.Context, ref, outDir string) error {
		fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("Export:"),
			CmdStyle.Render(cli.CommandLine(bufcli.ExportArgs(ref, outDir)...)))
		return nil
	})

	printer := compiler.Func(func(_ context.Context, files, includes []string) error {
		fmt.Fprintln(w)
		fmt.Fprintln(w, LabelStyle.Render("  Include paths:"))
		for _, inc := range includes {
			fmt.Fprintf(w, "    %s\n", inc)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s %d\n", LabelStyle.Render("Files:"), len(files))
		fmt.Fprintln(w)
		fmt.Fprintln(w, LabelStyle.Render("  Compile:"))
		fmt.Fprintf(w, "    %s\n", CmdStyle.Render(protoc.CommandLine(files, includes)))
		return nil
	})

	p := pipeline.New(printer,
		pipeline.WithRunner(exports),
		pipeline.WithLister(cli),
		pipeline.WithStagingRoot(app.cfg.Staging.Root),
		pipeline.WithLogger(app.logger),
	)
	_, err := p.Run(ctx, app.dir, mode)
	return err
}

// runWatch builds once, then rebuilds on every debounced change until the
// context is cancelled (Ctrl+C). Failed builds are reported and watching
// continues.
func runWatch(ctx context.Context, app *App, mode pipeline.Mode, clearScreen bool) error {
	arrow := CmdStyle.Render("→")

	fmt.Fprintf(app.stdout, "%s Watch mode: initial build of %s\n", arrow, app.dir)
	if err := buildOnce(ctx, app, mode); err != nil {
		fmt.Fprintf(app.stderr, "%s %s\n", WarningStyle.Render("!"), formatErrorForDisplay(err, app.flags.verbose))
	}

	w, err := watch.New(watch.Config{
		Patterns:    app.cfg.Watch.Patterns,
		Ignore:      app.cfg.Watch.Ignore,
		Debounce:    app.cfg.Watch.Debounce.Duration(),
		ClearScreen: clearScreen,
		BaseDir:     app.dir,
		Stdout:      app.stdout,
		Logger:      app.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stdout, "%s Detected %d change(s), rebuilding\n", arrow, len(changed))
			app.logger.Debug("changed files", "paths", changed)
			err := buildOnce(ctx, app, mode)
			fmt.Fprintf(app.stdout, "\n%s Watching for changes (Ctrl+C to stop)\n", arrow)
			return err
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	fmt.Fprintf(app.stdout, "\n%s Watching for changes (Ctrl+C to stop)\n", arrow)
	return w.Run(ctx)
}
