// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/invowk/bufstage/internal/pipeline"
	"github.com/invowk/bufstage/pkg/bufyaml"

	"github.com/spf13/cobra"
)

func newDepsCommand(app *App) *cobra.Command {
	var workspace string

	depsCmd := &cobra.Command{
		Use:   "deps",
		Short: "List declared dependencies",
		Long: `List the dependencies a build would export, in declaration order.

For a workspace, dependencies are grouped by member directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := resolveMode(app.dir, workspace)
			if err != nil {
				return err
			}
			if mode == pipeline.ModeWorkspace {
				return listWorkspaceDeps(app)
			}
			return listModuleDeps(app)
		},
	}

	depsCmd.Flags().StringVar(&workspace, "workspace", workspaceAuto, "read buf.work.yaml: auto, true or false")

	return depsCmd
}

func listModuleDeps(app *App) error {
	module, err := bufyaml.Load(bufyaml.ModulePath(app.dir))
	if err != nil {
		return err
	}
	for _, dep := range module.DepStrings() {
		fmt.Fprintln(app.stdout, dep)
	}
	return nil
}

func listWorkspaceDeps(app *App) error {
	ws, err := bufyaml.LoadWorkspace(bufyaml.WorkspacePath(app.dir))
	if err != nil {
		return err
	}
	for _, member := range ws.Directories {
		memberPath := filepath.Join(app.dir, string(member))
		module, err := bufyaml.Load(bufyaml.ModulePath(memberPath))
		if err != nil {
			return err
		}
		fmt.Fprintf(app.stdout, "%s\n", TitleStyle.Render(string(member)+":"))
		deps := module.DepStrings()
		if len(deps) == 0 {
			fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none)"))
		}
		for _, dep := range deps {
			fmt.Fprintf(app.stdout, "  %s\n", dep)
		}
	}
	return nil
}
