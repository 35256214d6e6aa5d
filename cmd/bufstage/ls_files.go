// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/bufstage/internal/discovery"

	"github.com/spf13/cobra"
)

func newLsFilesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ls-files",
		Short: "List the files a build would compile",
		Long: `List the schema files 'buf ls-files' reports for the build directory,
one per line, exactly as they are passed to protoc.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := discovery.New(app.bufCLI()).ListFiles(cmd.Context(), app.dir)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(app.stdout, f)
			}
			return nil
		},
	}
}
