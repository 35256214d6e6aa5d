// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/invowk/bufstage/internal/config"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatCUE  = "cue"
	formatYAML = "yaml"
	formatTOML = "toml"
)

// newConfigCommand creates the `bufstage config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bufstage configuration",
		Long: `Manage bufstage configuration.

Configuration is read from the first of:
  - the file given with --config
  - Linux: ~/.config/bufstage/config.cue
    macOS: ~/Library/Application Support/bufstage/config.cue
    Windows: %APPDATA%\bufstage\config.cue
  - ./bufstage.cue

BUFSTAGE_* environment variables override file values, for example
BUFSTAGE_BUF_BINARY or BUFSTAGE_LOG_LEVEL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			out, err := renderConfig(app.cfg, format, app.Config.Source())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, out)
			return nil
		},
	}
	showCmd.Flags().StringVarP(&format, "format", "f", formatCUE, "output format: cue, yaml or toml")
	cfgCmd.AddCommand(showCmd)

	var (
		initPath string
		force    bool
	)
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(_ *cobra.Command, _ []string) error {
			path := initPath
			if path == "" {
				path = app.flags.configPath
			}
			written, created, err := config.CreateDefaultConfig(path, force)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(app.stdout, "Config file already exists at %s (use --force to overwrite)\n", CmdStyle.Render(written))
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created config file at %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(written))
			return nil
		},
	}
	initCmd.Flags().StringVar(&initPath, "path", "", "where to write the file (default is the user config location)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	return cfgCmd
}

// renderConfig serializes cfg in format, with a comment naming its source.
func renderConfig(cfg *config.Config, format, source string) (string, error) {
	if source == "" {
		source = "(defaults)"
	}

	switch strings.ToLower(format) {
	case formatCUE:
		return "// source: " + source + "\n" + config.GenerateCUE(cfg), nil
	case formatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return "", fmt.Errorf("failed to encode configuration as YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("failed to encode configuration as YAML: %w", err)
		}
		return "# source: " + source + "\n" + buf.String(), nil
	case formatTOML:
		data, err := toml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("failed to encode configuration as TOML: %w", err)
		}
		return "# source: " + source + "\n" + string(data), nil
	default:
		return "", fmt.Errorf("unknown format %q (valid: cue, yaml, toml)", format)
	}
}
