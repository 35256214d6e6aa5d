// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/invowk/bufstage/internal/cueutil"
	"github.com/invowk/bufstage/internal/issue"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "bufstage"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalConfigFileName is looked up in the working directory when the
	// user config directory holds no config file.
	LocalConfigFileName = AppName + "." + ConfigFileExt
	// EnvPrefix prefixes environment overrides (BUFSTAGE_BUF_BINARY, ...).
	EnvPrefix = "BUFSTAGE"
)

//go:embed config_schema.cue
var configSchema []byte

// compiledSchema compiles the embedded schema on first use.
var compiledSchema = sync.OnceValues(func() (*cueutil.Schema, error) {
	return cueutil.Compile(configSchema, "#Config")
})

// ConfigDir returns the bufstage configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading and returns the
// config plus the file it came from ("" when only defaults applied).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", loadError(resolvedPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", loadError(resolvedPath, fmt.Errorf("failed to parse config: %w", err))
	}

	// CUE checks shapes; values built from env overrides only meet Go-side checks.
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithKind(issue.KindParse).
			WithIssue(issue.ConfigLoadFailedId).
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check BUFSTAGE_* environment variables as well as the config file").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("buf.binary", defaults.Buf.Binary)
	v.SetDefault("buf.dir", defaults.Buf.Dir)
	v.SetDefault("protoc.binary", defaults.Protoc.Binary)
	v.SetDefault("protoc.plugins", defaults.Protoc.Plugins)
	v.SetDefault("protoc.descriptor_set_out", defaults.Protoc.DescriptorSetOut)
	v.SetDefault("protoc.include_imports", defaults.Protoc.IncludeImports)
	v.SetDefault("staging.root", defaults.Staging.Root)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	v.SetDefault("watch.patterns", defaults.Watch.Patterns)
	v.SetDefault("watch.ignore", defaults.Watch.Ignore)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("log.level", defaults.Log.Level)
}

// resolvePath applies the lookup order: explicit file, user config dir,
// working directory. It returns "" when no file exists.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithKind(issue.KindIO).
				WithIssue(issue.ConfigLoadFailedId).
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'bufstage config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %w", fs.ErrNotExist)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	if p := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(p) {
		return p, nil
	}
	if p := filepath.Join(opts.WorkDir, LocalConfigFileName); fileExists(p) {
		return p, nil
	}
	return "", nil
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithKind(issue.KindParse).
		WithIssue(issue.ConfigLoadFailedId).
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		Wrap(err).
		BuildError()
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges its
// contents into Viper. Fields are optional, so values need not be concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	values, err := cueutil.Decode[map[string]any](schema, data,
		cueutil.WithFilename(path),
		cueutil.AllowIncomplete(),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*values); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file at path, or at the user
// config location when path is empty. It returns the target path and whether
// a file was written; an existing file is left untouched unless force is set.
func CreateDefaultConfig(path string, force bool) (string, bool, error) {
	if path == "" {
		cfgDir, err := ConfigDir()
		if err != nil {
			return "", false, err
		}
		path = filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	}

	if !force && fileExists(path) {
		return path, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}
	return path, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// bufstage configuration file\n")
	sb.WriteString("// Environment variables prefixed with BUFSTAGE_ override these values.\n\n")

	sb.WriteString("buf: {\n")
	fmt.Fprintf(&sb, "\tbinary: %q\n", cfg.Buf.Binary)
	fmt.Fprintf(&sb, "\tdir:    %q\n", cfg.Buf.Dir)
	sb.WriteString("}\n")

	sb.WriteString("\nprotoc: {\n")
	fmt.Fprintf(&sb, "\tbinary: %q\n", cfg.Protoc.Binary)
	if len(cfg.Protoc.Plugins) > 0 {
		sb.WriteString("\tplugins: [\n")
		for _, p := range cfg.Protoc.Plugins {
			if p.Opt != "" {
				fmt.Fprintf(&sb, "\t\t{name: %q, out: %q, opt: %q},\n", p.Name, p.Out, p.Opt)
			} else {
				fmt.Fprintf(&sb, "\t\t{name: %q, out: %q},\n", p.Name, p.Out)
			}
		}
		sb.WriteString("\t]\n")
	} else {
		sb.WriteString("\t// plugins: [{name: \"go\", out: \"gen\", opt: \"paths=source_relative\"}]\n")
	}
	if cfg.Protoc.DescriptorSetOut != "" {
		fmt.Fprintf(&sb, "\tdescriptor_set_out: %q\n", cfg.Protoc.DescriptorSetOut)
	}
	fmt.Fprintf(&sb, "\tinclude_imports: %v\n", cfg.Protoc.IncludeImports)
	sb.WriteString("}\n")

	sb.WriteString("\nstaging: {\n")
	fmt.Fprintf(&sb, "\troot: %q\n", cfg.Staging.Root)
	sb.WriteString("}\n")

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Watch.Debounce)
	fmt.Fprintf(&sb, "\tpatterns: %s\n", cueList(cfg.Watch.Patterns))
	fmt.Fprintf(&sb, "\tignore:   %s\n", cueList(cfg.Watch.Ignore))
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, item := range items {
		quoted = append(quoted, fmt.Sprintf("%q", item))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
