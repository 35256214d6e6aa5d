// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/invowk/bufstage/internal/compiler"

	"github.com/charmbracelet/log"
)

const (
	// LogLevelDebug logs every stage and subprocess command line.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs a one-line build summary.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs only warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs only errors.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidBinaryPath is returned when a BinaryPath value is whitespace-only.
	ErrInvalidBinaryPath = errors.New("invalid binary path")
	// ErrInvalidPluginSpec is the sentinel error wrapped by InvalidPluginSpecError.
	ErrInvalidPluginSpec = errors.New("invalid plugin spec")
	// ErrInvalidDebounceInterval is returned when a DebounceInterval does not parse.
	ErrInvalidDebounceInterval = errors.New("invalid debounce interval")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	pluginNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

type (
	// LogLevel is the minimum level written by the CLI logger.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// BinaryPath is an executable name looked up on PATH, or a path to one.
	// The zero value ("") is valid and means "use the default binary".
	BinaryPath string

	// InvalidBinaryPathError is returned when a BinaryPath value is
	// non-empty but whitespace-only.
	InvalidBinaryPathError struct {
		Value BinaryPath
	}

	// DebounceInterval is a time.ParseDuration string such as "500ms".
	DebounceInterval string

	// InvalidDebounceIntervalError is returned when a DebounceInterval does not
	// parse or is not positive.
	InvalidDebounceIntervalError struct {
		Value DebounceInterval
		Cause error
	}

	// InvalidPluginSpecError is returned when a PluginSpec has invalid fields.
	InvalidPluginSpecError struct {
		Name   string
		Reason string
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// PluginSpec selects one protoc code generator.
	PluginSpec struct {
		// Name is the plugin name used in --<name>_out.
		Name string `json:"name" mapstructure:"name" yaml:"name" toml:"name"`
		// Out is the output directory.
		Out string `json:"out" mapstructure:"out" yaml:"out" toml:"out"`
		// Opt is passed as --<name>_opt when non-empty.
		Opt string `json:"opt,omitempty" mapstructure:"opt" yaml:"opt,omitempty" toml:"opt,omitempty"`
	}

	// Config holds the application configuration.
	Config struct {
		// Buf configures the buf CLI and the build directory.
		Buf BufConfig `json:"buf" mapstructure:"buf" yaml:"buf" toml:"buf"`
		// Protoc configures the downstream compiler.
		Protoc ProtocConfig `json:"protoc" mapstructure:"protoc" yaml:"protoc" toml:"protoc"`
		// Staging configures where dependency exports are collected.
		Staging StagingConfig `json:"staging" mapstructure:"staging" yaml:"staging" toml:"staging"`
		// Watch configures `build --watch`.
		Watch WatchConfig `json:"watch" mapstructure:"watch" yaml:"watch" toml:"watch"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui" yaml:"ui" toml:"ui"`
		// Log configures the CLI logger.
		Log LogConfig `json:"log" mapstructure:"log" yaml:"log" toml:"log"`
	}

	// BufConfig configures the buf CLI.
	BufConfig struct {
		// Binary is the buf executable (default "buf")
		Binary BinaryPath `json:"binary" mapstructure:"binary" yaml:"binary" toml:"binary"`
		// Dir holds buf.yaml or buf.work.yaml (default ".")
		Dir string `json:"dir" mapstructure:"dir" yaml:"dir" toml:"dir"`
	}

	// ProtocConfig configures protoc.
	ProtocConfig struct {
		// Binary is the protoc executable (default "protoc")
		Binary BinaryPath `json:"binary" mapstructure:"binary" yaml:"binary" toml:"binary"`
		// Plugins lists the code generators to run
		Plugins []PluginSpec `json:"plugins" mapstructure:"plugins" yaml:"plugins" toml:"plugins"`
		// DescriptorSetOut writes a FileDescriptorSet when non-empty
		DescriptorSetOut string `json:"descriptor_set_out" mapstructure:"descriptor_set_out" yaml:"descriptor_set_out" toml:"descriptor_set_out"`
		// IncludeImports adds imported files to the descriptor set
		IncludeImports bool `json:"include_imports" mapstructure:"include_imports" yaml:"include_imports" toml:"include_imports"`
	}

	// StagingConfig configures the staging directory.
	StagingConfig struct {
		// Root is the parent of per-run staging directories ("" means os.TempDir())
		Root string `json:"root" mapstructure:"root" yaml:"root" toml:"root"`
	}

	// WatchConfig configures file watching.
	WatchConfig struct {
		// Debounce is the quiet period before a rebuild
		Debounce DebounceInterval `json:"debounce" mapstructure:"debounce" yaml:"debounce" toml:"debounce"`
		// Patterns are doublestar globs that trigger rebuilds
		Patterns []string `json:"patterns" mapstructure:"patterns" yaml:"patterns" toml:"patterns"`
		// Ignore are doublestar globs that never trigger rebuilds
		Ignore []string `json:"ignore" mapstructure:"ignore" yaml:"ignore" toml:"ignore"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose" yaml:"verbose" toml:"verbose"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		// Level is the minimum level written
		Level LogLevel `json:"level" mapstructure:"level" yaml:"level" toml:"level"`
	}
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Level converts to a charmbracelet/log level. Unknown values map to info.
func (l LogLevel) Level() log.Level {
	lvl, err := log.ParseLevel(string(l))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the BinaryPath.
func (p BinaryPath) String() string { return string(p) }

// IsValid returns whether the BinaryPath is valid.
// The zero value ("") is valid. Non-zero values must not be whitespace-only.
func (p BinaryPath) IsValid() (bool, []error) {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidBinaryPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidBinaryPathError.
func (e *InvalidBinaryPathError) Error() string {
	return fmt.Sprintf("invalid binary path %q: must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidBinaryPath for errors.Is() compatibility.
func (e *InvalidBinaryPathError) Unwrap() error { return ErrInvalidBinaryPath }

// Duration parses the interval. Call IsValid first; invalid values return 0.
func (d DebounceInterval) Duration() time.Duration {
	dur, err := time.ParseDuration(string(d))
	if err != nil {
		return 0
	}
	return dur
}

// IsValid returns whether the interval parses to a positive duration.
func (d DebounceInterval) IsValid() (bool, []error) {
	dur, err := time.ParseDuration(string(d))
	if err != nil {
		return false, []error{&InvalidDebounceIntervalError{Value: d, Cause: err}}
	}
	if dur <= 0 {
		return false, []error{&InvalidDebounceIntervalError{Value: d}}
	}
	return true, nil
}

// Error implements the error interface for InvalidDebounceIntervalError.
func (e *InvalidDebounceIntervalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid debounce interval %q: %v", e.Value, e.Cause)
	}
	return fmt.Sprintf("invalid debounce interval %q: must be positive", e.Value)
}

// Unwrap returns ErrInvalidDebounceInterval for errors.Is() compatibility.
func (e *InvalidDebounceIntervalError) Unwrap() error { return ErrInvalidDebounceInterval }

// IsValid returns whether the plugin can be turned into protoc flags.
func (p PluginSpec) IsValid() (bool, []error) {
	var errs []error
	if !pluginNamePattern.MatchString(p.Name) {
		errs = append(errs, &InvalidPluginSpecError{Name: p.Name, Reason: "name must match [A-Za-z0-9_-]+"})
	}
	if strings.TrimSpace(p.Out) == "" {
		errs = append(errs, &InvalidPluginSpecError{Name: p.Name, Reason: "out must be non-empty"})
	}
	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

// Error implements the error interface for InvalidPluginSpecError.
func (e *InvalidPluginSpecError) Error() string {
	return fmt.Sprintf("invalid plugin %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrInvalidPluginSpec for errors.Is() compatibility.
func (e *InvalidPluginSpecError) Unwrap() error { return ErrInvalidPluginSpec }

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Buf.Binary.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Protoc.Binary.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	seen := make(map[string]bool, len(c.Protoc.Plugins))
	for _, p := range c.Protoc.Plugins {
		if valid, fieldErrs := p.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
		if seen[p.Name] {
			errs = append(errs, &InvalidPluginSpecError{Name: p.Name, Reason: "listed more than once"})
		}
		seen[p.Name] = true
	}
	if valid, fieldErrs := c.Watch.Debounce.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Validate returns the IsValid result as a single error.
func (c Config) Validate() error {
	if valid, errs := c.IsValid(); !valid {
		return errs[0]
	}
	return nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors, so errors.Is()
// matches both the aggregate and the individual sentinels.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// ProtocOptions converts the protoc section for compiler.NewProtoc.
func (c *Config) ProtocOptions() compiler.ProtocOptions {
	plugins := make([]compiler.Plugin, 0, len(c.Protoc.Plugins))
	for _, p := range c.Protoc.Plugins {
		plugins = append(plugins, compiler.Plugin{Name: p.Name, Out: p.Out, Opt: p.Opt})
	}
	return compiler.ProtocOptions{
		Binary:           string(c.Protoc.Binary),
		Plugins:          plugins,
		DescriptorSetOut: c.Protoc.DescriptorSetOut,
		IncludeImports:   c.Protoc.IncludeImports,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Buf: BufConfig{
			Binary: "buf",
			Dir:    ".",
		},
		Protoc: ProtocConfig{
			Binary:  compiler.DefaultProtocBinary,
			Plugins: []PluginSpec{},
		},
		Watch: WatchConfig{
			Debounce: "500ms",
			Patterns: []string{"**/*.proto", "**/buf.yaml", "**/buf.work.yaml"},
			Ignore:   []string{},
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
	}
}
