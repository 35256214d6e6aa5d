// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/invowk/bufstage/internal/issue"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Buf.Binary != "buf" || cfg.Buf.Dir != "." {
		t.Errorf("Buf = %+v", cfg.Buf)
	}
	if cfg.Protoc.Binary != "protoc" || len(cfg.Protoc.Plugins) != 0 {
		t.Errorf("Protoc = %+v", cfg.Protoc)
	}
	if cfg.Staging.Root != "" {
		t.Errorf("Staging.Root = %q, want empty", cfg.Staging.Root)
	}
	if cfg.Watch.Debounce != "500ms" {
		t.Errorf("Watch.Debounce = %q", cfg.Watch.Debounce)
	}
	if !slices.Equal(cfg.Watch.Patterns, []string{"**/*.proto", "**/buf.yaml", "**/buf.work.yaml"}) {
		t.Errorf("Watch.Patterns = %v", cfg.Watch.Patterns)
	}
	if cfg.UI.Verbose {
		t.Error("expected default verbose to be false")
	}
	if cfg.Log.Level != LogLevelInfo {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Parallel()

	p := NewProvider()
	cfg, err := p.Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir(), WorkDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if p.Source() != "" {
		t.Errorf("Source() = %q, want empty", p.Source())
	}
	if cfg.Buf.Binary != "buf" || cfg.Log.Level != LogLevelInfo {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), "custom.cue", `
buf: binary: "/opt/buf/bin/buf"
protoc: {
	plugins: [
		{name: "go", out: "gen/go", opt: "paths=source_relative"},
		{name: "go-grpc", out: "gen/go"},
	]
	descriptor_set_out: "gen/set.binpb"
	include_imports: true
}
staging: root: "/var/tmp"
watch: debounce: "1s"
log: level: "debug"
`)

	p := NewProvider()
	cfg, err := p.Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if p.Source() != path {
		t.Errorf("Source() = %q, want %q", p.Source(), path)
	}

	if cfg.Buf.Binary != "/opt/buf/bin/buf" {
		t.Errorf("Buf.Binary = %q", cfg.Buf.Binary)
	}
	if cfg.Buf.Dir != "." {
		t.Errorf("unset Buf.Dir should keep its default, got %q", cfg.Buf.Dir)
	}
	want := []PluginSpec{
		{Name: "go", Out: "gen/go", Opt: "paths=source_relative"},
		{Name: "go-grpc", Out: "gen/go"},
	}
	if !slices.Equal(cfg.Protoc.Plugins, want) {
		t.Errorf("Plugins = %+v, want %+v", cfg.Protoc.Plugins, want)
	}
	if !cfg.Protoc.IncludeImports || cfg.Protoc.DescriptorSetOut != "gen/set.binpb" {
		t.Errorf("Protoc = %+v", cfg.Protoc)
	}
	if cfg.Staging.Root != "/var/tmp" || cfg.Watch.Debounce != "1s" || cfg.Log.Level != LogLevelDebug {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue"),
	})
	if !errors.Is(err, issue.ErrIO) {
		t.Fatalf("Load() error = %v, want I/O error", err)
	}
	if got := issue.ForError(err); got == nil || got.Id() != issue.ConfigLoadFailedId {
		t.Errorf("ForError() = %v, want ConfigLoadFailed", got)
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", `colour: true`, "colour"},
		{"bad log level", `log: level: "loud"`, "log.level"},
		{"bad plugin name", `protoc: plugins: [{name: "go out", out: "gen"}]`, "protoc.plugins[0].name"},
		{"wrong type", `ui: verbose: "yes"`, "ui.verbose"},
		{"bad debounce", `watch: debounce: "soon"`, "watch.debounce"},
		{"syntax", `buf: {`, "bad.cue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, t.TempDir(), "bad.cue", tt.content)
			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
			if !errors.Is(err, issue.ErrParse) {
				t.Fatalf("Load() error = %v, want parse error", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_LookupOrder(t *testing.T) {
	t.Parallel()

	cfgDir := t.TempDir()
	workDir := t.TempDir()
	local := writeConfig(t, workDir, LocalConfigFileName, `buf: dir: "local"`)

	p := NewProvider()
	cfg, err := p.Load(context.Background(), LoadOptions{ConfigDirPath: cfgDir, WorkDir: workDir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Buf.Dir != "local" || p.Source() != local {
		t.Errorf("working directory config not used: dir=%q source=%q", cfg.Buf.Dir, p.Source())
	}

	user := writeConfig(t, cfgDir, ConfigFileName+"."+ConfigFileExt, `buf: dir: "user"`)
	cfg, err = p.Load(context.Background(), LoadOptions{ConfigDirPath: cfgDir, WorkDir: workDir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Buf.Dir != "user" || p.Source() != user {
		t.Errorf("user config should win over working directory: dir=%q source=%q", cfg.Buf.Dir, p.Source())
	}

	explicit := writeConfig(t, t.TempDir(), "x.cue", `buf: dir: "explicit"`)
	cfg, err = p.Load(context.Background(), LoadOptions{ConfigFilePath: explicit, ConfigDirPath: cfgDir, WorkDir: workDir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Buf.Dir != "explicit" {
		t.Errorf("explicit file should be used exclusively, got dir=%q", cfg.Buf.Dir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BUFSTAGE_BUF_BINARY", "/env/buf")
	t.Setenv("BUFSTAGE_LOG_LEVEL", "warn")

	path := writeConfig(t, t.TempDir(), "c.cue", `buf: binary: "/file/buf"`)
	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Buf.Binary != "/env/buf" {
		t.Errorf("Buf.Binary = %q, environment should override the file", cfg.Buf.Binary)
	}
	if cfg.Log.Level != LogLevelWarn {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoad_InvalidEnvOverride(t *testing.T) {
	t.Setenv("BUFSTAGE_LOG_LEVEL", "chatty")

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir(), WorkDir: t.TempDir()})
	if !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("Load() error = %v, want ErrInvalidLogLevel", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.cue")
	got, created, err := CreateDefaultConfig(path, false)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error: %v", err)
	}
	if got != path || !created {
		t.Errorf("CreateDefaultConfig() = %q, %v; want %q, true", got, created, path)
	}

	p := NewProvider()
	cfg, err := p.Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	def := DefaultConfig()
	if cfg.Buf != def.Buf || cfg.Watch.Debounce != def.Watch.Debounce || cfg.Log != def.Log {
		t.Errorf("generated config = %+v, want defaults", cfg)
	}
	if !slices.Equal(cfg.Watch.Patterns, def.Watch.Patterns) {
		t.Errorf("Watch.Patterns = %v", cfg.Watch.Patterns)
	}

	if err := os.WriteFile(path, []byte(`log: level: "error"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, created, err := CreateDefaultConfig(path, false); err != nil || created {
		t.Fatalf("CreateDefaultConfig() over existing file: created=%v err=%v", created, err)
	}
	if data, _ := os.ReadFile(path); string(data) != `log: level: "error"` {
		t.Error("existing config should be left untouched without force")
	}
	if _, _, err := CreateDefaultConfig(path, true); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(path); !strings.Contains(string(data), "bufstage configuration file") {
		t.Error("force should overwrite the existing config")
	}
}

func TestGenerateCUE_Plugins(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Protoc.Plugins = []PluginSpec{
		{Name: "go", Out: "gen"},
		{Name: "go-grpc", Out: "gen", Opt: "require_unimplemented_servers=false"},
	}
	cfg.Protoc.DescriptorSetOut = "gen/set.binpb"

	out := GenerateCUE(cfg)
	for _, want := range []string{
		`{name: "go", out: "gen"},`,
		`{name: "go-grpc", out: "gen", opt: "require_unimplemented_servers=false"},`,
		`descriptor_set_out: "gen/set.binpb"`,
		`patterns: ["**/*.proto", "**/buf.yaml", "**/buf.work.yaml"]`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("GenerateCUE() missing %q:\n%s", want, out)
		}
	}

	path := writeConfig(t, t.TempDir(), "gen.cue", out)
	loaded, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if !slices.Equal(loaded.Protoc.Plugins, cfg.Protoc.Plugins) {
		t.Errorf("Plugins = %+v", loaded.Protoc.Plugins)
	}
}

func TestConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	got, err := ConfigDir()
	if err != nil || got != dir {
		t.Errorf("ConfigDir() = %q, %v; want %q", got, err, dir)
	}
}
