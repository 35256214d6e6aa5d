// SPDX-License-Identifier: MPL-2.0

package bufyaml

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/invowk/bufstage/internal/issue"

	"gopkg.in/yaml.v3"
)

const (
	// ModuleFileName is the module manifest file name.
	ModuleFileName = "buf.yaml"
	// WorkspaceFileName is the workspace manifest file name.
	WorkspaceFileName = "buf.work.yaml"
)

type (
	// DependencyRef is an opaque dependency reference such as
	// "buf.build/googleapis/googleapis". It is forwarded to `buf export` as-is.
	DependencyRef string

	// MemberDir is a workspace member directory, relative to the workspace root.
	MemberDir string

	// Module is a decoded buf.yaml.
	Module struct {
		Version string          `yaml:"version"`
		Deps    []DependencyRef `yaml:"deps"`
	}

	// Workspace is a decoded buf.work.yaml.
	Workspace struct {
		Version     string      `yaml:"version"`
		Directories []MemberDir `yaml:"directories"`
	}
)

// String returns the reference text.
func (r DependencyRef) String() string { return string(r) }

// String returns the directory text.
func (d MemberDir) String() string { return string(d) }

// ModulePath returns the buf.yaml path inside dir.
func ModulePath(dir string) string {
	return filepath.Join(dir, ModuleFileName)
}

// WorkspacePath returns the buf.work.yaml path inside dir.
func WorkspacePath(dir string) string {
	return filepath.Join(dir, WorkspaceFileName)
}

// Load reads and decodes the module manifest at path.
func Load(path string) (*Module, error) {
	data, err := readManifest(path, "read module manifest")
	if err != nil {
		return nil, err
	}
	return decodeModule(data, path)
}

// LoadWorkspace reads and decodes the workspace manifest at path.
func LoadWorkspace(path string) (*Workspace, error) {
	data, err := readManifest(path, "read workspace manifest")
	if err != nil {
		return nil, err
	}
	return decodeWorkspace(data, path)
}

// Decode decodes a module manifest from r. The name is used in errors.
func Decode(r io.Reader, name string) (*Module, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, issue.WrapWithContext(issue.KindIO, err, "read module manifest", name)
	}
	return decodeModule(data, name)
}

// DecodeWorkspace decodes a workspace manifest from r. The name is used in errors.
func DecodeWorkspace(r io.Reader, name string) (*Workspace, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, issue.WrapWithContext(issue.KindIO, err, "read workspace manifest", name)
	}
	return decodeWorkspace(data, name)
}

// DepStrings returns the dependency references as plain strings.
func (m *Module) DepStrings() []string {
	out := make([]string, len(m.Deps))
	for i, d := range m.Deps {
		out[i] = string(d)
	}
	return out
}

func readManifest(path, operation string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithKind(issue.KindIO).
			WithOperation(operation).
			WithResource(path).
			WithSuggestion("Check that the file exists and is readable").
			Wrap(err).
			BuildError()
	}
	return data, nil
}

func decodeModule(data []byte, name string) (*Module, error) {
	var m Module
	if err := unmarshalStrict(data, &m, "deps"); err != nil {
		return nil, parseError(err, "decode module manifest", name)
	}
	if m.Deps == nil {
		m.Deps = []DependencyRef{}
	}
	return &m, nil
}

func decodeWorkspace(data []byte, name string) (*Workspace, error) {
	var w Workspace
	if err := unmarshalStrict(data, &w, "directories"); err != nil {
		return nil, parseError(err, "decode workspace manifest", name)
	}
	if w.Directories == nil {
		w.Directories = []MemberDir{}
	}
	return &w, nil
}

// unmarshalStrict decodes the first document of data into out. An empty
// document is accepted; a top-level value that is not a mapping is rejected,
// as is any listKeys value that is not null or a list of strings.
func unmarshalStrict(data []byte, out any, listKeys ...string) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if len(root.Content) == 0 {
		return nil
	}
	doc := root.Content[0]
	if isNull(doc) {
		return nil
	}
	if doc.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping at the top level", doc.Line)
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		if slices.Contains(listKeys, key) {
			if err := checkStringList(key, doc.Content[i+1]); err != nil {
				return err
			}
		}
	}
	return doc.Decode(out)
}

// checkStringList rejects anything but null or a sequence of string
// scalars. yaml.v3 would otherwise turn 1 or true into "1" or "true" and
// skip null items.
func checkStringList(key string, n *yaml.Node) error {
	n = resolveAlias(n)
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: %q must be a list of strings", n.Line, key)
	}
	for _, item := range n.Content {
		item = resolveAlias(item)
		if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
			return fmt.Errorf("line %d: %q entries must be strings, got %s", item.Line, key, describeNode(item))
		}
	}
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		return n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func describeNode(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a list"
	case yaml.ScalarNode:
		if isNull(n) {
			return "null"
		}
		return fmt.Sprintf("%s %q", n.ShortTag(), n.Value)
	default:
		return "an unsupported node"
	}
}

func parseError(err error, operation, name string) error {
	return issue.NewErrorContext().
		WithKind(issue.KindParse).
		WithOperation(operation).
		WithResource(name).
		WithSuggestion("Check the YAML syntax").
		WithSuggestion("'deps' and 'directories' must be lists of strings").
		Wrap(err).
		BuildError()
}
