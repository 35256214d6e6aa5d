// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"io/fs"
	"os/exec"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	BufNotFoundId Id = iota + 1
	ManifestNotFoundId
	ManifestParseErrorId
	ExportFailedId
	ListFilesFailedId
	CompilerNotFoundId
	CompileFailedId
	ConfigLoadFailedId
	StagingDirFailedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink  // buf/protoc documentation relevant to the issue
		extLinks []HttpLink  // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue's markdown with glamour using the given style
// ("dark", "light", "notty", or a path to a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	bufNotFoundIssue = &Issue{
		id: BufNotFoundId,
		mdMsg: `
# buf not found!

bufstage shells out to the ` + "`buf`" + ` CLI to export dependencies and list
module files, but the binary could not be executed.

## Things you can try:
- Install buf and make sure it is on your PATH:
~~~
$ go install github.com/bufbuild/buf/cmd/buf@latest
~~~

- Or point bufstage at an existing binary:
~~~cue
buf: binary: "/opt/buf/bin/buf"
~~~`,
		docLinks: []HttpLink{"https://buf.build/docs/installation"},
	}

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No buf manifest found!

A module build reads ` + "`buf.yaml`" + ` and a workspace build reads
` + "`buf.work.yaml`" + ` from the build directory.

## Things you can try:
- Run from the directory that holds the manifest, or pass it explicitly:
~~~
$ bufstage -C proto build
~~~

- Build a workspace instead of a single module:
~~~
$ bufstage build --workspace=true
~~~`,
		docLinks: []HttpLink{"https://buf.build/docs/configuration/v1/buf-yaml"},
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Failed to parse buf manifest!

The manifest is not valid YAML or a field has the wrong type.

## Expected shape:
~~~yaml
# buf.yaml
version: v1
deps:
  - buf.build/googleapis/googleapis
~~~

~~~yaml
# buf.work.yaml
version: v1
directories:
  - proto
  - vendor/proto
~~~`,
		docLinks: []HttpLink{
			"https://buf.build/docs/configuration/v1/buf-yaml",
			"https://buf.build/docs/configuration/v1/buf-work-yaml",
		},
	}

	exportFailedIssue = &Issue{
		id: ExportFailedId,
		mdMsg: `
# Dependency export failed!

` + "`buf export`" + ` exited with an error. Exports stop at the first failure;
files written by earlier exports are left in place.

## Things you can try:
- Run the export by hand to see the full output:
~~~
$ buf export <dependency> -o /tmp/out
~~~

- Check network access and registry credentials (` + "`buf registry login`" + `)
- Check the dependency reference for typos`,
		docLinks: []HttpLink{"https://buf.build/docs/reference/cli/buf/export"},
	}

	listFilesFailedIssue = &Issue{
		id: ListFilesFailedId,
		mdMsg: `
# Listing module files failed!

` + "`buf ls-files`" + ` exited with an error or printed output that is not UTF-8.

## Things you can try:
- Run it by hand:
~~~
$ buf ls-files .
~~~

- Make sure the directory contains a valid buf module or workspace`,
		docLinks: []HttpLink{"https://buf.build/docs/reference/cli/buf/ls-files"},
	}

	compilerNotFoundIssue = &Issue{
		id: CompilerNotFoundId,
		mdMsg: `
# protoc not found!

The downstream compiler could not be executed.

## Things you can try:
- Install protoc and make sure it is on your PATH
- Or configure its location:
~~~cue
protoc: binary: "/usr/local/bin/protoc"
~~~`,
		extLinks: []HttpLink{"https://github.com/protocolbuffers/protobuf/releases"},
	}

	compileFailedIssue = &Issue{
		id: CompileFailedId,
		mdMsg: `
# Code generation failed!

The compiler rejected the schema or a plugin failed.

## Things you can try:
- Re-run with --verbose to see the include paths and files passed in
- Preview the exact command line:
~~~
$ bufstage build --dry-run
~~~

- Check that every plugin listed under ` + "`protoc.plugins`" + ` is installed`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Show the effective configuration:
~~~
$ bufstage config show
~~~

- Regenerate a default file:
~~~
$ bufstage config init
~~~`,
	}

	stagingDirFailedIssue = &Issue{
		id: StagingDirFailedId,
		mdMsg: `
# Could not create the staging directory!

Exported dependencies are collected in a fresh directory under the
temporary root before compilation.

## Things you can try:
- Check that $TMPDIR exists and is writable
- Or choose another root:
~~~cue
staging: root: "/var/tmp"
~~~`,
	}

	issues = map[Id]*Issue{
		bufNotFoundIssue.Id():        bufNotFoundIssue,
		manifestNotFoundIssue.Id():   manifestNotFoundIssue,
		manifestParseErrorIssue.Id(): manifestParseErrorIssue,
		exportFailedIssue.Id():       exportFailedIssue,
		listFilesFailedIssue.Id():    listFilesFailedIssue,
		compilerNotFoundIssue.Id():   compilerNotFoundIssue,
		compileFailedIssue.Id():      compileFailedIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		stagingDirFailedIssue.Id():   stagingDirFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}

// ForError picks the guidance issue for err. An Id recorded on the
// ActionableError wins; otherwise the kind and cause decide. Returns nil when
// nothing applies.
func ForError(err error) *Issue {
	var ae *ActionableError
	if !errors.As(err, &ae) {
		return nil
	}
	if ae.Issue != 0 {
		return Get(ae.Issue)
	}

	notFound := errors.Is(err, exec.ErrNotFound)
	switch ae.Kind {
	case KindIO:
		if errors.Is(err, fs.ErrNotExist) {
			return Get(ManifestNotFoundId)
		}
	case KindParse:
		return Get(ManifestParseErrorId)
	case KindExternalTool:
		if notFound {
			return Get(BufNotFoundId)
		}
	case KindGenerator:
		if notFound {
			return Get(CompilerNotFoundId)
		}
		return Get(CompileFailedId)
	}
	return nil
}
