// SPDX-License-Identifier: MPL-2.0

// Package discovery enumerates a module's own schema files through
// `buf ls-files`.
package discovery

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/invowk/bufstage/internal/issue"
)

type (
	// Lister returns the raw stdout of a listing operation scoped to path.
	// *bufcli.CLI implements it.
	Lister interface {
		LsFiles(ctx context.Context, path string) ([]byte, error)
	}

	// Discoverer turns listing output into a file list.
	Discoverer struct {
		lister Lister
	}
)

// New creates a Discoverer around lister.
func New(lister Lister) *Discoverer {
	return &Discoverer{lister: lister}
}

// ListFiles returns the files under modulePath in the order buf reports them.
func (d *Discoverer) ListFiles(ctx context.Context, modulePath string) ([]string, error) {
	out, err := d.lister.LsFiles(ctx, modulePath)
	if err != nil {
		return nil, err
	}
	return ParseFileList(out)
}

// ParseFileList decodes listing output. Exactly one trailing line terminator
// is dropped, then the text is split into lines; CRLF counts as a single
// terminator. Lines are otherwise kept verbatim. Empty output is an empty
// list, not a list holding one empty path.
func ParseFileList(out []byte) ([]string, error) {
	if !utf8.Valid(out) {
		return nil, issue.NewErrorContext().
			WithKind(issue.KindExternalTool).
			WithIssue(issue.ListFilesFailedId).
			WithOperation("decode buf ls-files output").
			WithDetail("output is not valid UTF-8").
			BuildError()
	}

	text := string(out)
	switch {
	case strings.HasSuffix(text, "\r\n"):
		text = text[:len(text)-2]
	case strings.HasSuffix(text, "\n"):
		text = text[:len(text)-1]
	}
	if text == "" {
		return []string{}, nil
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}
