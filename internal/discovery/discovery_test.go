// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/invowk/bufstage/internal/issue"
)

type listerFunc func(ctx context.Context, path string) ([]byte, error)

func (f listerFunc) LsFiles(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

func TestParseFileList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "trailing newline", in: "a.proto\nb.proto\n", want: []string{"a.proto", "b.proto"}},
		{name: "empty", in: "", want: []string{}},
		{name: "only terminator", in: "\n", want: []string{}},
		{name: "no trailing newline", in: "a.proto", want: []string{"a.proto"}},
		{name: "crlf", in: "a.proto\r\nb.proto\r\n", want: []string{"a.proto", "b.proto"}},
		{name: "only one terminator trimmed", in: "a.proto\n\n", want: []string{"a.proto", ""}},
		{name: "spaces kept verbatim", in: " dir/a b.proto \n", want: []string{" dir/a b.proto "}},
		{name: "no normalization", in: "./x/../y.proto\n", want: []string{"./x/../y.proto"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseFileList([]byte(tt.in))
			if err != nil {
				t.Fatalf("ParseFileList() error: %v", err)
			}
			if got == nil {
				t.Fatal("ParseFileList() returned nil, want non-nil slice")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("ParseFileList(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFileList_InvalidUTF8(t *testing.T) {
	t.Parallel()

	_, err := ParseFileList([]byte{'a', 0xff, '\n'})
	if !errors.Is(err, issue.ErrExternalTool) {
		t.Errorf("ParseFileList() error = %v, want external tool error", err)
	}
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	var gotPath string
	d := New(listerFunc(func(_ context.Context, path string) ([]byte, error) {
		gotPath = path
		return []byte("x/a.proto\n"), nil
	}))

	files, err := d.ListFiles(context.Background(), "proto")
	if err != nil {
		t.Fatalf("ListFiles() error: %v", err)
	}
	if gotPath != "proto" {
		t.Errorf("listing scoped to %q, want proto", gotPath)
	}
	if !slices.Equal(files, []string{"x/a.proto"}) {
		t.Errorf("ListFiles() = %v", files)
	}
}

func TestListFiles_PropagatesError(t *testing.T) {
	t.Parallel()

	want := issue.NewErrorContext().WithKind(issue.KindExternalTool).WithOperation("execute buf ls-files").BuildError()
	d := New(listerFunc(func(context.Context, string) ([]byte, error) { return nil, want }))

	if _, err := d.ListFiles(context.Background(), "."); !errors.Is(err, want) {
		t.Errorf("ListFiles() error = %v, want %v", err, want)
	}
}
