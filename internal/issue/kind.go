// SPDX-License-Identifier: MPL-2.0

package issue

import "errors"

const (
	// KindUnknown is the zero Kind; errors.Is never matches a sentinel for it.
	KindUnknown Kind = iota
	// KindIO is a file open/read/create failure.
	KindIO
	// KindParse is a manifest that is not a valid document or has the wrong shape.
	KindParse
	// KindExternalTool is a subprocess that could not be spawned, exited
	// non-zero, or produced undecodable output.
	KindExternalTool
	// KindGenerator is a downstream compiler failure.
	KindGenerator
)

var (
	// ErrIO is matched by errors.Is for every KindIO error.
	ErrIO = errors.New("i/o error")
	// ErrParse is matched by errors.Is for every KindParse error.
	ErrParse = errors.New("parse error")
	// ErrExternalTool is matched by errors.Is for every KindExternalTool error.
	ErrExternalTool = errors.New("external tool error")
	// ErrGenerator is matched by errors.Is for every KindGenerator error.
	ErrGenerator = errors.New("generator error")
)

// Kind classifies an ActionableError.
type Kind int

// Sentinel returns the errors.Is target for the kind, or nil for KindUnknown.
func (k Kind) Sentinel() error {
	switch k {
	case KindIO:
		return ErrIO
	case KindParse:
		return ErrParse
	case KindExternalTool:
		return ErrExternalTool
	case KindGenerator:
		return ErrGenerator
	default:
		return nil
	}
}

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "IOError"
	case KindParse:
		return "ParseError"
	case KindExternalTool:
		return "ExternalToolError"
	case KindGenerator:
		return "GeneratorError"
	default:
		return "UnknownError"
	}
}

// KindOf returns the Kind of the first ActionableError in err's chain.
func KindOf(err error) Kind {
	var ae *ActionableError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
