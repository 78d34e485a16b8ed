// errors.go
package susci

import (
	"errors"
	"fmt"

	"github.com/cixo/susci/pkg/toolchain"
	"github.com/cixo/susci/pkg/tree"
)

var (
	// ErrNotInstalled indicates the package directory is missing from the include path
	ErrNotInstalled = errors.New("package not installed")

	// ErrAlreadyInstalled indicates the package directory already exists in the include path
	ErrAlreadyInstalled = errors.New("package already installed")

	// ErrVerifyMismatch indicates the installed tree differs from the source tree
	ErrVerifyMismatch = errors.New("installed files differ from source")

	// ErrInvalidSource indicates the source is neither a directory nor a bundle
	ErrInvalidSource = errors.New("invalid source")

	// Re-exported so callers only need this package for errors.Is checks
	ErrCompilerNotFound    = toolchain.ErrCompilerNotFound
	ErrIncludePathNotFound = toolchain.ErrIncludePathNotFound
	ErrUnsafePath          = tree.ErrUnsafePath
)

// Error wraps an error with additional context
type Error struct {
	Op      string // Operation that failed
	Package string // Package name if applicable
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Package, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
