// pkg/core/interface.go
package core

import (
	"context"

	"github.com/cixo/susci/pkg/header"
)

// Installer defines what the command line needs from an installation manager.
// The include path is resolved once per invocation and passed back in.
type Installer interface {
	// IncludePath returns the compiler's system include directory
	IncludePath(ctx context.Context) (string, error)

	// IsInstalled reports whether the package directory exists under includePath
	IsInstalled(includePath string) bool

	// Install copies source into includePath
	Install(ctx context.Context, source, includePath string) error

	// Remove deletes the package directory under includePath
	Remove(ctx context.Context, includePath string) error

	// Update removes any installed copy, then installs source
	Update(ctx context.Context, source, includePath string) error

	// InstalledVersion reads the version record of the installed copy
	InstalledVersion(includePath string) (header.Record, error)

	// SourceVersion reads the version record of a source directory or bundle
	SourceVersion(ctx context.Context, source string) (header.Record, error)
}
