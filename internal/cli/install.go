// internal/cli/install.go
package cli

import (
	"context"
	"fmt"
)

func (s *session) install(ctx context.Context) {
	fmt.Fprintln(s.out, "The installation begins...")

	includePath, ok := s.resolve(ctx)
	if !ok {
		return
	}
	s.installInto(ctx, includePath)
}

func (s *session) installInto(ctx context.Context, includePath string) {
	if s.mgr.IsInstalled(includePath) {
		fmt.Fprintf(s.out, " * %s is already installed!\n", s.config.PackageName)
		return
	}

	fmt.Fprintln(s.out, " * Copying files (requires script to be run as root)...")
	err := s.mgr.Install(ctx, s.config.SourceDir, includePath)

	// Trust the result and the marker together, never the marker alone
	if err != nil || !s.mgr.IsInstalled(includePath) {
		s.fail(err)
		return
	}

	s.success()
	fmt.Fprintf(s.out, " * May need to change permissions (chmod 755 %s -R)\n", includePath)
}
