// internal/cli/remove.go
package cli

import (
	"context"
	"fmt"
)

func (s *session) remove(ctx context.Context) {
	fmt.Fprintln(s.out, "The uninstallation begins...")

	includePath, ok := s.resolve(ctx)
	if !ok {
		return
	}
	s.removeFrom(ctx, includePath)
}

func (s *session) removeFrom(ctx context.Context, includePath string) {
	if !s.mgr.IsInstalled(includePath) {
		fmt.Fprintf(s.out, " * %s is not installed, it cannot be uninstalled!\n", s.config.PackageName)
		return
	}

	fmt.Fprintln(s.out, " * Deleting unnecessary files (requires script to be run as root)...")
	err := s.mgr.Remove(ctx, includePath)
	if err != nil || s.mgr.IsInstalled(includePath) {
		s.fail(err)
		return
	}

	s.success()
}
