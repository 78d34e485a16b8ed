// internal/cli/version.go
package cli

import (
	"context"
	"fmt"

	"github.com/cixo/susci/pkg/header"
)

func (s *session) version(ctx context.Context) {
	fmt.Fprintf(s.out, "Version of %s:\n", s.config.PackageName)

	includePath, err := s.mgr.IncludePath(ctx)
	if err != nil {
		s.logger.Warn("Cannot locate the include path", "err", err)
	}

	if err == nil && s.mgr.IsInstalled(includePath) {
		rec, err := s.mgr.InstalledVersion(includePath)
		if err != nil {
			s.logger.Warn("Cannot read installed version", "err", err)
		}
		fmt.Fprintf(s.out, " * Installed: %s\n", formatRecord(rec))
	} else {
		fmt.Fprintf(s.out, " * %s is not installed!\n", s.config.PackageName)
	}

	rec, err := s.mgr.SourceVersion(ctx, s.config.SourceDir)
	if err != nil {
		s.logger.Warn("Cannot read installer version", "err", err)
	}
	fmt.Fprintf(s.out, " * In installer: %s\n", formatRecord(rec))
}

func formatRecord(rec header.Record) string {
	return fmt.Sprintf("%s rev: %s", rec.Version, rec.Revision)
}
