// internal/cli/update.go
package cli

import (
	"context"
	"fmt"
)

// update removes the installed copy and installs the source again. A missing
// installation is reported by the remove step and does not stop the install.
func (s *session) update(ctx context.Context) {
	fmt.Fprintln(s.out, "The update has started...")

	includePath, ok := s.resolve(ctx)
	if !ok {
		return
	}
	s.removeFrom(ctx, includePath)
	s.installInto(ctx, includePath)
}
