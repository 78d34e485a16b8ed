// pkg/toolchain/resolver.go
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	searchStart = "#include <...> search starts here:"
	searchEnd   = "End of search list."

	// Appended by Apple toolchains to some entries
	frameworkSuffix = " (framework directory)"
)

var searchList = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(searchStart) + `\r?\n(.*?)\r?\n` + regexp.QuoteMeta(searchEnd))

// Resolver asks a compiler where it looks for <...> includes.
type Resolver struct {
	argv    []string
	runner  Runner
	timeout time.Duration
}

// NewResolver creates a Resolver for the given compiler command. A nil runner
// runs the compiler on the host.
func NewResolver(command string, runner Runner, timeout time.Duration) (*Resolver, error) {
	argv, err := SplitCommand(command)
	if err != nil {
		return nil, err
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Resolver{argv: argv, runner: runner, timeout: timeout}, nil
}

// Compiler returns the program name that will be queried.
func (r *Resolver) Compiler() string {
	return r.argv[0]
}

// Args returns the full argument list passed to the compiler.
func (r *Resolver) Args() []string {
	args := append([]string{}, r.argv[1:]...)
	return append(args, "-E", "-Wp,-v", "-xc", os.DevNull)
}

// IncludePath runs the compiler's verbose preprocessor on an empty input and
// returns the last directory of its system include search list.
func (r *Resolver) IncludePath(ctx context.Context) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := r.runner.Run(ctx, r.Compiler(), r.Args()...)
	if err != nil {
		if errors.Is(err, ErrCompilerNotFound) {
			return "", err
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrCompilerNotFound, r.Compiler())
		}
		// A non-zero exit still prints the search list, so only give up
		// when the process never produced one.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("running %s: %w", r.Compiler(), err)
		}
	}

	path, ok := ParseIncludePath(string(out))
	if !ok {
		if err != nil {
			return "", fmt.Errorf("%w (%s: %v)", ErrIncludePathNotFound, r.Compiler(), err)
		}
		return "", fmt.Errorf("%w (%s)", ErrIncludePathNotFound, r.Compiler())
	}
	return path, nil
}

// ParseIncludePath extracts the last entry of the "#include <...>" search list
// from gcc-style verbose preprocessor output. The entry is cut to start at its
// first '/'. It reports false when the markers are missing, the list is empty
// or the last entry holds no absolute path.
func ParseIncludePath(output string) (string, bool) {
	m := searchList.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}

	last := lastNonEmpty(strings.Split(m[1], "\n"))
	idx := strings.Index(last, "/")
	if idx < 0 {
		return "", false
	}

	path := strings.TrimSuffix(last[idx:], frameworkSuffix)
	return strings.TrimSpace(path), true
}
