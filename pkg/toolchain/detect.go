// pkg/toolchain/detect.go
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/anmitsu/go-shlex"
)

var (
	// ErrCompilerNotFound indicates the compiler executable is not in PATH
	ErrCompilerNotFound = errors.New("compiler not found")

	// ErrIncludePathNotFound indicates the compiler output had no usable search list
	ErrIncludePathNotFound = errors.New("include path not found in compiler output")
)

// Runner executes an external program and returns what it printed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs on the host.
type ExecRunner struct{}

// Run starts name with args and returns stderr followed by a newline and
// stdout. The output is returned even when the program exits non-zero.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if !commandExists(name) {
		return nil, fmt.Errorf("%w: %s", ErrCompilerNotFound, name)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	out := make([]byte, 0, stderr.Len()+stdout.Len()+1)
	out = append(out, stderr.Bytes()...)
	out = append(out, '\n')
	out = append(out, stdout.Bytes()...)
	return out, err
}

// SplitCommand splits a configured compiler command such as
// "avr-gcc -mmcu=attiny85" into program and arguments.
func SplitCommand(command string) ([]string, error) {
	argv, err := shlex.Split(command, true)
	if err != nil {
		return nil, fmt.Errorf("parsing compiler command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("compiler command is empty")
	}
	return argv, nil
}
