// susci.go
package susci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/cixo/susci/pkg/core"
	"github.com/cixo/susci/pkg/header"
	"github.com/cixo/susci/pkg/toolchain"
	"github.com/cixo/susci/pkg/tree"
)

// Re-export types for convenience
type (
	Config = core.Config
	Record = header.Record
	Field  = header.Field
	Runner = toolchain.Runner
	Stats  = tree.Stats
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return core.DefaultConfig()
}

var _ core.Installer = (*Manager)(nil)

// Manager installs the Susci headers into a compiler's include path
type Manager struct {
	fs       afero.Fs
	config   *core.Config
	logger   *log.Logger
	runner   toolchain.Runner
	resolver *toolchain.Resolver
}

// Option customises a Manager
type Option func(*Manager)

// WithFs makes the Manager operate on fs instead of the host filesystem
func WithFs(fs afero.Fs) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithRunner replaces the program runner used to query the compiler
func WithRunner(r toolchain.Runner) Option {
	return func(m *Manager) { m.runner = r }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager for the given configuration
func NewManager(config *core.Config, opts ...Option) (*Manager, error) {
	if config == nil {
		config = core.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{config: config}
	for _, opt := range opts {
		opt(m)
	}

	if m.fs == nil {
		m.fs = afero.NewOsFs()
	}
	if m.logger == nil {
		m.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "susci", Level: log.WarnLevel})
		if config.Debug {
			m.logger.SetLevel(log.DebugLevel)
		}
	}

	resolver, err := toolchain.NewResolver(config.Compiler, m.runner, config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("initializing toolchain: %w", err)
	}
	m.resolver = resolver

	return m, nil
}

// Config returns the configuration the Manager was built with
func (m *Manager) Config() *core.Config {
	return m.config
}

// IncludePath returns the configured include path, or asks the compiler for
// its system include directory.
func (m *Manager) IncludePath(ctx context.Context) (string, error) {
	if m.config.IncludePath != "" {
		m.logger.Debug("Using configured include path", "path", m.config.IncludePath)
		return m.config.IncludePath, nil
	}

	m.logger.Debug("Querying compiler", "compiler", m.resolver.Compiler(), "args", m.resolver.Args())
	path, err := m.resolver.IncludePath(ctx)
	if err != nil {
		return "", &Error{Op: "resolve include path", Err: err}
	}
	m.logger.Debug("Resolved include path", "path", path)
	return path, nil
}

// PackageDir returns where the package lives under includePath
func (m *Manager) PackageDir(includePath string) string {
	return filepath.Join(includePath, m.config.PackageName)
}

// IsInstalled reports whether the package directory exists under includePath
func (m *Manager) IsInstalled(includePath string) bool {
	ok, err := afero.Exists(m.fs, m.PackageDir(includePath))
	if err != nil {
		m.logger.Debug("Checking installation", "path", m.PackageDir(includePath), "err", err)
	}
	return ok
}

// Install copies source into the package directory under includePath.
// source is a directory or an .tar.xz bundle. On failure nothing is left
// behind in the include path.
func (m *Manager) Install(ctx context.Context, source, includePath string) error {
	if m.IsInstalled(includePath) {
		return &Error{Op: "install", Package: m.config.PackageName, Err: ErrAlreadyInstalled}
	}

	srcFs, srcDir, err := m.openSource(ctx, source)
	if err != nil {
		return &Error{Op: "install", Package: m.config.PackageName, Err: err}
	}

	target := m.PackageDir(includePath)
	if !tree.IsBundle(source) {
		// Copying a tree into itself never ends
		inside, err := tree.Contains(srcDir, target)
		if err != nil {
			return &Error{Op: "install", Package: m.config.PackageName, Err: err}
		}
		if inside {
			return &Error{Op: "install", Package: m.config.PackageName,
				Err: fmt.Errorf("%w: %s contains %s", ErrInvalidSource, source, target)}
		}
	}
	m.logger.Debug("Copying files", "from", source, "to", target)

	stats, err := tree.Copy(ctx, srcFs, srcDir, m.fs, target)
	if err != nil {
		m.rollback(target)
		return &Error{Op: "install", Package: m.config.PackageName, Err: err}
	}
	m.logger.Debug("Copy complete", "stats", stats.String())

	if m.config.Verify {
		if err := m.verify(srcFs, srcDir, target); err != nil {
			m.rollback(target)
			return &Error{Op: "install", Package: m.config.PackageName, Err: err}
		}
	}

	return nil
}

// Remove deletes the package directory under includePath
func (m *Manager) Remove(ctx context.Context, includePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.IsInstalled(includePath) {
		return &Error{Op: "remove", Package: m.config.PackageName, Err: ErrNotInstalled}
	}

	target := m.PackageDir(includePath)
	m.logger.Debug("Deleting files", "path", target)
	if err := m.fs.RemoveAll(target); err != nil {
		return &Error{Op: "remove", Package: m.config.PackageName, Err: err}
	}
	return nil
}

// Update removes any installed copy, then installs source
func (m *Manager) Update(ctx context.Context, source, includePath string) error {
	if err := m.Remove(ctx, includePath); err != nil && !errors.Is(err, ErrNotInstalled) {
		return err
	}
	return m.Install(ctx, source, includePath)
}

// InstalledVersion reads the version record of the installed copy
func (m *Manager) InstalledVersion(includePath string) (header.Record, error) {
	if !m.IsInstalled(includePath) {
		return header.Record{}, &Error{Op: "version", Package: m.config.PackageName, Err: ErrNotInstalled}
	}
	return m.readVersion(m.fs, m.PackageDir(includePath))
}

// SourceVersion reads the version record of a source directory or bundle
func (m *Manager) SourceVersion(ctx context.Context, source string) (header.Record, error) {
	srcFs, srcDir, err := m.openSource(ctx, source)
	if err != nil {
		return header.Record{}, &Error{Op: "version", Package: m.config.PackageName, Err: err}
	}
	return m.readVersion(srcFs, srcDir)
}

func (m *Manager) readVersion(fs afero.Fs, dir string) (header.Record, error) {
	rec, err := header.ReadFile(fs, filepath.Join(dir, m.config.HeaderFile))
	if err != nil {
		return header.Record{}, &Error{Op: "version", Package: m.config.PackageName, Err: err}
	}
	if !rec.Version.Found {
		m.logger.Warn("Token missing from header", "token", header.VersionToken, "dir", dir)
	}
	if !rec.Revision.Found {
		m.logger.Warn("Token missing from header", "token", header.RevisionToken, "dir", dir)
	}
	return rec, nil
}

// openSource returns the filesystem and directory holding the source tree.
// Bundles are extracted into memory first.
func (m *Manager) openSource(ctx context.Context, source string) (afero.Fs, string, error) {
	if !tree.IsBundle(source) {
		ok, err := afero.DirExists(m.fs, source)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return nil, "", fmt.Errorf("%w: %s is not a directory", ErrInvalidSource, source)
		}
		return m.fs, source, nil
	}

	f, err := m.fs.Open(source)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	defer f.Close()

	mem := afero.NewMemMapFs()
	stats, err := tree.ExtractBundle(ctx, f, mem, "/")
	if err != nil {
		return nil, "", fmt.Errorf("extracting %s: %w", source, err)
	}
	m.logger.Debug("Extracted bundle", "bundle", source, "stats", stats.String())

	root, err := tree.SingleRoot(mem, "/")
	if err != nil {
		return nil, "", fmt.Errorf("extracting %s: %w", source, err)
	}
	return mem, root, nil
}

func (m *Manager) verify(srcFs afero.Fs, srcDir, target string) error {
	want, err := tree.Digest(srcFs, srcDir)
	if err != nil {
		return fmt.Errorf("hashing source: %w", err)
	}
	got, err := tree.Digest(m.fs, target)
	if err != nil {
		return fmt.Errorf("hashing installed files: %w", err)
	}

	m.logger.Debug("Verified installation", "source", want, "installed", got)
	if want != got {
		return fmt.Errorf("%w: source %s, installed %s", ErrVerifyMismatch, want, got)
	}
	return nil
}

func (m *Manager) rollback(target string) {
	if err := m.fs.RemoveAll(target); err != nil {
		m.logger.Error("Cleaning up after failed install", "path", target, "err", err)
	}
}
