package susci

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/cixo/susci/pkg/tree"
)

const includePath = "/usr/lib/avr/include"

type stubRunner struct {
	out   string
	calls int
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	s.calls++
	return []byte(s.out), nil
}

// failOpenFs refuses to open one file
type failOpenFs struct {
	afero.Fs
	path string
}

func (f failOpenFs) Open(name string) (afero.File, error) {
	if name == f.path {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Open(name)
}

// rewriteFs changes one file after it has been read once
type rewriteFs struct {
	afero.Fs
	path  string
	body  string
	opens int
}

func (f *rewriteFs) Open(name string) (afero.File, error) {
	if name == f.path {
		f.opens++
		if f.opens == 2 {
			if err := afero.WriteFile(f.Fs, name, []byte(f.body), 0o644); err != nil {
				return nil, err
			}
		}
	}
	return f.Fs.Open(name)
}

func newTestManager(t *testing.T, mutate func(*Config)) (*Manager, afero.Fs) {
	t.Helper()

	fs := newSourceFs(t)
	cfg := DefaultConfig()
	cfg.SourceDir = "/src"
	cfg.IncludePath = includePath
	if mutate != nil {
		mutate(cfg)
	}

	m, err := NewManager(cfg, WithFs(fs), WithLogger(log.New(io.Discard)))
	require.NoError(t, err)
	return m, fs
}

func newSourceFs(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/src/Kernel.h":           "#define SUSCI_VERSION 22.10\n#define SUSCI_REVISION 4\n",
		"/src/Kernel/Scheduler.h": "void scheduler_run(void);\n",
		"/src/Drivers/Adc.h":      "int adc_read(int);\n",
	}
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
	require.NoError(t, fs.MkdirAll(includePath, 0o755))
	return fs
}

func TestIsInstalled(t *testing.T) {
	m, fs := newTestManager(t, nil)
	assert.False(t, m.IsInstalled(includePath))

	// Contents do not matter, only the directory
	require.NoError(t, fs.MkdirAll(includePath+"/Susci", 0o755))
	assert.True(t, m.IsInstalled(includePath))
	assert.False(t, m.IsInstalled("/somewhere/else"))
}

func TestInstallThenRemove(t *testing.T) {
	ctx := context.Background()
	m, fs := newTestManager(t, nil)

	require.NoError(t, m.Install(ctx, "/src", includePath))
	assert.True(t, m.IsInstalled(includePath))

	want, err := tree.Digest(fs, "/src")
	require.NoError(t, err)
	got, err := tree.Digest(fs, includePath+"/Susci")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, m.Remove(ctx, includePath))
	assert.False(t, m.IsInstalled(includePath))

	ok, err := afero.DirExists(fs, includePath)
	require.NoError(t, err)
	assert.True(t, ok, "include path itself must survive removal")
}

func TestInstallTwice(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)

	require.NoError(t, m.Install(ctx, "/src", includePath))
	err := m.Install(ctx, "/src", includePath)
	assert.ErrorIs(t, err, ErrAlreadyInstalled)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "install", serr.Op)
	assert.Equal(t, "Susci", serr.Package)
}

func TestInstallMissingSource(t *testing.T) {
	m, _ := newTestManager(t, nil)

	err := m.Install(context.Background(), "/does/not/exist", includePath)
	assert.ErrorIs(t, err, ErrInvalidSource)
	assert.False(t, m.IsInstalled(includePath))
}

func TestInstallIntoSource(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, fs := newTestManager(t, nil)

	for _, source := range []string{"/usr/lib/avr", includePath, "/"} {
		err := m.Install(ctx, source, includePath)
		assert.ErrorIs(t, err, ErrInvalidSource, source)
		assert.False(t, m.IsInstalled(includePath), source)
	}

	// A source that merely shares a prefix is fine
	require.NoError(t, afero.WriteFile(fs, "/usr/lib/avr/include2/Kernel.h", []byte("#define SUSCI_VERSION 1\n"), 0o644))
	require.NoError(t, m.Install(ctx, "/usr/lib/avr/include2", includePath))
	assert.True(t, m.IsInstalled(includePath))
}

func TestInstallCopyFailureRollsBack(t *testing.T) {
	fs := failOpenFs{Fs: newSourceFs(t), path: "/src/Drivers/Adc.h"}
	cfg := DefaultConfig()
	cfg.SourceDir = "/src"
	m, err := NewManager(cfg, WithFs(fs), WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	err = m.Install(context.Background(), "/src", includePath)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.False(t, m.IsInstalled(includePath))

	ok, err := afero.DirExists(fs, includePath)
	require.NoError(t, err)
	assert.True(t, ok, "include path itself must survive rollback")
}

func TestInstallVerifyMismatchRollsBack(t *testing.T) {
	// Same length, so only the digest can tell
	fs := &rewriteFs{Fs: newSourceFs(t), path: "/src/Drivers/Adc.h", body: "int adc_peek(int);\n"}
	cfg := DefaultConfig()
	cfg.SourceDir = "/src"
	m, err := NewManager(cfg, WithFs(fs), WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	err = m.Install(context.Background(), "/src", includePath)
	assert.ErrorIs(t, err, ErrVerifyMismatch)
	assert.False(t, m.IsInstalled(includePath))
	assert.Equal(t, 2, fs.opens)
}

func TestInstallNoVerify(t *testing.T) {
	fs := &rewriteFs{Fs: newSourceFs(t), path: "/src/Drivers/Adc.h", body: "int adc_peek(int);\n"}
	cfg := DefaultConfig()
	cfg.Verify = false
	m, err := NewManager(cfg, WithFs(fs), WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	require.NoError(t, m.Install(context.Background(), "/src", includePath))
	assert.True(t, m.IsInstalled(includePath))
	assert.Equal(t, 1, fs.opens)
}

func TestRemoveNotInstalled(t *testing.T) {
	m, _ := newTestManager(t, nil)

	err := m.Remove(context.Background(), includePath)
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	m, fs := newTestManager(t, nil)

	// Update with nothing installed behaves like install
	require.NoError(t, m.Update(ctx, "/src", includePath))
	assert.True(t, m.IsInstalled(includePath))

	// Stale files from the previous install disappear
	require.NoError(t, afero.WriteFile(fs, includePath+"/Susci/Stale.h", []byte("old"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/Kernel.h", []byte("#define SUSCI_VERSION 23.01\n#define SUSCI_REVISION 1\n"), 0o644))
	require.NoError(t, m.Update(ctx, "/src", includePath))

	ok, err := afero.Exists(fs, includePath+"/Susci/Stale.h")
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := m.InstalledVersion(includePath)
	require.NoError(t, err)
	assert.Equal(t, "23.01", rec.Version.Value)
	assert.Equal(t, "1", rec.Revision.Value)

	want, err := tree.Digest(fs, "/src")
	require.NoError(t, err)
	got, err := tree.Digest(fs, includePath+"/Susci")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVersions(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)

	_, err := m.InstalledVersion(includePath)
	assert.ErrorIs(t, err, ErrNotInstalled)

	src, err := m.SourceVersion(ctx, "/src")
	require.NoError(t, err)
	assert.Equal(t, Record{
		Version:  Field{Value: "22.10", Found: true},
		Revision: Field{Value: "4", Found: true},
	}, src)

	require.NoError(t, m.Install(ctx, "/src", includePath))
	installed, err := m.InstalledVersion(includePath)
	require.NoError(t, err)
	assert.Equal(t, src, installed)
}

func TestSourceVersionMissingToken(t *testing.T) {
	m, fs := newTestManager(t, nil)
	require.NoError(t, afero.WriteFile(fs, "/src/Kernel.h", []byte("#define SUSCI_VERSION 1.2\n"), 0o644))

	rec, err := m.SourceVersion(context.Background(), "/src")
	require.NoError(t, err)
	assert.Equal(t, "1.2", rec.Version.Value)
	assert.False(t, rec.Revision.Found)
	assert.Equal(t, "", rec.Revision.Value)
}

func TestSourceVersionNoHeader(t *testing.T) {
	m, fs := newTestManager(t, nil)
	require.NoError(t, fs.Remove("/src/Kernel.h"))

	_, err := m.SourceVersion(context.Background(), "/src")
	assert.Error(t, err)
}

func TestInstallFromBundle(t *testing.T) {
	ctx := context.Background()
	m, fs := newTestManager(t, nil)

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(xw)
	for name, body := range map[string]string{
		"Source/Kernel.h":      "#define SUSCI_VERSION 24.02\n#define SUSCI_REVISION 9\n",
		"Source/Kernel/Time.h": "int now(void);\n",
	} {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, xw.Close())
	require.NoError(t, afero.WriteFile(fs, "/dl/susci-24.02.tar.xz", buf.Bytes(), 0o644))

	rec, err := m.SourceVersion(ctx, "/dl/susci-24.02.tar.xz")
	require.NoError(t, err)
	assert.Equal(t, "24.02", rec.Version.Value)

	require.NoError(t, m.Install(ctx, "/dl/susci-24.02.tar.xz", includePath))
	body, err := afero.ReadFile(fs, includePath+"/Susci/Kernel/Time.h")
	require.NoError(t, err)
	assert.Equal(t, "int now(void);\n", string(body))
}

func TestIncludePathFromCompiler(t *testing.T) {
	runner := &stubRunner{out: "#include <...> search starts here:\n /usr/lib/gcc/avr/5.4.0/include\n /usr/lib/avr/include\nEnd of search list.\n"}

	cfg := DefaultConfig()
	m, err := NewManager(cfg, WithFs(afero.NewMemMapFs()), WithRunner(runner), WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	path, err := m.IncludePath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/usr/lib/avr/include", path)
	assert.Equal(t, 1, runner.calls)
}

func TestIncludePathConfigured(t *testing.T) {
	runner := &stubRunner{}
	cfg := DefaultConfig()
	cfg.IncludePath = includePath
	m, err := NewManager(cfg, WithFs(afero.NewMemMapFs()), WithRunner(runner), WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	path, err := m.IncludePath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, includePath, path)
	assert.Equal(t, 0, runner.calls)
}

func TestIncludePathGarbage(t *testing.T) {
	m, err := NewManager(DefaultConfig(), WithFs(afero.NewMemMapFs()), WithRunner(&stubRunner{out: "nope"}), WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	_, err = m.IncludePath(context.Background())
	assert.ErrorIs(t, err, ErrIncludePathNotFound)
}

func TestNewManagerInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PackageName = ""
	_, err := NewManager(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Compiler = `avr-gcc "unterminated`
	_, err = NewManager(cfg)
	assert.Error(t, err)

	// Removal would reach the include path or its parent
	for _, name := range []string{".", "..", "Susci/.."} {
		cfg = DefaultConfig()
		cfg.PackageName = name
		_, err = NewManager(cfg)
		assert.Error(t, err, name)
	}
}

func TestCustomPackageName(t *testing.T) {
	m, fs := newTestManager(t, func(c *Config) { c.PackageName = "SusciNext" })

	require.NoError(t, m.Install(context.Background(), "/src", includePath))
	ok, err := afero.DirExists(fs, includePath+"/SusciNext")
	require.NoError(t, err)
	assert.True(t, ok)
}
