// pkg/tree/copy.go
package tree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrUnsafePath indicates an entry would be written outside its destination
var ErrUnsafePath = errors.New("path escapes destination")

// Stats counts what a copy or extraction wrote
type Stats struct {
	Files    int
	Dirs     int
	Symlinks int
	Bytes    int64
}

func (s Stats) String() string {
	return fmt.Sprintf("%d files, %d directories, %d symlinks (%d bytes)", s.Files, s.Dirs, s.Symlinks, s.Bytes)
}

// Copy recursively copies the tree at src on srcFs to dst on dstFs. dst is
// created when missing and receives the contents of src, not src itself.
// File permissions are preserved.
func Copy(ctx context.Context, srcFs afero.Fs, src string, dstFs afero.Fs, dst string) (Stats, error) {
	var stats Stats

	info, err := lstat(srcFs, src)
	if err != nil {
		return stats, err
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("%s is not a directory", src)
	}

	err = afero.Walk(srcFs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			if err := dstFs.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
			stats.Dirs++

		case info.Mode()&os.ModeSymlink != 0:
			if err := copySymlink(srcFs, path, dstFs, target); err != nil {
				return err
			}
			stats.Symlinks++

		case info.Mode().IsRegular():
			n, err := copyFile(srcFs, path, dstFs, target, info.Mode().Perm())
			if err != nil {
				return err
			}
			stats.Files++
			stats.Bytes += n

		default:
			return fmt.Errorf("unsupported file type %v for %s", info.Mode().Type(), path)
		}
		return nil
	})
	return stats, err
}

func copyFile(srcFs afero.Fs, src string, dstFs afero.Fs, dst string, perm os.FileMode) (int64, error) {
	in, err := srcFs.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := dstFs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("creating parent directory: %w", err)
	}

	out, err := dstFs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, fmt.Errorf("creating file %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("writing file %s: %w", dst, err)
	}
	return n, nil
}

func copySymlink(srcFs afero.Fs, src string, dstFs afero.Fs, dst string) error {
	reader, ok := srcFs.(afero.LinkReader)
	if !ok {
		return fmt.Errorf("reading symlink %s: %w", src, afero.ErrNoReadlink)
	}
	linker, ok := dstFs.(afero.Linker)
	if !ok {
		return fmt.Errorf("creating symlink %s: %w", dst, afero.ErrNoSymlink)
	}

	target, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return fmt.Errorf("reading symlink %s: %w", src, err)
	}
	if err := linker.SymlinkIfPossible(target, dst); err != nil {
		return fmt.Errorf("creating symlink %s -> %s: %w", dst, target, err)
	}
	return nil
}

// lstat stats path without following a final symlink when the filesystem
// allows it.
func lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fs.Stat(path)
}

// Contains reports whether path is dir itself or lies below it. Both are
// made absolute first. Symlinks are not resolved.
func Contains(dir, path string) (bool, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false, nil
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}
