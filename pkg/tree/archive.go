// pkg/tree/archive.go
package tree

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"
)

// IsBundle reports whether path names an xz compressed tarball
func IsBundle(path string) bool {
	return strings.HasSuffix(path, ".tar.xz") || strings.HasSuffix(path, ".txz")
}

// ExtractBundle extracts an xz compressed tarball from r into dst on fs
func ExtractBundle(ctx context.Context, r io.Reader, fs afero.Fs, dst string) (Stats, error) {
	xzReader, err := xz.NewReader(r)
	if err != nil {
		return Stats{}, fmt.Errorf("creating xz reader: %w", err)
	}
	return extractTar(ctx, tar.NewReader(xzReader), fs, dst)
}

func extractTar(ctx context.Context, tarReader *tar.Reader, fs afero.Fs, dst string) (Stats, error) {
	var stats Stats

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("reading tar entry: %w", err)
		}

		// Clean the path (remove leading ./)
		cleanPath := path.Clean(strings.TrimPrefix(header.Name, "./"))
		if cleanPath == "." {
			continue
		}
		if cleanPath == ".." || strings.HasPrefix(cleanPath, "../") || path.IsAbs(cleanPath) {
			return stats, fmt.Errorf("%w: %s", ErrUnsafePath, header.Name)
		}

		targetPath := filepath.Join(dst, filepath.FromSlash(cleanPath))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(targetPath, 0o755); err != nil {
				return stats, fmt.Errorf("creating directory %s: %w", targetPath, err)
			}
			stats.Dirs++

		case tar.TypeSymlink:
			linker, ok := fs.(afero.Linker)
			if !ok {
				return stats, fmt.Errorf("creating symlink %s: %w", targetPath, afero.ErrNoSymlink)
			}
			if err := fs.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return stats, fmt.Errorf("creating parent directory for symlink: %w", err)
			}
			fs.Remove(targetPath)
			if err := linker.SymlinkIfPossible(header.Linkname, targetPath); err != nil {
				return stats, fmt.Errorf("creating symlink %s -> %s: %w", targetPath, header.Linkname, err)
			}
			stats.Symlinks++

		case tar.TypeReg:
			if err := fs.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return stats, fmt.Errorf("creating parent directory: %w", err)
			}

			outFile, err := fs.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode).Perm())
			if err != nil {
				return stats, fmt.Errorf("creating file %s: %w", targetPath, err)
			}

			written, err := io.Copy(outFile, tarReader)
			outFile.Close()
			if err != nil {
				return stats, fmt.Errorf("writing file %s: %w", targetPath, err)
			}
			if written != header.Size {
				return stats, fmt.Errorf("file size mismatch for %s: expected %d, got %d", targetPath, header.Size, written)
			}

			stats.Files++
			stats.Bytes += written

		default:
			return stats, fmt.Errorf("unsupported tar entry type %v for %s", header.Typeflag, cleanPath)
		}
	}

	return stats, nil
}

// SingleRoot returns the only top-level directory under dir, or dir itself
// when dir holds anything else. Bundles made with "tar -cJf x.tar.xz Source"
// then resolve to their Source directory.
func SingleRoot(fs afero.Fs, dir string) (string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}
