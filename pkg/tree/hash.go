// pkg/tree/hash.go
package tree

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"zombiezen.com/go/nix"
	"zombiezen.com/go/nix/nar"
)

// Digest returns the Nix-style hash ("sha256:<base32>") of the NAR
// serialisation of the tree at root. Two trees have the same digest exactly
// when their names, contents, executable bits and symlink targets match.
func Digest(fs afero.Fs, root string) (string, error) {
	h := nix.NewHasher(nix.SHA256)
	if err := WriteNAR(h, fs, root); err != nil {
		return "", err
	}
	return h.SumHash().Base32(), nil
}

// WriteNAR serialises the tree at root to w in NAR format
func WriteNAR(w io.Writer, fs afero.Fs, root string) error {
	nw := nar.NewWriter(w)

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			rel = ""
		}

		hdr := &nar.Header{Path: filepath.ToSlash(rel)}
		switch {
		case info.IsDir():
			hdr.Mode = os.ModeDir | 0o755
			return nw.WriteHeader(hdr)

		case info.Mode()&os.ModeSymlink != 0:
			reader, ok := fs.(afero.LinkReader)
			if !ok {
				return fmt.Errorf("reading symlink %s: %w", path, afero.ErrNoReadlink)
			}
			target, err := reader.ReadlinkIfPossible(path)
			if err != nil {
				return fmt.Errorf("reading symlink %s: %w", path, err)
			}
			hdr.Mode = os.ModeSymlink | 0o777
			hdr.LinkTarget = target
			return nw.WriteHeader(hdr)

		case info.Mode().IsRegular():
			hdr.Mode = 0o644
			if info.Mode()&0o111 != 0 {
				hdr.Mode = 0o755
			}
			hdr.Size = info.Size()
			if err := nw.WriteHeader(hdr); err != nil {
				return err
			}
			return writeContents(nw, fs, path)

		default:
			return fmt.Errorf("unsupported file type %v for %s", info.Mode().Type(), path)
		}
	})
	if err != nil {
		return fmt.Errorf("serialising %s: %w", root, err)
	}

	return nw.Close()
}

func writeContents(w io.Writer, fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}
