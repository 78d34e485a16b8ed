// pkg/tree/doc.go
package tree

/*
Package tree copies, extracts and fingerprints directory trees on an
afero.Fs, so the same code runs against the host disk and in-memory
filesystems.

Basic Usage:

    src := afero.NewOsFs()

    // Copy ./Source into the include path
    stats, err := tree.Copy(ctx, src, "./Source", src, "/usr/lib/avr/include/Susci")

    // Compare the copy with its source
    want, _ := tree.Digest(src, "./Source")
    got, _ := tree.Digest(src, "/usr/lib/avr/include/Susci")

    // Unpack a release bundle into memory
    mem := afero.NewMemMapFs()
    stats, err = tree.ExtractBundle(ctx, f, mem, "/")

Digests are SHA-256 hashes of the NAR serialisation of the tree, printed in
Nix base32 ("sha256:..."). They only depend on names, file contents,
executable bits and symlink targets.
*/
