// pkg/header/types.go
package header

const (
	// VersionToken precedes the release number in the kernel header
	VersionToken = "SUSCI_VERSION"

	// RevisionToken precedes the revision number in the kernel header
	RevisionToken = "SUSCI_REVISION"

	// DefaultFile is the header that carries both tokens
	DefaultFile = "Kernel.h"
)

// Field is a value read from the header. Found is false when the token was
// absent, which is different from a token followed by nothing.
type Field struct {
	Value string
	Found bool
}

func (f Field) String() string {
	return f.Value
}

// Record is the version information of one Susci tree
type Record struct {
	Version  Field
	Revision Field
}
