// pkg/header/parser.go
package header

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

var (
	versionPattern  = tokenPattern(VersionToken)
	revisionPattern = tokenPattern(RevisionToken)
)

// tokenPattern matches the first whole-word occurrence of token and captures
// the rest of its line.
func tokenPattern(token string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(token) + `\b[ \t]*([^\r\n]*)`)
}

// Parse extracts the version record from header source text
func Parse(data []byte) Record {
	return Record{
		Version:  find(versionPattern, data),
		Revision: find(revisionPattern, data),
	}
}

func find(re *regexp.Regexp, data []byte) Field {
	m := re.FindSubmatch(data)
	if m == nil {
		return Field{}
	}
	return Field{Value: strings.TrimSpace(string(m[1])), Found: true}
}

// ReadFile reads and parses the header at path
func ReadFile(fs afero.Fs, path string) (Record, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Record{}, fmt.Errorf("reading header: %w", err)
	}
	return Parse(data), nil
}
