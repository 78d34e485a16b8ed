// internal/cli/help.go
package cli

import (
	"fmt"
	"io"
)

const hint = "You need to give some action to perform, if you don't know how, use -h or --help"

const usage = `Welcome to the Susci version manager help. This tool allows you to:
 * -h, --help             Shows this help screen
 * -i, --install          Installs system for the compiler (requires root)
 * -r, --remove           Uninstalls system for the compiler (requires root)
 * -u, --update           Updates system for the compiler (requires root)
 * -v, --version          Shows the installed and installer versions of Susci

Options:
 * --config FILE          Config file (default $HOME/.config/susci/config.yaml)
 * --source PATH          Source directory or .tar.xz bundle (default ./Source)
 * --compiler CMD         Compiler asked for its include path (default avr-gcc)
 * --include-path DIR     Install into DIR instead of asking the compiler
 * --no-verify            Skip comparing installed files against the source
 * --debug                Enable debug logging
`

func printUsage(w io.Writer) {
	fmt.Fprint(w, usage)
}
