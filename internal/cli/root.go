// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cixo/susci"
	"github.com/cixo/susci/pkg/core"
)

type action int

const (
	actionNone action = iota
	actionInstall
	actionRemove
	actionUpdate
	actionVersion
)

type options struct {
	cfgFile     string
	source      string
	compiler    string
	includePath string
	debug       bool
	noVerify    bool

	help    bool
	install bool
	remove  bool
	update  bool
	version bool
}

// action picks the first requested action. Help is handled by cobra before
// this runs, so it always wins.
func (o *options) action() action {
	switch {
	case o.install:
		return actionInstall
	case o.remove:
		return actionRemove
	case o.update:
		return actionUpdate
	case o.version:
		return actionVersion
	default:
		return actionNone
	}
}

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
)

// Execute executes the root command
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd(mgrOpts ...susci.Option) *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "susci",
		Short: "Susci installation manager",
		Long: `susci - Susci installation manager

Installs the Susci headers into the compiler's system include path so they
can be included with <> like the standard library.`,
		Args:               cobra.ArbitraryArgs,
		SilenceUsage:       true,
		SilenceErrors:      true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, mgrOpts)
		},
	}
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		printUsage(c.OutOrStdout())
	})

	flags := cmd.Flags()
	flags.BoolVarP(&o.help, "help", "h", false, "show this help screen")
	flags.BoolVarP(&o.install, "install", "i", false, "install into the compiler include path")
	flags.BoolVarP(&o.remove, "remove", "r", false, "remove from the compiler include path")
	flags.BoolVarP(&o.update, "update", "u", false, "remove, then install")
	flags.BoolVarP(&o.version, "version", "v", false, "show installed and installer versions")

	flags.StringVar(&o.cfgFile, "config", "", "config file (default is $HOME/.config/susci/config.yaml)")
	flags.StringVar(&o.source, "source", "", "source directory or .tar.xz bundle")
	flags.StringVar(&o.compiler, "compiler", "", "compiler queried for its include path")
	flags.StringVar(&o.includePath, "include-path", "", "install into this directory instead of asking the compiler")
	flags.BoolVar(&o.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&o.noVerify, "no-verify", false, "skip comparing installed files against the source")

	return cmd
}

func run(cmd *cobra.Command, o *options, mgrOpts []susci.Option) error {
	act := o.action()
	if act == actionNone {
		fmt.Fprintln(cmd.OutOrStdout(), hint)
		return nil
	}

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "susci", Level: log.WarnLevel})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	opts := append([]susci.Option{susci.WithLogger(logger)}, mgrOpts...)
	mgr, err := susci.NewManager(cfg, opts...)
	if err != nil {
		return fmt.Errorf("initializing manager: %w", err)
	}

	s := &session{
		out:    cmd.OutOrStdout(),
		mgr:    mgr,
		config: cfg,
		logger: logger,
	}

	ctx := cmd.Context()
	switch act {
	case actionInstall:
		s.install(ctx)
	case actionRemove:
		s.remove(ctx)
	case actionUpdate:
		s.update(ctx)
	case actionVersion:
		s.version(ctx)
	}
	return nil
}

// loadConfig reads the config file and applies command line overrides
func loadConfig(o *options) (*core.Config, error) {
	cfg, err := core.LoadConfig(o.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if o.source != "" {
		cfg.SourceDir = o.source
	}
	if o.compiler != "" {
		cfg.Compiler = o.compiler
	}
	if o.includePath != "" {
		cfg.IncludePath = o.includePath
	}
	if o.debug {
		cfg.Debug = true
	}
	if o.noVerify {
		cfg.Verify = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session carries what one invocation needs. The include path is resolved
// once per action and passed along.
type session struct {
	out    io.Writer
	mgr    core.Installer
	config *core.Config
	logger *log.Logger
}

func (s *session) resolve(ctx context.Context) (string, bool) {
	includePath, err := s.mgr.IncludePath(ctx)
	if err != nil {
		s.fail(err)
		return "", false
	}
	return includePath, true
}

func (s *session) success() {
	okColor.Fprintln(s.out, " * Everything went well!")
}

func (s *session) fail(err error) {
	failColor.Fprintln(s.out, " * Something's wrong, I can feel it!")
	if err != nil {
		fmt.Fprintf(s.out, "   %v\n", err)
	}
}
