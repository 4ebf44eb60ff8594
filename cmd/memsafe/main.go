package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/memsafe/config"
	"github.com/wippyai/memsafe/demo"
	"github.com/wippyai/memsafe/lifetime"
	"github.com/wippyai/memsafe/linear"
	"github.com/wippyai/memsafe/memory"
	"github.com/wippyai/memsafe/resource"
	"github.com/wippyai/memsafe/server"
	"github.com/wippyai/memsafe/session"
)

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	cfgPath string
	color   string
	verbose bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "memsafe",
		Short: "Memory safety demonstrations",
		Long: `memsafe walks through lifetime-checked references, bounds-checked buffers
and use-after-free prevention. Every unsafe operation is attempted and must be
rejected with the expected fault.

Run without arguments to run every demonstration in order.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDemos(cmd, nil)
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.color, "color", "", "Color output: auto, always or never (default from config)")

	root.AddCommand(a.runCmd())
	root.AddCommand(a.listCmd())
	root.AddCommand(a.visualizeCmd())
	root.AddCommand(a.serveCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.color != "" {
		cfg.Output.Color = a.color
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	zc, err := cfg.Zap(a.verbose)
	if err != nil {
		return err
	}
	a.logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	installLogger(a.logger)
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func installLogger(l *zap.Logger) {
	resource.SetLogger(l.Named("resource"))
	lifetime.SetLogger(l.Named("lifetime"))
	memory.SetLogger(l.Named("memory"))
	linear.SetLogger(l.Named("linear"))
	session.SetLogger(l.Named("session"))
	server.SetLogger(l.Named("server"))
	demo.SetLogger(l.Named("demo"))
}

// colorFor resolves the configured color mode for w.
func (a *app) colorFor(w io.Writer) demo.Color {
	c, err := demo.ParseColor(a.cfg.Output.Color)
	if err != nil {
		return demo.ColorNever
	}
	if c != demo.ColorAuto {
		return c
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return demo.ColorAuto
	}
	return demo.ColorNever
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
