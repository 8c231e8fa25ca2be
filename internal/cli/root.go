package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/netmount/sidecar"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	dataDir   string
	binDir    string
	logLevel  string
	logFormat string
}

// NewRootCmd builds the sidecard command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "sidecard",
		Short: "Supervise helper processes for a host application",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := g.logger(cmd.ErrOrStderr())
			return err
		},
	}

	root.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "Data directory for logs and the instance lock (default ~/"+sidecar.DefaultDataDirName+")")
	root.PersistentFlags().StringVar(&g.binDir, "bin-dir", "", "Directory holding sidecar executables (default: next to this binary)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format: text or json")

	root.AddCommand(newRunCmd(g))
	root.AddCommand(newOnceCmd(g))
	root.AddCommand(newLogsCmd(g))
	root.AddCommand(newResolveCmd(g))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var exit *exitCodeError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// exitCodeError makes the process exit with a child's status without
// printing anything.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func (g *globals) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(g.logFormat) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("--log-format: unknown format %q", g.logFormat)
	}
	return slog.New(handler), nil
}

// supervisor creates a Supervisor from the global flags. Flag values win
// over the manifest's dataDir and binDir.
func (g *globals) supervisor(cmd *cobra.Command, dataDir, binDir string, extra ...sidecar.Option) (*sidecar.Supervisor, *slog.Logger, error) {
	log, err := g.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	sidecar.SetLogger(log)

	opts := []sidecar.Option{sidecar.WithLogger(log)}
	if d := firstNonEmpty(g.dataDir, dataDir); d != "" {
		opts = append(opts, sidecar.WithDataDir(d))
	}
	if d := firstNonEmpty(g.binDir, binDir); d != "" {
		opts = append(opts, sidecar.WithBinDir(d))
	}
	opts = append(opts, extra...)

	sup, err := sidecar.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	return sup, log, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
