package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/netmount/sidecar"
	"github.com/netmount/sidecar/internal/manifest"
)

const metricsShutdownTimeout = 5 * time.Second

func newRunCmd(g *globals) *cobra.Command {
	var (
		file          string
		metricsListen string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start every sidecar in a manifest and supervise them until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := manifest.Load(file)
			if err != nil {
				return err
			}
			if metricsListen != "" {
				m.Metrics.Listen = metricsListen
			}
			return runManifest(cmd, g, m)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "sidecars.yaml", "Path to the sidecar manifest")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Serve /metrics on this address (overrides the manifest)")
	return cmd
}

func runManifest(cmd *cobra.Command, g *globals, m *manifest.Manifest) (err error) {
	sup, log, err := g.supervisor(cmd, m.DataDir, m.BinDir, sidecar.WithInstanceLock())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sup.Shutdown())
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	grp, ctx := errgroup.WithContext(ctx)

	if m.Metrics.Listen != "" {
		if err := serveMetrics(ctx, grp, sup, m.Metrics.Listen, log); err != nil {
			return err
		}
	}

	for _, sc := range m.Sidecars {
		h, err := startSidecar(ctx, sup, sc)
		if err != nil {
			cancel()
			return errors.Join(err, grp.Wait())
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s started (pid %d)\n", h.Name, h.PID)
	}

	log.Info("all sidecars started", "count", len(m.Sidecars), "data_dir", sup.DataDir())
	<-ctx.Done()
	log.Info("shutting down")
	cancel()
	return grp.Wait()
}

func startSidecar(ctx context.Context, sup *sidecar.Supervisor, sc manifest.Sidecar) (sidecar.Handle, error) {
	var ports []int
	if sc.Ports > 0 {
		var err error
		if ports, err = sup.AllocatePorts(sc.Ports); err != nil {
			return sidecar.Handle{}, fmt.Errorf("%s: %w", sc.Name, err)
		}
	}
	h, err := sup.StartAndWait(ctx, startOptions(sc, ports))
	if err != nil {
		sup.ReleasePorts(ports...)
		return sidecar.Handle{}, err
	}
	return h, nil
}

// startOptions translates a manifest entry, with its ports already
// allocated, into StartAndWait options.
func startOptions(sc manifest.Sidecar, ports []int) sidecar.StartOptions {
	opts := sidecar.StartOptions{
		Name: sc.Name,
		Path: sc.Path,
		Dir:  sc.Dir,
		Args: sc.ExpandedArgs(ports),
		Env:  sc.EnvList(ports),
	}
	r := sc.Ready
	if r == nil {
		return opts
	}
	opts.Timeout = r.Timeout.Duration
	opts.Interval = r.Interval.Duration
	opts.InitialDelay = r.InitialDelay.Duration
	switch {
	case r.TCP != "":
		opts.Target = manifest.Expand(r.TCP, ports)
		opts.Ready = sidecar.TCPReady(opts.Target)
	case r.HTTP != "":
		opts.Target = manifest.Expand(r.HTTP, ports)
		opts.Ready = sidecar.HTTPReady(opts.Target)
	}
	return opts
}

func serveMetrics(ctx context.Context, grp *errgroup.Group, sup *sidecar.Supervisor, addr string, log *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(sup.Metrics(), promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log.Info("serving metrics", "addr", ln.Addr().String())
	grp.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return nil
}
