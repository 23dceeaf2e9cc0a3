package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sipwatch/sipwatch/pkg/api"
	"github.com/sipwatch/sipwatch/pkg/metrics"
)

type watchOptions struct {
	interval time.Duration
	listen   string
	maxRuns  int
}

func NewWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check accounts repeatedly and serve the status API",
		Long: `Run a check immediately and then once per interval until interrupted.
The last report, health and Prometheus metrics are served over HTTP. A run
that fails is logged and the next one runs on schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Time between runs (default from watch.interval)")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "Status API listen address, \"off\" disables it (default from watch.listenAddress)")
	cmd.Flags().IntVar(&opts.maxRuns, "max-runs", 0, "Stop after this many runs (0 = unlimited)")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *watchOptions) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	cfg, err := rt.ValidConfig()
	if err != nil {
		return err
	}
	log := rt.Logger()

	interval := opts.interval
	if interval <= 0 {
		if interval, err = cfg.WatchInterval(); err != nil {
			return err
		}
	}
	if interval <= 0 {
		return errors.New("watch interval must be positive")
	}
	listen := opts.listen
	if listen == "" {
		listen = cfg.Watch.ListenAddress
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("Failed to close service", zap.Error(err))
		}
	}()

	server := api.NewServer(log, rt.debug)
	var serveErr chan error
	if listen != "off" {
		serveErr = make(chan error, 1)
		go func() {
			serveErr <- server.ListenAndServe(ctx, listen)
		}()
	} else {
		server.Close()
	}

	log.Info("Watching registrations",
		zap.Duration("interval", interval),
		zap.Int("accounts", len(cfg.Accounts)),
		zap.String("listen", listen))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runs := 0
loop:
	for {
		report, err := svc.runOnce(ctx)
		runs++
		if report.RunID != "" {
			server.SetReport(report)
		}
		if err != nil && ctx.Err() == nil {
			log.Error("Run failed", zap.String("runId", report.RunID), zap.Error(err))
		}
		if path := cfg.Metrics.TextfilePath; path != "" {
			if err := metrics.WriteTextfile(path); err != nil {
				log.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(err))
			}
		}
		if opts.maxRuns > 0 && runs >= opts.maxRuns {
			break
		}

		select {
		case <-ctx.Done():
			break loop
		case err := <-serveErr:
			if err == nil {
				err = errors.New("status API stopped unexpectedly")
			}
			return err
		case <-ticker.C:
		}
	}

	log.Info("Stopping watch", zap.Int("runs", runs))
	cancel()
	if serveErr != nil {
		return <-serveErr
	}
	return nil
}
