package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"piiindex/internal/config"
	"piiindex/internal/metrics"
	"piiindex/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the admin/query HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cfg)
	},
}

func runServe(cfg *config.Config) error {
	comps, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	srv := server.New(cfg, comps.eval, comps.st, m, comps.log)

	comps.log.Infof("startup", "piiindex starting, backend=%s gramWidth=%d kAnonymityMin=%d",
		cfg.StoreBackend, cfg.GramWidth, cfg.KAnonymityMin)

	stopSweep := make(chan struct{})
	if cfg.SweepIntervalSeconds > 0 {
		go runSweepTicker(cfg, comps, m, stopSweep)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		close(stopSweep)
		if err != nil {
			comps.log.Errorf("listen", "%v", err)
			return err
		}
		return nil
	case sig := <-quit:
		comps.log.Infof("shutdown", "received %s, shutting down gracefully", sig)
		close(stopSweep)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			comps.log.Errorf("shutdown", "%v", err)
			return err
		}
		return nil
	}
}

func runSweepTicker(cfg *config.Config, comps *components, m *metrics.Metrics, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Duration(cfg.SweepIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := comps.st.ExpireSweep(context.Background(), time.Now())
			if err != nil {
				comps.log.Errorf("sweep", "%v", err)
				continue
			}
			m.SweepRuns.Add(1)
			m.EntriesExpired.Add(int64(n))
			comps.log.Infof("sweep", "expired %d entries", n)
		}
	}
}
