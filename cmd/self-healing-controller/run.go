package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/self-healing-controller/pkg/cluster"
	"github.com/cuemby/self-healing-controller/pkg/log"
	"github.com/cuemby/self-healing-controller/pkg/metrics"
	"github.com/spf13/cobra"
)

func runController(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	once, _ := cmd.Flags().GetBool("once")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientset, err := cluster.NewClientset(cfg.Kubeconfig)
	if err != nil {
		return err
	}

	c, err := newController(ctx, cfg, clientset)
	if err != nil {
		return err
	}
	defer c.close()

	metrics.SetVersion(Version)
	c.startBackground()
	c.checkCluster(ctx)

	logger := log.WithComponent("main")
	logger.Info().
		Str("version", Version).
		Int32("restart_threshold", cfg.PodFailureThreshold).
		Dur("check_interval", cfg.CheckInterval).
		Dur("node_check_interval", cfg.NodeCheckInterval).
		Bool("rollback_enabled", cfg.RollbackEnabled).
		Bool("reboot_enabled", cfg.RebootEnabled).
		Bool("notifications_active", cfg.NotificationsActive()).
		Msg("Starting self-healing controller")

	if once {
		return c.reconciler.RunOnce(ctx)
	}

	// Start reporting server in background
	errCh := make(chan error, 1)
	go func() {
		if err := c.server.Start(cfg.HealthAddr); err != nil {
			errCh <- fmt.Errorf("reporting server error: %w", err)
		}
	}()

	c.reconciler.Start(ctx)

	// Wait for interrupt signal or server error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("Reporting server failed")
	}

	c.reconciler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := c.server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Reporting server did not shut down cleanly")
	}

	logger.Info().Msg("Shutdown complete")
	return runErr
}
