package main

import (
	"context"
	"fmt"

	"github.com/cuemby/self-healing-controller/pkg/api"
	"github.com/cuemby/self-healing-controller/pkg/classifier"
	"github.com/cuemby/self-healing-controller/pkg/cluster"
	"github.com/cuemby/self-healing-controller/pkg/config"
	"github.com/cuemby/self-healing-controller/pkg/debounce"
	"github.com/cuemby/self-healing-controller/pkg/events"
	"github.com/cuemby/self-healing-controller/pkg/history"
	"github.com/cuemby/self-healing-controller/pkg/log"
	"github.com/cuemby/self-healing-controller/pkg/metrics"
	"github.com/cuemby/self-healing-controller/pkg/notify"
	"github.com/cuemby/self-healing-controller/pkg/reconciler"
	"github.com/cuemby/self-healing-controller/pkg/remediation"
	"github.com/cuemby/self-healing-controller/pkg/rollback"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
)

// controller holds every long-lived component of the process
type controller struct {
	cfg        *config.Config
	client     *cluster.Client
	ledger     debounce.Store
	recorder   history.Recorder
	broker     *events.Broker
	dispatcher *notify.Dispatcher
	engine     *remediation.Engine
	reconciler *reconciler.Reconciler
	collector  *metrics.Collector
	server     *api.HealthServer
}

func newClassifier(cfg *config.Config) *classifier.Classifier {
	return classifier.New(classifier.Options{
		RestartThreshold:   cfg.PodFailureThreshold,
		ExcludedNamespaces: cfg.ExcludedNamespaces,
		NamePrefix:         cfg.NamePrefix,
		NodePressure:       cfg.NodePressureFailure,
	})
}

func newLedger(cfg *config.Config) (debounce.Store, error) {
	if cfg.StateDir == "" {
		metrics.UpdateComponent(metrics.ComponentLedger, true, "in memory")
		return debounce.NewMemoryStore(), nil
	}
	store, err := debounce.NewBoltStore(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cooldown ledger: %w", err)
	}
	return store, nil
}

func newRecorder(ctx context.Context, cfg *config.Config) (history.Recorder, error) {
	if cfg.HistoryDatabaseURL == "" {
		return history.NewMemoryRecorder(history.DefaultCapacity), nil
	}
	rec, err := history.NewPostgresRecorder(ctx, cfg.HistoryDatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open outcome history: %w", err)
	}
	return rec, nil
}

// newController wires the components together without starting anything
func newController(ctx context.Context, cfg *config.Config, clientset kubernetes.Interface) (*controller, error) {
	ledger, err := newLedger(cfg)
	if err != nil {
		return nil, err
	}
	recorder, err := newRecorder(ctx, cfg)
	if err != nil {
		ledger.Close()
		return nil, err
	}

	c := &controller{
		cfg:      cfg,
		client:   cluster.NewClient(clientset, cfg.RebootAnnotation),
		ledger:   ledger,
		recorder: recorder,
		broker:   events.NewBroker(),
	}

	if cfg.NotificationsActive() {
		c.dispatcher = notify.NewDispatcher(c.broker, notify.NewWebhookNotifier(cfg.WebhookURL, cfg.SlackChannel))
	}

	c.engine = remediation.NewEngine(remediation.Options{
		PodCooldown:     cfg.PodCooldown,
		NodeCooldown:    cfg.NodeCooldown,
		RollbackEnabled: cfg.RollbackEnabled,
		RollbackTimeout: cfg.RollbackTimeout,
		RebootEnabled:   cfg.RebootEnabled,
	}, remediation.Dependencies{
		Ledger:     ledger,
		Deleter:    c.client,
		Rollbacker: rollback.NewHelmExecutor(cfg.HelmBinary),
		Annotator:  c.client,
		Publisher:  c.broker,
		Recorder:   recorder,
	})

	c.reconciler = reconciler.NewReconciler(c.client, newClassifier(cfg), c.engine, ledger, reconciler.Options{
		WorkloadInterval: cfg.CheckInterval,
		NodeInterval:     cfg.NodeCheckInterval,
		LedgerMaxAge:     max(cfg.PodCooldown, cfg.NodeCooldown),
	})

	c.collector = metrics.NewCollector(ledger, c.broker)
	c.server = api.NewHealthServer(c.engine, ledger, recorder, Version)
	return c, nil
}

// startBackground starts the broker and, when configured, notification delivery
func (c *controller) startBackground() {
	c.broker.Start()
	if c.dispatcher != nil {
		c.dispatcher.Start()
	}
	c.collector.Start()
}

// checkCluster records whether the cluster API is reachable
func (c *controller) checkCluster(ctx context.Context) {
	if err := c.client.Ping(ctx); err != nil {
		log.Logger.Warn().Err(err).Msg("Cluster API is not reachable yet")
		metrics.UpdateComponent(metrics.ComponentCluster, false, err.Error())
		return
	}
	metrics.UpdateComponent(metrics.ComponentCluster, true, "")
}

// close releases everything in reverse start order. The broker flushes its
// queue into the dispatcher, which then drains it to the webhook.
func (c *controller) close() {
	c.collector.Stop()
	c.broker.Stop()
	if c.dispatcher != nil {
		c.dispatcher.Stop()
	}

	if err := c.recorder.Close(); err != nil {
		log.Logger.Warn().Err(err).Msg("Failed to close outcome history")
	}
	if err := c.ledger.Close(); err != nil {
		log.Logger.Warn().Err(err).Msg("Failed to close cooldown ledger")
	}
}

// loadConfig reads the configuration and applies command-line overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("kubeconfig"); v != "" {
		cfg.Kubeconfig = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	if f := cmd.Flags().Lookup("health-addr"); f != nil && f.Value.String() != "" {
		cfg.HealthAddr = f.Value.String()
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.LogLevel),
		JSONOutput: cfg.LogFormat == "json",
		Output:     cmd.ErrOrStderr(),
	})
	return cfg, nil
}
