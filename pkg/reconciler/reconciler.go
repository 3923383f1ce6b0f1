package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/self-healing-controller/pkg/classifier"
	"github.com/cuemby/self-healing-controller/pkg/debounce"
	"github.com/cuemby/self-healing-controller/pkg/log"
	"github.com/cuemby/self-healing-controller/pkg/metrics"
	"github.com/cuemby/self-healing-controller/pkg/types"
	"github.com/rs/zerolog"
)

const (
	loopWorkloads = "workloads"
	loopNodes     = "nodes"
)

// Source provides fresh resource snapshots every cycle
type Source interface {
	ListWorkloads(ctx context.Context) ([]*types.WorkloadInstance, error)
	ListNodes(ctx context.Context) ([]*types.Node, error)
}

// Remediator acts on classified resources
type Remediator interface {
	HandleWorkload(ctx context.Context, inst *types.WorkloadInstance, verdict types.Verdict) []types.Outcome
	HandleNode(ctx context.Context, node *types.Node, verdict types.Verdict) []types.Outcome
}

// Options configure the poll loops
type Options struct {
	WorkloadInterval time.Duration
	NodeInterval     time.Duration

	// LedgerMaxAge is how long ledger entries are kept; zero disables pruning
	LedgerMaxAge time.Duration
}

// Reconciler runs the workload and node poll loops
type Reconciler struct {
	source     Source
	classifier *classifier.Classifier
	remediator Remediator
	ledger     debounce.Store
	opts       Options
	logger     zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewReconciler creates a new reconciler. ledger may be nil when pruning is not wanted.
func NewReconciler(source Source, c *classifier.Classifier, remediator Remediator, ledger debounce.Store, opts Options) *Reconciler {
	return &Reconciler{
		source:     source,
		classifier: c,
		remediator: remediator,
		ledger:     ledger,
		opts:       opts,
		logger:     log.WithComponent("reconciler"),
	}
}

// Start launches both loops. Each runs a cycle immediately, then once per interval.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(2)
	go r.run(ctx, loopWorkloads, r.opts.WorkloadInterval, r.ReconcileWorkloads)
	go r.run(ctx, loopNodes, r.opts.NodeInterval, r.ReconcileNodes)

	r.logger.Info().
		Dur("workload_interval", r.opts.WorkloadInterval).
		Dur("node_interval", r.opts.NodeInterval).
		Msg("Reconciler started")
}

// Stop stops both loops and waits for the resource being remediated to finish
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info().Msg("Reconciler stopped")
}

// RunOnce runs a single workload cycle followed by a single node cycle
func (r *Reconciler) RunOnce(ctx context.Context) error {
	werr := r.ReconcileWorkloads(ctx)
	nerr := r.ReconcileNodes(ctx)
	if werr != nil {
		return werr
	}
	return nerr
}

// run is the main loop of one resource kind
func (r *Reconciler) run(ctx context.Context, loop string, interval time.Duration, cycle func(context.Context) error) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := cycle(ctx); err != nil && ctx.Err() == nil {
			// Log error but continue
			r.logger.Error().Err(err).Str("loop", loop).Msg("Reconciliation cycle failed")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// ReconcileWorkloads performs one workload cycle
func (r *Reconciler) ReconcileWorkloads(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CycleDuration, loopWorkloads)

	workloads, err := r.source.ListWorkloads(ctx)
	if err != nil {
		r.fetchFailed(loopWorkloads, err)
		return fmt.Errorf("failed to list workloads: %w", err)
	}
	metrics.UpdateComponent(metrics.ComponentCluster, true, "")

	failing := 0
	for _, inst := range workloads {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.classifier.ShouldSkip(inst) {
			continue
		}

		verdict := r.classifier.ClassifyWorkload(inst)
		if verdict == types.VerdictNone {
			continue
		}
		failing++
		r.remediator.HandleWorkload(ctx, inst, verdict)
	}

	r.cycleCompleted(loopWorkloads, metrics.ComponentWorkloadLoop, len(workloads), failing)
	return nil
}

// ReconcileNodes performs one node cycle and prunes stale ledger entries
func (r *Reconciler) ReconcileNodes(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CycleDuration, loopNodes)

	nodes, err := r.source.ListNodes(ctx)
	if err != nil {
		r.fetchFailed(loopNodes, err)
		return fmt.Errorf("failed to list nodes: %w", err)
	}
	metrics.UpdateComponent(metrics.ComponentCluster, true, "")

	failing := 0
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}

		verdict := r.classifier.ClassifyNode(node)
		if verdict == types.VerdictNone {
			continue
		}
		failing++
		r.remediator.HandleNode(ctx, node, verdict)
	}

	r.prune()
	r.cycleCompleted(loopNodes, metrics.ComponentNodeLoop, len(nodes), failing)
	return nil
}

func (r *Reconciler) fetchFailed(loop string, err error) {
	metrics.FetchErrorsTotal.WithLabelValues(loop).Inc()
	metrics.UpdateComponent(metrics.ComponentCluster, false, err.Error())
}

func (r *Reconciler) cycleCompleted(loop, component string, total, failing int) {
	metrics.CyclesTotal.WithLabelValues(loop).Inc()
	metrics.UpdateComponent(component, true, "")

	r.logger.Debug().
		Str("loop", loop).
		Int("resources", total).
		Int("failing", failing).
		Msg("Cycle completed")
}

func (r *Reconciler) prune() {
	if r.ledger == nil || r.opts.LedgerMaxAge <= 0 {
		return
	}

	removed, err := r.ledger.Prune(time.Now(), r.opts.LedgerMaxAge)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to prune cooldown ledger")
		return
	}
	if removed > 0 {
		r.logger.Debug().Int("removed", removed).Msg("Pruned cooldown ledger")
	}
	metrics.DebounceKeys.Set(float64(r.ledger.Len()))
}
