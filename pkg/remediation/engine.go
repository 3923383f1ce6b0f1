package remediation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cuemby/self-healing-controller/pkg/cluster"
	"github.com/cuemby/self-healing-controller/pkg/debounce"
	"github.com/cuemby/self-healing-controller/pkg/events"
	"github.com/cuemby/self-healing-controller/pkg/history"
	"github.com/cuemby/self-healing-controller/pkg/log"
	"github.com/cuemby/self-healing-controller/pkg/metrics"
	"github.com/cuemby/self-healing-controller/pkg/rollback"
	"github.com/cuemby/self-healing-controller/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WorkloadDeleter restarts a workload instance by deleting it
type WorkloadDeleter interface {
	DeleteWorkload(ctx context.Context, namespace, name string) error
}

// Rollbacker reverts a release to its previous revision
type Rollbacker interface {
	Rollback(ctx context.Context, release, namespace string, timeout time.Duration) rollback.Result
}

// NodeAnnotator marks a node for reboot
type NodeAnnotator interface {
	AnnotateNode(ctx context.Context, name string) error
}

// Publisher receives operator-facing events
type Publisher interface {
	Publish(event *events.Event)
}

// Options control which actions the engine may take
type Options struct {
	PodCooldown     time.Duration
	NodeCooldown    time.Duration
	RollbackEnabled bool
	RollbackTimeout time.Duration
	RebootEnabled   bool
}

// Dependencies are the collaborators the engine drives
type Dependencies struct {
	Ledger     debounce.Store
	Deleter    WorkloadDeleter
	Rollbacker Rollbacker
	Annotator  NodeAnnotator
	Publisher  Publisher
	Recorder   history.Recorder

	// Now defaults to time.Now
	Now func() time.Time
}

// Stats are the counters exposed on the status endpoint
type Stats struct {
	WorkloadFailuresHandled int64 `json:"workload_failures_handled"`
	NodeFailuresHandled     int64 `json:"node_failures_handled"`
	RollbackAttempts        int64 `json:"rollback_attempts"`
}

// Engine turns classified resources into remediation actions
type Engine struct {
	opts Options
	deps Dependencies

	workloadFailures atomic.Int64
	nodeFailures     atomic.Int64
	rollbacks        atomic.Int64

	logger zerolog.Logger
}

// NewEngine creates a remediation engine
func NewEngine(opts Options, deps Dependencies) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Engine{
		opts:   opts,
		deps:   deps,
		logger: log.WithComponent("remediation"),
	}
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() Stats {
	return Stats{
		WorkloadFailuresHandled: e.workloadFailures.Load(),
		NodeFailuresHandled:     e.nodeFailures.Load(),
		RollbackAttempts:        e.rollbacks.Load(),
	}
}

// HandleWorkload remediates a failing or crash-looping workload instance.
// It restarts the instance and, for release-managed instances, rolls the
// release back. Nothing happens while the instance is cooling down.
func (e *Engine) HandleWorkload(ctx context.Context, inst *types.WorkloadInstance, verdict types.Verdict) []types.Outcome {
	if verdict == types.VerdictNone {
		return nil
	}

	key := inst.Key()
	logger := log.WithResource("remediation", key).With().Str("verdict", string(verdict)).Logger()
	metrics.DetectionsTotal.WithLabelValues("workload", string(verdict)).Inc()

	if !e.deps.Ledger.Admit(key, e.deps.Now(), e.opts.PodCooldown) {
		metrics.DebounceDeniedTotal.WithLabelValues("workload").Inc()
		logger.Debug().Msg("Workload is cooling down, skipping")
		return nil
	}
	e.workloadFailures.Add(1)

	// actions in flight finish even when the controller is shutting down
	execCtx := context.WithoutCancel(ctx)

	var outcomes []types.Outcome

	err := e.deps.Deleter.DeleteWorkload(execCtx, inst.Namespace, inst.Name)
	if errors.Is(err, cluster.ErrNotFound) {
		logger.Info().Msg("Workload already gone")
		err = nil
	}
	restart := e.outcome(types.ActionRestart, key, verdict)
	if err != nil {
		restart.Error = err.Error()
		outcomes = append(outcomes, e.finish(execCtx, restart))
		logger.Error().Err(err).Msg("Failed to restart workload")
		return outcomes
	}
	restart.Success = true
	outcomes = append(outcomes, e.finish(execCtx, restart))
	logger.Warn().Int32("restarts", inst.MaxRestarts()).Msg("Restarted workload")

	e.deps.Publisher.Publish(workloadEvent(inst, verdict))

	if !inst.ReleaseManaged() || !e.opts.RollbackEnabled {
		return outcomes
	}
	release := inst.Release()
	if release == "" {
		logger.Debug().Msg("Release-managed workload has no release label, skipping rollback")
		return outcomes
	}

	return append(outcomes, e.rollback(execCtx, inst, release, verdict, logger))
}

func (e *Engine) rollback(ctx context.Context, inst *types.WorkloadInstance, release string, verdict types.Verdict, logger zerolog.Logger) types.Outcome {
	e.rollbacks.Add(1)
	logger = logger.With().Str("release", release).Logger()
	logger.Info().Msg("Attempting release rollback")

	result := e.deps.Rollbacker.Rollback(ctx, release, inst.Namespace, e.opts.RollbackTimeout)
	metrics.RollbackDuration.Observe(result.Duration.Seconds())

	o := e.outcome(types.ActionRollback, inst.Key(), verdict)
	event := &events.Event{
		Metadata: map[string]string{
			"namespace": inst.Namespace,
			"pod":       inst.Name,
			"release":   release,
		},
	}

	switch {
	case result.Succeeded():
		o.Success = true
		event.Type = events.EventRollbackSucceeded
		event.Title = "Helm Rollback: " + release
		event.Message = fmt.Sprintf("Successfully rolled back Helm release %s in namespace %s", release, inst.Namespace)
		logger.Info().Dur("duration", result.Duration).Msg("Rolled back release")

	case result.Status == rollback.StatusTimedOut:
		o.TimedOut = true
		o.Error = errString(result.Err)
		event.Type = events.EventRollbackTimedOut
		event.Title = "Helm Rollback Timeout: " + release
		event.Message = fmt.Sprintf("Helm rollback timed out for release %s after %v", release, e.opts.RollbackTimeout)
		logger.Error().Dur("timeout", e.opts.RollbackTimeout).Msg("Release rollback timed out")

	default:
		detail := result.Stderr
		if detail == "" {
			detail = errString(result.Err)
		}
		o.Error = detail
		event.Type = events.EventRollbackFailed
		event.Title = "Helm Rollback Failed: " + release
		event.Message = fmt.Sprintf("Failed to rollback Helm release %s: %s", release, detail)
		logger.Error().Err(result.Err).Str("stderr", result.Stderr).Msg("Release rollback failed")
	}

	e.deps.Publisher.Publish(event)
	return e.finish(ctx, o)
}

// HandleNode announces a failing node and, when enabled, marks it for reboot
func (e *Engine) HandleNode(ctx context.Context, node *types.Node, verdict types.Verdict) []types.Outcome {
	if verdict == types.VerdictNone {
		return nil
	}

	key := node.Key()
	logger := log.WithResource("remediation", key)
	metrics.DetectionsTotal.WithLabelValues("node", string(verdict)).Inc()

	if !e.deps.Ledger.Admit(key, e.deps.Now(), e.opts.NodeCooldown) {
		metrics.DebounceDeniedTotal.WithLabelValues("node").Inc()
		logger.Debug().Msg("Node is cooling down, skipping")
		return nil
	}
	e.nodeFailures.Add(1)
	logger.Warn().Msg("Node failure detected")

	execCtx := context.WithoutCancel(ctx)

	event := &events.Event{
		Type:     events.EventNodeFailing,
		Title:    "Node Failure: " + node.Name,
		Metadata: map[string]string{"node": node.Name},
	}

	if !e.opts.RebootEnabled {
		event.Message = fmt.Sprintf("Node %s has failed. Automatic reboot is disabled.", node.Name)
		e.deps.Publisher.Publish(event)

		o := e.outcome(types.ActionNotifyOnly, key, verdict)
		o.Success = true
		return []types.Outcome{e.finish(execCtx, o)}
	}

	event.Message = fmt.Sprintf("Node %s has failed. Triggering reboot...", node.Name)
	e.deps.Publisher.Publish(event)

	o := e.outcome(types.ActionRebootTrigger, key, verdict)
	if err := e.deps.Annotator.AnnotateNode(execCtx, node.Name); err != nil {
		o.Error = err.Error()
		logger.Error().Err(err).Msg("Failed to trigger node reboot")
	} else {
		o.Success = true
		logger.Info().Msg("Triggered node reboot")
	}
	return []types.Outcome{e.finish(execCtx, o)}
}

func (e *Engine) outcome(action types.ActionKind, target string, verdict types.Verdict) types.Outcome {
	return types.Outcome{
		ID:        uuid.New().String(),
		Action:    action,
		Target:    target,
		Verdict:   verdict,
		Timestamp: e.deps.Now(),
	}
}

// finish counts and stores an outcome. History failures are logged only.
func (e *Engine) finish(ctx context.Context, o types.Outcome) types.Outcome {
	result := "success"
	switch {
	case o.TimedOut:
		result = "timeout"
	case !o.Success:
		result = "failure"
	}
	metrics.RemediationsTotal.WithLabelValues(string(o.Action), result).Inc()

	if e.deps.Recorder != nil {
		if err := e.deps.Recorder.Record(ctx, o); err != nil {
			e.logger.Warn().Err(err).Str("outcome_id", o.ID).Msg("Failed to record outcome")
		}
	}
	return o
}

func workloadEvent(inst *types.WorkloadInstance, verdict types.Verdict) *events.Event {
	event := &events.Event{
		Metadata: map[string]string{
			"namespace": inst.Namespace,
			"pod":       inst.Name,
		},
	}
	if verdict == types.VerdictCrashLooping {
		event.Type = events.EventWorkloadCrashLooping
		event.Title = "Crash Looping Pod: " + inst.Name
		event.Message = fmt.Sprintf("Pod %s in namespace %s is crash looping (%d restarts). The pod was restarted.",
			inst.Name, inst.Namespace, inst.MaxRestarts())
		return event
	}
	event.Type = events.EventWorkloadFailing
	event.Title = "Pod Failure: " + inst.Name
	event.Message = fmt.Sprintf("Pod %s in namespace %s has failed (phase %s). The pod was restarted.",
		inst.Name, inst.Namespace, inst.Phase)
	return event
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
