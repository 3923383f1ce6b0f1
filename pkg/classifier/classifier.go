package classifier

import (
	"strings"

	"github.com/cuemby/self-healing-controller/pkg/types"
)

// Options parameterize the classification rules
type Options struct {
	// RestartThreshold is the restart count a container must exceed to be crash-looping
	RestartThreshold int32

	// ExcludedNamespaces are never classified
	ExcludedNamespaces []string

	// NamePrefix identifies the controller's own pods
	NamePrefix string

	// NodePressure makes DiskPressure/MemoryPressure count as node failure
	NodePressure bool
}

// Classifier maps resource snapshots to verdicts. It holds no state
// besides its options and is safe for concurrent use.
type Classifier struct {
	opts     Options
	excluded map[string]struct{}
}

// New creates a classifier
func New(opts Options) *Classifier {
	excluded := make(map[string]struct{}, len(opts.ExcludedNamespaces))
	for _, ns := range opts.ExcludedNamespaces {
		excluded[ns] = struct{}{}
	}
	return &Classifier{opts: opts, excluded: excluded}
}

// ShouldSkip reports whether an instance is exempt from classification
func (c *Classifier) ShouldSkip(inst *types.WorkloadInstance) bool {
	if _, ok := c.excluded[inst.Namespace]; ok {
		return true
	}
	if c.opts.NamePrefix != "" && strings.HasPrefix(inst.Name, c.opts.NamePrefix) {
		return true
	}
	return inst.Deleting
}

// ClassifyWorkload applies the workload rules in order; the first match wins
func (c *Classifier) ClassifyWorkload(inst *types.WorkloadInstance) types.Verdict {
	switch inst.Phase {
	case types.PhaseFailed, types.PhaseUnknown:
		return types.VerdictFailing
	}

	if ready, ok := inst.Conditions[types.ConditionReady]; ok && !ready {
		return types.VerdictFailing
	}

	for _, cs := range inst.Containers {
		if cs.RestartCount > c.opts.RestartThreshold {
			return types.VerdictCrashLooping
		}
	}

	return types.VerdictNone
}

// ClassifyNode returns Failing for a node that is not Ready, or under
// disk/memory pressure when the pressure rule is enabled.
func (c *Classifier) ClassifyNode(node *types.Node) types.Verdict {
	if ready, ok := node.Conditions[types.ConditionReady]; ok && !ready {
		return types.VerdictFailing
	}

	if c.opts.NodePressure {
		if node.Conditions[types.ConditionDiskPressure] || node.Conditions[types.ConditionMemoryPressure] {
			return types.VerdictFailing
		}
	}

	return types.VerdictNone
}
