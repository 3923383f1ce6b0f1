package types

import (
	"time"
)

// Phase is the lifecycle phase of a workload instance
type Phase string

const (
	PhasePending   Phase = "Pending"
	PhaseRunning   Phase = "Running"
	PhaseSucceeded Phase = "Succeeded"
	PhaseFailed    Phase = "Failed"
	PhaseUnknown   Phase = "Unknown"
)

// Condition names consulted by the classifier
const (
	ConditionReady          = "Ready"
	ConditionDiskPressure   = "DiskPressure"
	ConditionMemoryPressure = "MemoryPressure"
)

// Labels used to detect release-managed workloads
const (
	LabelManagedBy = "app.kubernetes.io/managed-by"
	LabelInstance  = "app.kubernetes.io/instance"
)

// WorkloadInstance is a point-in-time snapshot of a pod
type WorkloadInstance struct {
	Namespace  string
	Name       string
	Phase      Phase
	Conditions map[string]bool
	Containers []ContainerStatus
	Labels     map[string]string
	Deleting   bool
}

// ContainerStatus holds the restart counter of one container
type ContainerStatus struct {
	Name         string
	RestartCount int32
}

// Key returns the debounce key for the instance. The kind prefix keeps pod
// and node keys apart in a shared ledger.
func (w *WorkloadInstance) Key() string {
	return "pod/" + w.Namespace + "/" + w.Name
}

// MaxRestarts returns the highest restart count across containers
func (w *WorkloadInstance) MaxRestarts() int32 {
	var highest int32
	for _, c := range w.Containers {
		if c.RestartCount > highest {
			highest = c.RestartCount
		}
	}
	return highest
}

// ReleaseManaged reports whether the instance carries the managed-by label
func (w *WorkloadInstance) ReleaseManaged() bool {
	_, ok := w.Labels[LabelManagedBy]
	return ok
}

// Release returns the release identifier label, if any
func (w *WorkloadInstance) Release() string {
	return w.Labels[LabelInstance]
}

// Node is a point-in-time snapshot of a cluster node
type Node struct {
	Name       string
	Conditions map[string]bool
}

// Key returns the debounce key for the node
func (n *Node) Key() string {
	return "node/" + n.Name
}

// Verdict is the classification result for a resource
type Verdict string

const (
	VerdictNone         Verdict = "none"
	VerdictFailing      Verdict = "failing"
	VerdictCrashLooping Verdict = "crash-looping"
)

// ActionKind identifies a remediation action
type ActionKind string

const (
	ActionRestart       ActionKind = "restart"
	ActionRollback      ActionKind = "rollback"
	ActionRebootTrigger ActionKind = "reboot-trigger"
	ActionNotifyOnly    ActionKind = "notify-only"
)

// Outcome records the result of a single remediation attempt
type Outcome struct {
	ID        string     `json:"id"`
	Action    ActionKind `json:"action"`
	Target    string     `json:"target"`
	Verdict   Verdict    `json:"verdict"`
	Success   bool       `json:"success"`
	TimedOut  bool       `json:"timed_out,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
