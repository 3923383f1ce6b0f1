/*
Package types defines the snapshot and outcome types shared by the controller.

Snapshots are built fresh from the cluster API on every poll cycle and are
never persisted:

  - WorkloadInstance: a pod with its phase, conditions, per-container
    restart counters, labels and a flag for pods already being deleted
  - Node: a node with its conditions

Both expose Key, the identity used by the cooldown ledger. Workload keys
are "<namespace>/<name>" and node keys are "node/<name>", so the two
namespaces never collide.

Verdict is the classification result (none, failing, crash-looping) and
Outcome records one remediation action: restart, rollback, reboot-trigger
or notify-only.

# Release-managed workloads

A workload carrying the app.kubernetes.io/managed-by label is treated as
owned by a release. Its release name is read from
app.kubernetes.io/instance; see ReleaseManaged and Release.
*/
package types
