/*
Package reconciler runs the poll loops that drive remediation.

Two loops run independently, one for workloads and one for nodes, each on
its own interval. Nodes are usually polled at twice the workload interval.
Every cycle follows the same sequence:

	fetch snapshot -> skip exempt -> classify -> remediate

Classification and cooldown admission are delegated to the classifier and
to the remediation engine respectively; the loops themselves hold no
per-resource state.

# Failure handling

A failed fetch aborts only the current cycle. The error is logged, the
fetch error counter is incremented, the cluster component is reported
unhealthy and the loop sleeps until the next tick. Loops never exit on
their own.

# Shutdown

Stop cancels the loops and waits for them. Cancellation is checked
between resources, so a resource whose remediation has started is
finished first. The executors themselves run on a context that is not
canceled by shutdown.

# Readiness

Each completed cycle marks its loop component healthy in the metrics
health registry. The controller reports ready once the cluster is
reachable and both loops have completed at least one cycle.
*/
package reconciler
