/*
Package remediation decides and executes the actions taken for a
classified resource.

For a failing or crash-looping workload the engine:

 1. admits the key against the cooldown ledger; a denied key gets no
    action and no notification
 2. deletes the pod so its controller recreates it (a pod that is already
    gone counts as success)
 3. publishes a notification describing the condition
 4. rolls the release back when the pod is release-managed, rollback is
    enabled and the release label is present, then publishes exactly one
    of succeeded, failed or timed out

A failed delete ends remediation for the cycle. A failed rollback is
reported and nothing more: the pod is not deleted again and the cooldown
entry is left as recorded.

For a failing node the engine admits the key, always publishes a
notification and, when the reboot trigger is enabled, annotates the node
for the reboot daemon.

Every attempt produces a types.Outcome, which is counted in prometheus
and stored through the history Recorder.
*/
package remediation
