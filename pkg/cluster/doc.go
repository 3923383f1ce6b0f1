// Package cluster adapts the Kubernetes API to the controller: pod and node
// snapshots, pod deletion and the reboot annotation.
package cluster
