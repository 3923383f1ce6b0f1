package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/self-healing-controller/pkg/types"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8stypes "k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ErrNotFound is returned when the target of a mutation no longer exists
var ErrNotFound = errors.New("resource not found")

// Client reads snapshots from and issues mutations to the Kubernetes API
type Client struct {
	clientset        kubernetes.Interface
	rebootAnnotation string
}

// NewClient wraps an existing clientset
func NewClient(clientset kubernetes.Interface, rebootAnnotation string) *Client {
	return &Client{
		clientset:        clientset,
		rebootAnnotation: rebootAnnotation,
	}
}

// NewClientset builds a clientset from the in-cluster service account,
// falling back to the given kubeconfig path (or the default loading rules).
func NewClientset(kubeconfig string) (kubernetes.Interface, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		if kubeconfig != "" {
			rules.ExplicitPath = kubeconfig
		}
		config, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return clientset, nil
}

// ListWorkloads returns a snapshot of every pod in the cluster
func (c *Client) ListWorkloads(ctx context.Context) ([]*types.WorkloadInstance, error) {
	pods, err := c.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	out := make([]*types.WorkloadInstance, 0, len(pods.Items))
	for i := range pods.Items {
		out = append(out, WorkloadFromPod(&pods.Items[i]))
	}
	return out, nil
}

// ListNodes returns a snapshot of every node in the cluster
func (c *Client) ListNodes(ctx context.Context) ([]*types.Node, error) {
	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	out := make([]*types.Node, 0, len(nodes.Items))
	for i := range nodes.Items {
		out = append(out, NodeFromAPI(&nodes.Items[i]))
	}
	return out, nil
}

// DeleteWorkload force-deletes a pod so its owner recreates it.
// A pod that is already gone is reported as ErrNotFound.
func (c *Client) DeleteWorkload(ctx context.Context, namespace, name string) error {
	grace := int64(0)
	err := c.clientset.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{
		GracePeriodSeconds: &grace,
	})
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("pod %s/%s: %w", namespace, name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete pod %s/%s: %w", namespace, name, err)
	}
	return nil
}

// AnnotateNode sets the reboot annotation on a node. Re-applying it to a
// node that already carries the annotation is a no-op on the server.
func (c *Client) AnnotateNode(ctx context.Context, name string) error {
	patch, err := rebootPatch(c.rebootAnnotation)
	if err != nil {
		return err
	}

	_, err = c.clientset.CoreV1().Nodes().Patch(ctx, name, k8stypes.MergePatchType, patch, metav1.PatchOptions{})
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("node %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to annotate node %s: %w", name, err)
	}
	return nil
}

// Ping verifies the API server is reachable
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("failed to reach API server: %w", err)
	}
	return nil
}

// WorkloadFromPod converts an API pod into a classifier snapshot
func WorkloadFromPod(pod *corev1.Pod) *types.WorkloadInstance {
	inst := &types.WorkloadInstance{
		Namespace:  pod.Namespace,
		Name:       pod.Name,
		Phase:      types.Phase(pod.Status.Phase),
		Conditions: make(map[string]bool, len(pod.Status.Conditions)),
		Labels:     pod.Labels,
		Deleting:   pod.DeletionTimestamp != nil,
	}
	if inst.Phase == "" {
		inst.Phase = types.PhasePending
	}

	for _, cond := range pod.Status.Conditions {
		if v, ok := conditionValue(cond.Status); ok {
			inst.Conditions[string(cond.Type)] = v
		}
	}

	for _, cs := range pod.Status.ContainerStatuses {
		inst.Containers = append(inst.Containers, types.ContainerStatus{
			Name:         cs.Name,
			RestartCount: cs.RestartCount,
		})
	}
	return inst
}

// NodeFromAPI converts an API node into a classifier snapshot
func NodeFromAPI(node *corev1.Node) *types.Node {
	n := &types.Node{
		Name:       node.Name,
		Conditions: make(map[string]bool, len(node.Status.Conditions)),
	}
	for _, cond := range node.Status.Conditions {
		if v, ok := conditionValue(cond.Status); ok {
			n.Conditions[string(cond.Type)] = v
		}
	}
	return n
}

// conditionValue maps True/False; Unknown is left out so it never reads as false
func conditionValue(status corev1.ConditionStatus) (bool, bool) {
	switch status {
	case corev1.ConditionTrue:
		return true, true
	case corev1.ConditionFalse:
		return false, true
	default:
		return false, false
	}
}
