package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cuemby/self-healing-controller/pkg/classifier"
	"github.com/cuemby/self-healing-controller/pkg/cluster"
	"github.com/cuemby/self-healing-controller/pkg/reconciler"
	"github.com/cuemby/self-healing-controller/pkg/types"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "List failing workloads and nodes without remediating them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		clientset, err := cluster.NewClientset(cfg.Kubeconfig)
		if err != nil {
			return err
		}
		client := cluster.NewClient(clientset, cfg.RebootAnnotation)

		return classifyReport(cmd.Context(), client, newClassifier(cfg), cmd.OutOrStdout())
	},
}

// classifyReport writes one line per abnormal resource and a summary
func classifyReport(ctx context.Context, src reconciler.Source, c *classifier.Classifier, w io.Writer) error {
	workloads, err := src.ListWorkloads(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workloads: %w", err)
	}
	nodes, err := src.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	fmt.Fprintf(w, "%-8s %-50s %-14s %s\n", "KIND", "RESOURCE", "VERDICT", "DETAIL")

	abnormal := 0
	for _, inst := range workloads {
		if c.ShouldSkip(inst) {
			continue
		}
		verdict := c.ClassifyWorkload(inst)
		if verdict == types.VerdictNone {
			continue
		}
		abnormal++

		detail := fmt.Sprintf("phase=%s restarts=%d", inst.Phase, inst.MaxRestarts())
		if inst.ReleaseManaged() && inst.Release() != "" {
			detail += " release=" + inst.Release()
		}
		fmt.Fprintf(w, "%-8s %-50s %-14s %s\n", "pod", inst.Namespace+"/"+inst.Name, verdict, detail)
	}

	for _, node := range nodes {
		verdict := c.ClassifyNode(node)
		if verdict == types.VerdictNone {
			continue
		}
		abnormal++
		fmt.Fprintf(w, "%-8s %-50s %-14s %s\n", "node", node.Name, verdict, "")
	}

	fmt.Fprintf(w, "\n%d abnormal of %d pods and %d nodes\n", abnormal, len(workloads), len(nodes))
	return nil
}
