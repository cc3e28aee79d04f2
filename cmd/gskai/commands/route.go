package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/genskey/gskai-go/internal/logging"
)

// NewRouteCmd constructs the `gskai route` command group for inspecting and
// editing the task routing table.
func NewRouteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Inspect and edit the task routing table",
		Long: `Manage the mapping from agent tasks to registered models.

The routing table lives in ~/.gskai/llm_config.json (override with
GSKAI_LLM_CONFIG). Changes are validated against the registered models
and persisted atomically.`,
	}

	cmd.AddCommand(
		newRouteGetCmd(),
		newRouteSetCmd(),
		newRouteApplyProfileCmd(),
	)
	return cmd
}

// newRouteGetCmd constructs `gskai route get`, printing the routing table.
func newRouteGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the task routing table",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			reg, err := buildRegistry(log)
			if err != nil {
				return fmt.Errorf("route get: %w", err)
			}

			doc := reg.Snapshot()
			tasks := make([]string, 0, len(doc.TaskRouting))
			for task := range doc.TaskRouting {
				tasks = append(tasks, task)
			}
			sort.Strings(tasks)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tPRIMARY MODEL")
			for _, task := range tasks {
				primary := doc.TaskRouting[task].Primary
				if primary == "" {
					primary = "(unconfigured)"
				}
				fmt.Fprintf(w, "%s\t%s\n", task, primary)
			}
			return w.Flush()
		},
	}
}

// newRouteSetCmd constructs `gskai route set <task> <model-id>`.
func newRouteSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <task> <model-id>",
		Short: "Route a task to a registered model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			reg, err := buildRegistry(log)
			if err != nil {
				return fmt.Errorf("route set: %w", err)
			}

			task, modelID := args[0], args[1]
			if err := reg.UpdateRouting(task, modelID); err != nil {
				return fmt.Errorf("route set: %w", err)
			}
			fmt.Printf("task %q now routes to %q\n", task, modelID)
			return nil
		},
	}
}

// newRouteApplyProfileCmd constructs `gskai route apply-profile <name>`.
func newRouteApplyProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply-profile <name>",
		Short: "Apply a preference profile to every task",
		Long: `Re-point every task's primary model according to the named profile
(e.g. quality, balanced, economy). The update is all-or-nothing: if the
profile is unknown or invalid, the routing table is left unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			reg, err := buildRegistry(log)
			if err != nil {
				return fmt.Errorf("route apply-profile: %w", err)
			}

			if err := reg.ApplyProfile(args[0]); err != nil {
				return fmt.Errorf("route apply-profile: %w", err)
			}
			fmt.Printf("profile %q applied\n", args[0])
			return nil
		},
	}
}
