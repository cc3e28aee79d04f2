package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/genskey/gskai-go/internal/logging"
)

// NewModelsCmd constructs the `gskai models` command, which lists the
// registered models and their provider families.
func NewModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the registered models",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			reg, err := buildRegistry(log)
			if err != nil {
				return fmt.Errorf("models: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFAMILY\tBACKEND MODEL\tNAME")
			for _, m := range reg.Models() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Family, m.BackendModel, m.Name)
			}
			return w.Flush()
		},
	}
}
