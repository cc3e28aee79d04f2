package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/genskey/gskai-go/internal/logging"
)

// NewAskCmd constructs the `gskai ask` command, which answers a single
// research question against the ingested literature.
func NewAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a research question against the ingested literature",
		Long: `Ask a natural language question grounded in the ingested PubMed articles.

The question is embedded, the closest articles are retrieved from the
vector store, and the model routed for the literature_search task
generates an answer citing the retrieved sources.

Examples:
  gskai ask "what delivery vectors are used for CRISPR base editors?"
  gskai ask --top-k 10 "current evidence for glioblastoma immunotherapy"
  MOCK_LLM=true gskai ask "offline smoke test"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			flags := resolveMockFlags()

			idx, err := buildIndex(flags, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer idx.Close()

			reg, err := buildRegistry(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			qa, err := buildAgent(idx, reg, flags, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			answer, err := qa.Answer(ctx, args[0], topK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(answer.Answer)
			if len(answer.Citations) > 0 {
				fmt.Println("\nSources:")
				for _, c := range answer.Citations {
					fmt.Printf("  %s\n", c)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of articles to retrieve (default 5)")

	return cmd
}
