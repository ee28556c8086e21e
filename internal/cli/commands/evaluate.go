package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netwatch/internal/alert"
	"github.com/netwatch/internal/telemetry"
)

// NewEvaluateCommand runs one cycle offline over local files. Nothing is
// persisted and no notification is sent.
func NewEvaluateCommand() *cobra.Command {
	var (
		rulesFile   string
		samplesFile string
		format      string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a samples file against a rules file",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := alert.NewFileCatalog(rulesFile)
			if err != nil {
				return err
			}

			engine := alert.NewEngine(alert.Config{
				Catalog: catalog,
				Source:  telemetry.NewFileSource(samplesFile),
			})

			created, err := engine.RunCycle(cmd.Context())
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}

			switch format {
			case "json":
				return printJSON(cmd.OutOrStdout(), created)
			case "table":
				return printAlerts(cmd.OutOrStdout(), created)
			default:
				return fmt.Errorf("unknown output format: %s", format)
			}
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "rules.yaml", "YAML rules file")
	cmd.Flags().StringVar(&samplesFile, "samples", "samples.json", "JSON array of metric samples")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format (table/json)")
	return cmd
}
