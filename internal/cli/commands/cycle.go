package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewCycleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Evaluation cycle commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one evaluation cycle on the server now",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient().RunCycle()
			if err != nil {
				return fmt.Errorf("failed to run cycle: %w", err)
			}

			fmt.Printf("Cycle created %d alerts\n", result.Count)
			if result.Count == 0 {
				return nil
			}
			return printAlerts(os.Stdout, result.Alerts)
		},
	})

	return cmd
}
