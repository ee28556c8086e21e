package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/netwatch/internal/api/client"
	"github.com/netwatch/internal/models"
)

// NewStatsCommand shows alert counts by status and severity.
func NewStatsCommand() *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:     "stats",
		Short:   "Show alert counts by status and severity",
		Aliases: []string{"summary"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if !watch {
				return displaySummary(c, os.Stdout)
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				fmt.Print("\033[H\033[2J")
				if err := displaySummary(c, os.Stdout); err != nil {
					return err
				}
				select {
				case <-ticker.C:
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Refresh the summary continuously")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval with --watch")
	return cmd
}

func displaySummary(c *client.Client, out io.Writer) error {
	summary, err := c.AlertSummary()
	if err != nil {
		return fmt.Errorf("failed to get alert summary: %w", err)
	}
	return printSummary(out, summary)
}

func printSummary(out io.Writer, summary *models.AlertSummary) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "TOTAL\t%d\n", summary.Total)

	for _, status := range []models.AlertStatus{models.AlertStatusOpen, models.AlertStatusAcknowledged, models.AlertStatusResolved} {
		fmt.Fprintf(w, "%s\t%d\n", status, summary.ByStatus[status])
	}

	severities := make([]string, 0, len(summary.BySeverity))
	for s := range summary.BySeverity {
		severities = append(severities, string(s))
	}
	sort.Strings(severities)
	for _, s := range severities {
		fmt.Fprintf(w, "%s\t%d\n", s, summary.BySeverity[models.Severity(s)])
	}

	return w.Flush()
}
