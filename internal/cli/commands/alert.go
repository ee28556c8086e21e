package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/netwatch/internal/api/client"
	"github.com/netwatch/internal/models"
)

func newClient() *client.Client {
	return client.NewClient(viper.GetString("api_url"))
}

func NewAlertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alerts",
		Short:   "Alert management commands",
		Aliases: []string{"alert", "a"},
	}

	cmd.AddCommand(newAlertListCommand())
	cmd.AddCommand(newAlertGetCommand())
	cmd.AddCommand(newAlertAcknowledgeCommand())
	cmd.AddCommand(newAlertResolveCommand())

	return cmd
}

func newAlertListCommand() *cobra.Command {
	var filter models.AlertFilter
	var status, severity string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List alerts",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = models.AlertStatus(status)
			filter.Severity = models.Severity(severity)

			alerts, err := newClient().ListAlerts(filter)
			if err != nil {
				return fmt.Errorf("failed to list alerts: %w", err)
			}
			return printAlerts(os.Stdout, alerts)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by alert status (open/acknowledged/resolved)")
	cmd.Flags().StringVar(&severity, "severity", "", "Filter by severity (info/warning/critical)")
	cmd.Flags().StringVar(&filter.DeviceID, "device", "", "Filter by device id")
	cmd.Flags().StringVar(&filter.ProviderID, "provider", "", "Filter by provider id")

	return cmd
}

func newAlertGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [alert_id]",
		Short: "Show one alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newClient().GetAlert(args[0])
			if err != nil {
				return fmt.Errorf("failed to get alert: %w", err)
			}
			return printJSON(os.Stdout, a)
		},
	}
}

func newAlertAcknowledgeCommand() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:     "acknowledge [alert_id]",
		Short:   "Acknowledge an alert",
		Aliases: []string{"ack"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := newClient().AcknowledgeAlert(args[0], actor); err != nil {
				return fmt.Errorf("failed to acknowledge alert: %w", err)
			}

			fmt.Printf("Alert %s acknowledged by %s\n", args[0], actor)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", defaultActor(), "Who is acknowledging the alert")
	return cmd
}

func newAlertResolveCommand() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "resolve [alert_id]",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := newClient().ResolveAlert(args[0], actor); err != nil {
				return fmt.Errorf("failed to resolve alert: %w", err)
			}

			fmt.Printf("Alert %s resolved by %s\n", args[0], actor)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", defaultActor(), "Who is resolving the alert")
	return cmd
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func printAlerts(out io.Writer, alerts []models.Alert) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSEVERITY\tSTATUS\tTARGET\tVALUE\tTITLE\tTIME")

	for i := range alerts {
		a := &alerts[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.Severity,
			a.Status,
			a.Target(),
			a.Value,
			a.Title,
			a.Timestamp.Format(time.RFC3339),
		)
	}

	return w.Flush()
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
