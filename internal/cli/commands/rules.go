package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/netwatch/internal/alert"
	"github.com/netwatch/internal/models"
)

func NewRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Short:   "Alert rule management commands",
		Aliases: []string{"rule", "r"},
	}

	cmd.AddCommand(newRulesListCommand())
	cmd.AddCommand(newRulesGetCommand())
	cmd.AddCommand(newRulesValidateCommand())
	cmd.AddCommand(newRulesImportCommand())
	cmd.AddCommand(newRulesExportCommand())
	cmd.AddCommand(newRulesReloadCommand())
	cmd.AddCommand(newRulesToggleCommand("enable", "Enable an alert rule"))
	cmd.AddCommand(newRulesToggleCommand("disable", "Disable an alert rule"))
	cmd.AddCommand(newRulesDeleteCommand())

	return cmd
}

func newRulesListCommand() *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List alert rules",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled *bool
			if enabledOnly {
				enabled = &enabledOnly
			}
			rules, err := newClient().ListRules(enabled)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}
			return printRules(os.Stdout, rules)
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Only list enabled rules")
	return cmd
}

func newRulesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show one alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rule, err := newClient().GetRule(id)
			if err != nil {
				return fmt.Errorf("failed to get rule: %w", err)
			}
			return printJSON(os.Stdout, rule)
		},
	}
}

// newRulesValidateCommand checks a rules file locally without a server.
func newRulesValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a YAML or JSON rules file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := readRulesFile(args[0])
			if err != nil {
				return err
			}

			invalid := 0
			for i := range rules {
				if err := rules[i].Validate(); err != nil {
					invalid++
					fmt.Printf("rule %q: %v\n", rules[i].Name, err)
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d rules are invalid", invalid, len(rules))
			}

			fmt.Printf("%d rules are valid\n", len(rules))
			return nil
		},
	}
}

func newRulesImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import rules from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := readRulesFile(args[0])
			if err != nil {
				return err
			}
			if err := newClient().ImportRules(rules); err != nil {
				return fmt.Errorf("failed to import rules: %w", err)
			}

			fmt.Printf("Imported %d rules\n", len(rules))
			return nil
		},
	}
}

func newRulesExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all rules as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := newClient().ExportRules()
			if err != nil {
				return fmt.Errorf("failed to export rules: %w", err)
			}

			data, err := alert.MarshalRules(rules)
			if err != nil {
				return fmt.Errorf("failed to marshal rules: %w", err)
			}

			if output == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			fmt.Printf("Rules exported to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newRulesReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Make the engine reload its rule catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := newClient().ReloadRules()
			if err != nil {
				return fmt.Errorf("failed to reload rules: %w", err)
			}
			fmt.Printf("Engine now evaluates %d rules\n", n)
			return nil
		},
	}
}

func newRulesToggleCommand(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			c := newClient()
			if action == "enable" {
				err = c.EnableRule(id)
			} else {
				err = c.DisableRule(id)
			}
			if err != nil {
				return fmt.Errorf("failed to %s rule: %w", action, err)
			}

			fmt.Printf("Rule %d %sd\n", id, action)
			return nil
		},
	}
}

func newRulesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := newClient().DeleteRule(id); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}
			fmt.Printf("Rule %d deleted\n", id)
			return nil
		},
	}
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid rule ID: %w", err)
	}
	return uint(id), nil
}

// readRulesFile accepts a JSON array of rules or a YAML rules document.
func readRulesFile(path string) ([]models.AlertRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rules []models.AlertRule
	if json.Valid(data) {
		if err := json.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("failed to parse rules: %w", err)
		}
		return rules, nil
	}

	rules, err = alert.ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return rules, nil
}

func printRules(out io.Writer, rules []models.AlertRule) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCONDITION\tSEVERITY\tWINDOW\tAGGREGATION\tENABLED")

	for i := range rules {
		r := &rules[i]
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%ds\t%s\t%v\n",
			r.ID, r.Name, describeCondition(r.Condition), r.Severity,
			r.DedupWindowSeconds, r.Aggregation, !r.Disabled)
	}
	return w.Flush()
}

func describeCondition(c models.Condition) string {
	if c.Type == models.ConditionEvent {
		return "event " + c.Event
	}
	return fmt.Sprintf("%s %s %s", c.Metric, c.Operator, c.Threshold)
}
