package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve RULE_ID",
	Short: "Approve or reject a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		client := mustClient()
		data, err := client.Put("/api/v1/rules/"+url.PathEscape(args[0])+"/approval",
			map[string]string{"status": status})
		if err != nil {
			return err
		}

		var rl RuleResponse
		if err := unmarshal(data, &rl); err != nil {
			return err
		}
		fmt.Printf("Rule %q is now %s.\n", rl.Name, rl.ApprovalStatus)
		return nil
	},
}

var assessCmd = &cobra.Command{
	Use:   "assess OBSERVATION_ID",
	Short: "Set the manual assessment of an observation",
	Long: `Set the manual assessment of an observation.

The assessment takes precedence over rule and parser values. Pass an
empty severity or status to leave that part of the assessment unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		severity, _ := cmd.Flags().GetString("severity")
		status, _ := cmd.Flags().GetString("status")
		comment, _ := cmd.Flags().GetString("comment")

		if severity == "" && status == "" {
			return fmt.Errorf("--severity or --status is required")
		}

		body := map[string]string{
			"severity": severity,
			"status":   status,
			"comment":  comment,
			"actor":    "observe-admin",
		}

		client := mustClient()
		data, err := client.Put("/api/v1/observations/"+url.PathEscape(args[0])+"/assessment", body)
		if err != nil {
			return err
		}

		var o ObservationResponse
		if err := unmarshal(data, &o); err != nil {
			return err
		}
		fmt.Printf("Observation assessed: severity=%s status=%s\n", o.CurrentSeverity, o.CurrentStatus)
		return nil
	},
}

func init() {
	approveCmd.Flags().String("status", "approved", "Approval status: approved, rejected, needs_approval")

	assessCmd.Flags().String("severity", "", "Assessed severity")
	assessCmd.Flags().String("status", "", "Assessed status")
	assessCmd.Flags().String("comment", "", "Assessment comment")
}
