package cmd

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe RESOURCE ID",
	Short: "Show detailed information about a resource",
}

func init() {
	describeProductCmd := &cobra.Command{
		Use:   "product ID",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := mustClient()
			data, err := client.Get("/api/v1/products/" + url.PathEscape(args[0]))
			if err != nil {
				return err
			}

			var p ProductResponse
			if err := unmarshal(data, &p); err != nil {
				return err
			}

			if flagOutput == outputJSON {
				printJSON(p)
				return nil
			}
			if flagOutput == outputYAML {
				printYAML(p)
				return nil
			}

			fmt.Fprintf(os.Stdout, "Name:                 %s\n", p.Name)
			fmt.Fprintf(os.Stdout, "ID:                   %s\n", p.ID)
			fmt.Fprintf(os.Stdout, "PURL:                 %s\n", orDash(p.PURL))
			fmt.Fprintf(os.Stdout, "Product Group:        %s\n", orDash(p.ProductGroupID))
			fmt.Fprintf(os.Stdout, "Apply General Rules:  %s\n", boolToStr(p.ApplyGeneralRules))
			expiry := "-"
			if p.RiskAcceptanceExpiryDays != nil {
				expiry = fmt.Sprintf("%d days", *p.RiskAcceptanceExpiryDays)
			}
			fmt.Fprintf(os.Stdout, "Risk Accept Expiry:   %s\n", expiry)
			fmt.Fprintf(os.Stdout, "Webhook URL:          %s\n", orDash(p.NotificationWebhookURL))
			fmt.Fprintf(os.Stdout, "Created:              %s\n", shortTime(p.CreatedAt))
			return nil
		},
	}

	describeObservationCmd := &cobra.Command{
		Use:     "observation ID",
		Aliases: []string{"obs"},
		Short:   "Show one observation with all resolution layers",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := mustClient()
			data, err := client.Get("/api/v1/observations/" + url.PathEscape(args[0]))
			if err != nil {
				return err
			}

			// The describe view is the raw layer data, so JSON and YAML
			// render the full response rather than the summary type.
			var full map[string]any
			if err := unmarshal(data, &full); err != nil {
				return err
			}

			if flagOutput == outputJSON {
				printJSON(full)
				return nil
			}
			if flagOutput == outputYAML {
				printYAML(full)
				return nil
			}

			var o ObservationResponse
			if err := unmarshal(data, &o); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "Title:          %s\n", o.Title)
			fmt.Fprintf(os.Stdout, "ID:             %s\n", o.ID)
			fmt.Fprintf(os.Stdout, "Product:        %s\n", o.ProductID)
			fmt.Fprintf(os.Stdout, "Branch:         %s\n", orDash(o.BranchID))
			fmt.Fprintf(os.Stdout, "Scanner:        %s\n", o.ScannerName)
			fmt.Fprintf(os.Stdout, "Vulnerability:  %s\n", orDash(o.VulnerabilityID))
			fmt.Fprintf(os.Stdout, "\nResolution:\n")
			fmt.Fprintf(os.Stdout, "  Parser Severity:      %s\n", orDash(o.ParserSeverity))
			fmt.Fprintf(os.Stdout, "  Rule Severity:        %s\n", orDash(o.RuleSeverity))
			fmt.Fprintf(os.Stdout, "  VEX Status:           %s\n", orDash(o.VEXStatus))
			fmt.Fprintf(os.Stdout, "  Assessment Severity:  %s\n", orDash(o.AssessmentSeverity))
			fmt.Fprintf(os.Stdout, "  Assessment Status:    %s\n", orDash(o.AssessmentStatus))
			fmt.Fprintf(os.Stdout, "\nCurrent:\n")
			fmt.Fprintf(os.Stdout, "  Severity:       %s (%d)\n", o.CurrentSeverity, o.NumericalSeverity)
			fmt.Fprintf(os.Stdout, "  Status:         %s\n", o.CurrentStatus)
			fmt.Fprintf(os.Stdout, "  Justification:  %s\n", orDash(o.CurrentJustification))
			fmt.Fprintf(os.Stdout, "  Last Seen:      %s\n", shortTime(o.ImportLastSeen))
			return nil
		},
	}

	describeRuleCmd := &cobra.Command{
		Use:   "rule ID",
		Short: "Show one rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := mustClient()
			data, err := client.Get("/api/v1/rules/" + url.PathEscape(args[0]))
			if err != nil {
				return err
			}

			var full map[string]any
			if err := unmarshal(data, &full); err != nil {
				return err
			}

			if flagOutput == outputJSON {
				printJSON(full)
				return nil
			}
			if flagOutput == outputYAML {
				printYAML(full)
				return nil
			}

			var rl RuleResponse
			if err := unmarshal(data, &rl); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "Name:            %s\n", rl.Name)
			fmt.Fprintf(os.Stdout, "ID:              %s\n", rl.ID)
			fmt.Fprintf(os.Stdout, "Product:         %s\n", orDash(rl.ProductID))
			fmt.Fprintf(os.Stdout, "Product Group:   %s\n", orDash(rl.ProductGroupID))
			fmt.Fprintf(os.Stdout, "Approval:        %s\n", rl.ApprovalStatus)
			fmt.Fprintf(os.Stdout, "Enabled:         %s\n", boolToStr(rl.Enabled))
			fmt.Fprintf(os.Stdout, "New Severity:    %s\n", orDash(rl.NewSeverity))
			fmt.Fprintf(os.Stdout, "New Status:      %s\n", orDash(rl.NewStatus))
			fmt.Fprintf(os.Stdout, "Justification:   %s\n", orDash(rl.NewJustification))
			return nil
		},
	}

	describeCmd.AddCommand(describeProductCmd, describeObservationCmd, describeRuleCmd)
}
