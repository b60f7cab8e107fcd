package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import RESOURCE",
	Short: "Upload scan reports and VEX documents",
}

// vexManifest mirrors the VEX import request body.
type vexManifest struct {
	DocumentID string                 `yaml:"document_id" json:"document_id"`
	Version    string                 `yaml:"version" json:"version,omitempty"`
	Author     string                 `yaml:"author" json:"author,omitempty"`
	Role       string                 `yaml:"role" json:"role,omitempty"`
	Statements []vexStatementManifest `yaml:"statements" json:"statements"`
}

type vexStatementManifest struct {
	VulnerabilityID string `yaml:"vulnerability_id" json:"vulnerability_id"`
	ProductPURL     string `yaml:"product_purl" json:"product_purl"`
	ComponentPURL   string `yaml:"component_purl" json:"component_purl,omitempty"`
	Status          string `yaml:"status" json:"status"`
	Justification   string `yaml:"justification" json:"justification,omitempty"`
	Impact          string `yaml:"impact" json:"impact,omitempty"`
	Remediation     string `yaml:"remediation" json:"remediation,omitempty"`
}

func init() {
	importScanCmd := &cobra.Command{
		Use:   "scan FILE",
		Short: "Upload a scan report for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productName, _ := cmd.Flags().GetString("product")
			branch, _ := cmd.Flags().GetString("branch")
			scanner, _ := cmd.Flags().GetString("scanner")

			if productName == "" {
				return fmt.Errorf("--product is required")
			}
			if scanner == "" {
				return fmt.Errorf("--scanner is required")
			}

			client := mustClient()
			data, err := client.Upload("/api/v1/imports/file", args[0], map[string]string{
				"product": productName,
				"branch":  branch,
				"scanner": scanner,
			})
			if err != nil {
				return err
			}

			var result ImportResponse
			if err := unmarshal(data, &result); err != nil {
				return err
			}
			fmt.Printf("Import complete: %d new, %d updated, %d resolved, %d skipped.\n",
				result.New, result.Updated, result.Resolved, result.Skipped)
			return nil
		},
	}
	importScanCmd.Flags().String("product", "", "Product name")
	importScanCmd.Flags().String("branch", "", "Branch name (created on first import)")
	importScanCmd.Flags().String("scanner", "", "Scanner name, e.g. trivy/0.51")

	importVEXCmd := &cobra.Command{
		Use:   "vex FILE",
		Short: "Import a VEX document from a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var manifest vexManifest
			if err := loadManifest(args[0], &manifest); err != nil {
				return err
			}

			client := mustClient()
			data, err := client.Post("/api/v1/vex/documents", manifest)
			if err != nil {
				return err
			}

			var result VEXImportResponse
			if err := unmarshal(data, &result); err != nil {
				return err
			}
			fmt.Printf("VEX document %q imported: %d statements, %d observations changed.\n",
				result.DocumentID, result.Statements, result.ObservationsChanged)
			return nil
		},
	}

	importCmd.AddCommand(importScanCmd, importVEXCmd)
}
