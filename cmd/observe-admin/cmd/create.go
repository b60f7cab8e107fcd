package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var createCmd = &cobra.Command{
	Use:   "create RESOURCE",
	Short: "Create resources from a manifest file",
	Long: `Create resources from a YAML manifest file.

Examples:
  observe-admin create product -f product.yaml
  observe-admin create rule -f rule.yaml`,
}

// Manifest types. The YAML field names mirror the API's JSON fields.

type productManifest struct {
	Name                     string `yaml:"name" json:"name"`
	PURL                     string `yaml:"purl" json:"purl,omitempty"`
	ProductGroupID           string `yaml:"product_group_id" json:"product_group_id,omitempty"`
	ApplyGeneralRules        *bool  `yaml:"apply_general_rules" json:"apply_general_rules,omitempty"`
	RiskAcceptanceExpiryDays *int   `yaml:"risk_acceptance_expiry_days" json:"risk_acceptance_expiry_days,omitempty"`
	NotificationWebhookURL   string `yaml:"notification_webhook_url" json:"notification_webhook_url,omitempty"`
}

type ruleMatchersManifest struct {
	ScannerName        string `yaml:"scanner_name" json:"scanner_name,omitempty"`
	ScannerPrefix      string `yaml:"scanner_prefix" json:"scanner_prefix,omitempty"`
	Title              string `yaml:"title" json:"title,omitempty"`
	Description        string `yaml:"description" json:"description,omitempty"`
	ComponentName      string `yaml:"component_name" json:"component_name,omitempty"`
	DockerImageName    string `yaml:"docker_image_name" json:"docker_image_name,omitempty"`
	EndpointURL        string `yaml:"endpoint_url" json:"endpoint_url,omitempty"`
	ServiceName        string `yaml:"service_name" json:"service_name,omitempty"`
	SourceFile         string `yaml:"source_file" json:"source_file,omitempty"`
	CloudResource      string `yaml:"cloud_resource" json:"cloud_resource,omitempty"`
	KubernetesResource string `yaml:"kubernetes_resource" json:"kubernetes_resource,omitempty"`
}

type ruleManifest struct {
	Name             string               `yaml:"name" json:"name"`
	ProductID        string               `yaml:"product_id" json:"product_id,omitempty"`
	ProductGroupID   string               `yaml:"product_group_id" json:"product_group_id,omitempty"`
	Matchers         ruleMatchersManifest `yaml:"matchers" json:"matchers"`
	NewSeverity      string               `yaml:"new_severity" json:"new_severity,omitempty"`
	NewStatus        string               `yaml:"new_status" json:"new_status,omitempty"`
	NewJustification string               `yaml:"new_justification" json:"new_justification,omitempty"`
}

func loadManifest(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	return nil
}

func init() {
	createProductCmd := &cobra.Command{
		Use:   "product",
		Short: "Create a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			var manifest productManifest
			if err := loadManifest(file, &manifest); err != nil {
				return err
			}

			client := mustClient()
			data, err := client.Post("/api/v1/products", manifest)
			if err != nil {
				return err
			}

			var p ProductResponse
			if err := unmarshal(data, &p); err != nil {
				return err
			}
			fmt.Printf("Product %q created (%s).\n", p.Name, p.ID)
			return nil
		},
	}
	createProductCmd.Flags().StringP("file", "f", "", "Manifest file (YAML)")

	createRuleCmd := &cobra.Command{
		Use:   "rule",
		Short: "Create a rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			var manifest ruleManifest
			if err := loadManifest(file, &manifest); err != nil {
				return err
			}

			client := mustClient()
			data, err := client.Post("/api/v1/rules", manifest)
			if err != nil {
				return err
			}

			var rl RuleResponse
			if err := unmarshal(data, &rl); err != nil {
				return err
			}
			fmt.Printf("Rule %q created (%s), approval: %s.\n", rl.Name, rl.ID, rl.ApprovalStatus)
			return nil
		},
	}
	createRuleCmd.Flags().StringP("file", "f", "", "Manifest file (YAML)")

	createCmd.AddCommand(createProductCmd, createRuleCmd)
}
