package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get RESOURCE",
	Short: "List resources",
	Long: `List resources of a given type.

Resources:
  products                        All products (requires --name for lookup by name)
  branches --product-id ID        Branches of a product
  observations --product-id ID    Observations of a product
  rules [--product-id ID]         Rules of a product, or the general rules`,
}

func init() {
	getProductCmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product"},
		Short:   "Look up a product by name",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			client := mustClient()
			data, err := client.Get("/api/v1/products/" + url.PathEscape(name))
			if err != nil {
				return err
			}

			var p ProductResponse
			if err := unmarshal(data, &p); err != nil {
				return err
			}
			printProducts([]ProductResponse{p})
			return nil
		},
	}
	getProductCmd.Flags().String("name", "", "Product name or ID")

	getBranchesCmd := &cobra.Command{
		Use:     "branches",
		Aliases: []string{"branch"},
		Short:   "List branches of a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, _ := cmd.Flags().GetString("product-id")
			if productID == "" {
				return fmt.Errorf("--product-id is required")
			}

			client := mustClient()
			data, err := client.Get("/api/v1/products/" + url.PathEscape(productID) + "/branches")
			if err != nil {
				return err
			}

			var branches []BranchResponse
			if err := unmarshal(data, &branches); err != nil {
				return err
			}

			if flagOutput == outputJSON {
				printJSON(branches)
				return nil
			}
			if flagOutput == outputYAML {
				printYAML(branches)
				return nil
			}

			t := newTable("ID", "NAME", "PURL", "LAST-IMPORT")
			for _, b := range branches {
				last := "-"
				if b.LastImport != nil {
					last = shortTime(*b.LastImport)
				}
				t.AddRow(b.ID, b.Name, orDash(b.PURL), last)
			}
			t.Flush()
			return nil
		},
	}
	getBranchesCmd.Flags().String("product-id", "", "Product ID")

	getObservationsCmd := &cobra.Command{
		Use:     "observations",
		Aliases: []string{"observation", "obs"},
		Short:   "List observations of a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, _ := cmd.Flags().GetString("product-id")
			if productID == "" {
				return fmt.Errorf("--product-id is required")
			}

			client := mustClient()
			data, err := client.Get("/api/v1/products/" + url.PathEscape(productID) + "/observations")
			if err != nil {
				return err
			}

			var observations []ObservationResponse
			if err := unmarshal(data, &observations); err != nil {
				return err
			}

			if flagOutput == outputJSON {
				printJSON(observations)
				return nil
			}
			if flagOutput == outputYAML {
				printYAML(observations)
				return nil
			}

			if flagOutput == outputWide {
				t := newTable("ID", "TITLE", "SEVERITY", "STATUS", "JUSTIFICATION", "SCANNER", "LAST-SEEN")
				for _, o := range observations {
					t.AddRow(o.ID, truncate(o.Title, 40), o.CurrentSeverity, o.CurrentStatus,
						orDash(o.CurrentJustification), o.ScannerName, shortTime(o.ImportLastSeen))
				}
				t.Flush()
				return nil
			}

			t := newTable("ID", "TITLE", "SEVERITY", "STATUS")
			for _, o := range observations {
				t.AddRow(o.ID, truncate(o.Title, 50), o.CurrentSeverity, o.CurrentStatus)
			}
			t.Flush()
			return nil
		},
	}
	getObservationsCmd.Flags().String("product-id", "", "Product ID")

	getRulesCmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "List rules of a product, or the general rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, _ := cmd.Flags().GetString("product-id")

			path := "/api/v1/rules"
			if productID != "" {
				path += "?product_id=" + url.QueryEscape(productID)
			}

			client := mustClient()
			data, err := client.Get(path)
			if err != nil {
				return err
			}

			var rules []RuleResponse
			if err := unmarshal(data, &rules); err != nil {
				return err
			}

			if flagOutput == outputJSON {
				printJSON(rules)
				return nil
			}
			if flagOutput == outputYAML {
				printYAML(rules)
				return nil
			}

			t := newTable("ID", "NAME", "APPROVAL", "ENABLED", "NEW-SEVERITY", "NEW-STATUS")
			for _, r := range rules {
				t.AddRow(r.ID, r.Name, r.ApprovalStatus, boolToStr(r.Enabled),
					orDash(r.NewSeverity), orDash(r.NewStatus))
			}
			t.Flush()
			return nil
		},
	}
	getRulesCmd.Flags().String("product-id", "", "Product ID")

	getCmd.AddCommand(getProductCmd, getBranchesCmd, getObservationsCmd, getRulesCmd)
}

func printProducts(products []ProductResponse) {
	if flagOutput == outputJSON {
		printJSON(products)
		return
	}
	if flagOutput == outputYAML {
		printYAML(products)
		return
	}

	t := newTable("ID", "NAME", "PURL", "GENERAL-RULES")
	for _, p := range products {
		t.AddRow(p.ID, p.Name, orDash(p.PURL), boolToStr(p.ApplyGeneralRules))
	}
	t.Flush()
}
