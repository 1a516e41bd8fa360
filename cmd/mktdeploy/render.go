package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gmartner/mktdeploy/internal/view"
)

var (
	viewDef   view.Definition
	applyView bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the campaign insights reporting view SQL",
	Long: `Render produces the CREATE OR REPLACE VIEW statement projecting the
key columns first and passing every other source column through
unchanged. With --apply the view is created in BigQuery after the
source schema is checked for the key columns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !applyView {
			sql, err := viewDef.RenderCreate()
			if err != nil {
				return err
			}
			fmt.Print(sql)
			return nil
		}

		deployer, err := view.NewDeployer(ctx, viewDef.ProjectIDTarget, credentialsFile)
		if err != nil {
			return err
		}
		defer deployer.Close()

		if err := deployer.Apply(ctx, &viewDef); err != nil {
			return err
		}
		log.Infof("View %s.%s.%s deployed.", viewDef.ProjectIDTarget, viewDef.ReportingDataset, viewDef.Name)
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&viewDef.ProjectIDSource, "source-project", "", "Project holding the CDC dataset")
	renderCmd.Flags().StringVar(&viewDef.CDCDataset, "cdc-dataset", "", "CDC dataset the view reads")
	renderCmd.Flags().StringVar(&viewDef.ProjectIDTarget, "target-project", "", "Project receiving the view")
	renderCmd.Flags().StringVar(&viewDef.ReportingDataset, "reporting-dataset", "", "Dataset receiving the view")
	renderCmd.Flags().StringVar(&viewDef.SourceTable, "source-table", view.DefaultSourceTable, "Source CDC table")
	renderCmd.Flags().StringVar(&viewDef.Name, "view", "campaign_insights", "View name")
	renderCmd.Flags().BoolVar(&applyView, "apply", false, "Create or replace the view in BigQuery")
	for _, f := range []string{"source-project", "cdc-dataset", "target-project", "reporting-dataset"} {
		_ = renderCmd.MarkFlagRequired(f)
	}
	rootCmd.AddCommand(renderCmd)
}
