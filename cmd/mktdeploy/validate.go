package main

import (
	"github.com/spf13/cobra"

	"github.com/gmartner/mktdeploy/internal/config"
	"github.com/gmartner/mktdeploy/internal/resource"
)

var skipResourceChecks bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate and normalize the deployment config",
	Long: `Validate loads the config file, fills defaults, validates the marketing
section and its referenced cloud resources, and rewrites the normalized
config in place. A non-zero exit means the config must not be deployed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg.ApplyDefaults()

		var checker resource.Checker
		if !skipResourceChecks {
			gcp, err := resource.NewGCPChecker(ctx, cfg.ProjectIDSource, credentialsFile)
			if err != nil {
				return err
			}
			defer gcp.Close()
			checker = gcp
		}

		if err := config.Validate(ctx, cfg, checker, log); err != nil {
			return err
		}
		return config.Save(cfg, configFile)
	},
}

func init() {
	validateCmd.Flags().BoolVar(&skipResourceChecks, "skip-resource-checks", false, "Only check config structure, not cloud resources")
	rootCmd.AddCommand(validateCmd)
}
