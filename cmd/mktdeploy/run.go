package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gmartner/mktdeploy/internal/pipeline"
)

var (
	pipelineFile     string
	substitutionList []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a pipeline file",
	Long: `Run executes an arbitrary YAML pipeline: a step list with waitFor
dependencies, executed in parallel waves with fail-fast semantics.
Substitutions are exported into every step's environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := pipeline.LoadFile(pipelineFile)
		if err != nil {
			return err
		}

		overrides := pipeline.Substitutions{}
		for _, kv := range substitutionList {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 || parts[0] == "" {
				return errors.Errorf("invalid substitution %q, expected KEY=VALUE", kv)
			}
			overrides[parts[0]] = parts[1]
		}
		if logsBucket != "" {
			overrides[pipeline.SubLogsBucket] = logsBucket
		}

		p, err := f.Build(pipeline.NewExecRunner(), overrides, os.Stdout)
		if err != nil {
			return err
		}
		_, err = pipeline.NewExecutor(log).Run(ctx, p)
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&pipelineFile, "file", "cloudbuild.yaml", "Pipeline file to execute")
	runCmd.Flags().StringSliceVar(&substitutionList, "substitutions", nil, "Substitution overrides, KEY=VALUE")
	runCmd.Flags().StringVar(&logsBucket, "logs-bucket", "", "Cloud Storage bucket receiving step logs (required)")
	rootCmd.AddCommand(runCmd)
}
