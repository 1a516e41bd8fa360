package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gmartner/mktdeploy/internal/config"
	"github.com/gmartner/mktdeploy/internal/connector"
	"github.com/gmartner/mktdeploy/internal/gcs"
	"github.com/gmartner/mktdeploy/internal/harness"
	"github.com/gmartner/mktdeploy/internal/pipeline"
	"github.com/gmartner/mktdeploy/internal/resource"
	"github.com/gmartner/mktdeploy/internal/state"
)

var (
	logsBucket   string
	dryRun       bool
	loadTestData bool
	stateBackend string
	stateDir     string
	k8sNamespace string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the marketing deployment pipeline",
	Long: `Deploy validates the config, then deploys every connector whose flag
is set, in parallel. Disabled connectors log a skip message. Step logs
are uploaded to the logs bucket. The first failing step fails the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Resolving substitutions up front fails a missing logs bucket
		// before any client is built or any step runs.
		subs, err := pipeline.ResolveSubstitutions(pipeline.Substitutions{
			pipeline.SubConfigFile: configFile,
			pipeline.SubLogsBucket: logsBucket,
		})
		if err != nil {
			return err
		}

		states, err := newStateManager()
		if err != nil {
			return err
		}

		var runner pipeline.Runner = pipeline.NewExecRunner()
		var sink gcs.Sink
		var checker resource.Checker

		if dryRun {
			runner = dryRunRunner{}
		} else {
			// The checker and the sink need project and bucket before the
			// validator step runs, so peek at the raw config here.
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			gcp, err := resource.NewGCPChecker(ctx, cfg.ProjectIDSource, credentialsFile)
			if err != nil {
				return err
			}
			defer gcp.Close()
			checker = gcp

			bucketSink, err := gcs.NewBucketSink(ctx, logsBucket, credentialsFile)
			if err != nil {
				return err
			}
			defer bucketSink.Close()
			sink = bucketSink
		}

		d := connector.NewDeployment(runner, sink, states, checker, log)
		p, err := d.Pipeline(subs)
		if err != nil {
			return err
		}

		log.Infof("Starting marketing deployment, run %s", d.RunID())
		if _, err := pipeline.NewExecutor(log).Run(ctx, p); err != nil {
			return err
		}

		if loadTestData && !dryRun {
			if err := loadHarnessData(ctx, d.Config()); err != nil {
				return err
			}
		}

		log.Infof("Marketing deployment finished, run %s", d.RunID())
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVar(&logsBucket, "logs-bucket", "", "Cloud Storage bucket receiving step logs (required)")
	deployCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and plan without executing deploy scripts")
	deployCmd.Flags().BoolVar(&loadTestData, "test-data", false, "Load test harness data after a successful deployment")
	deployCmd.Flags().StringVar(&stateBackend, "state", "file", "State backend (memory, file or kubernetes)")
	deployCmd.Flags().StringVar(&stateDir, "state-dir", "", "Directory for file state (default: ~/.mktdeploy/state)")
	deployCmd.Flags().StringVar(&k8sNamespace, "namespace", "default", "Kubernetes namespace for kubernetes state")
	rootCmd.AddCommand(deployCmd)
}

func newStateManager() (state.Manager, error) {
	switch stateBackend {
	case "memory":
		return state.NewMemoryManager(), nil
	case "file":
		dir := stateDir
		if dir == "" {
			home, err := homedir.Dir()
			if err != nil {
				return nil, errors.Wrap(err, "failed to resolve home directory")
			}
			dir = filepath.Join(home, ".mktdeploy", "state")
		}
		return state.NewFileManager(dir)
	case "kubernetes":
		return state.NewKubernetesManager(k8sNamespace)
	default:
		return nil, errors.Errorf("unsupported state backend: %s", stateBackend)
	}
}

// dryRunRunner reports what would run instead of executing it.
type dryRunRunner struct{}

func (dryRunRunner) Run(ctx context.Context, script, dir string, env []string, logw io.Writer) error {
	fmt.Fprintf(logw, "(dry run) would execute %s in %s\n", script, dir)
	return nil
}

// loadHarnessData seeds raw and cdc datasets for every enabled connector.
func loadHarnessData(ctx context.Context, cfg *config.Config) error {
	if cfg == nil || !cfg.TestDataEnabled() {
		return nil
	}
	if cfg.TestDataProject == "" {
		return errors.New("testData is set but testDataProject is empty")
	}

	loader, err := harness.NewLoader(ctx, cfg.ProjectIDSource, credentialsFile)
	if err != nil {
		return err
	}
	defer loader.Close()

	type seed struct {
		workload string
		datasets *config.Datasets
	}
	var seeds []seed
	if cfg.GoogleAdsEnabled() {
		seeds = append(seeds, seed{"marketing.GoogleAds", cfg.Marketing.GoogleAds.Datasets})
	}
	if cfg.CM360Enabled() {
		seeds = append(seeds, seed{"marketing.CM360", cfg.Marketing.CM360.Datasets})
	}

	for _, s := range seeds {
		for datasetType, target := range map[string]string{
			"raw": s.datasets.Raw,
			"cdc": s.datasets.CDC,
		} {
			log.Infof("Loading %s %s test data into %s", s.workload, datasetType, target)
			err := loader.LoadDataset(ctx, cfg.TestDataProject, s.workload, datasetType,
				cfg.ProjectIDSource, target, cfg.Location)
			if err != nil {
				return errors.Wrapf(err, "failed to load test data for %s %s", s.workload, datasetType)
			}
		}
	}
	return nil
}
