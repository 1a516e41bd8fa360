package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/gmartner/mktdeploy/internal/logger"
	"github.com/gmartner/mktdeploy/internal/resource"
)

// Validate checks the marketing configuration and its referenced cloud
// resources. A nil checker skips the resource checks. Any error aborts the
// deployment before a connector step runs.
func Validate(ctx context.Context, cfg *Config, checker resource.Checker, log logger.Logger) error {
	if !cfg.DeployMarketing {
		log.Infof("'marketing' is not being deployed. Skipping validation.")
		return nil
	}

	log.Infof("Validating 'marketing' configuration...")
	m := cfg.Marketing
	if m == nil {
		return errors.New("missing 'marketing' values in the config file")
	}

	var missing []string
	if m.DeployGoogleAds == nil {
		missing = append(missing, "deployGoogleAds")
	}
	if m.DeployCM360 == nil {
		missing = append(missing, "deployCM360")
	}
	if m.DataflowRegion == "" {
		missing = append(missing, "dataflowRegion")
	}
	if len(missing) > 0 {
		return errors.Errorf(
			"config file is missing some marketing attributes or has empty values: %s",
			strings.Join(missing, ", "))
	}

	if *m.DeployGoogleAds {
		if m.GoogleAds == nil {
			return errors.New("missing 'marketing' 'GoogleAds' attribute in the config file")
		}
		if err := validateGoogleAds(ctx, cfg, checker, log); err != nil {
			return errors.Wrap(err, "GoogleAds config validation failed")
		}
	}

	if *m.DeployCM360 {
		if m.CM360 == nil {
			return errors.New("missing 'marketing' 'CM360' attribute in the config file")
		}
		if err := validateCM360(ctx, cfg, checker, log); err != nil {
			return errors.Wrap(err, "CM360 config validation failed")
		}
	}

	if err := validateDataflowRegion(m.DataflowRegion, cfg.Location); err != nil {
		return err
	}

	log.Infof("'marketing' config validated successfully. Looks good.")
	return nil
}

func validateGoogleAds(ctx context.Context, cfg *Config, checker resource.Checker, log logger.Logger) error {
	log.Infof("Validating configuration for GoogleAds...")
	ga := cfg.Marketing.GoogleAds

	var missing []string
	if ga.DeployCDC == nil {
		missing = append(missing, "deployCDC")
	}
	if ga.Datasets == nil {
		missing = append(missing, "datasets")
	}
	if ga.LookbackDays == nil {
		missing = append(missing, "lookbackDays")
	}
	if len(missing) > 0 {
		return fmt.Errorf(
			"config file is missing some GoogleAds attributes or has empty values: %s",
			strings.Join(missing, ", "))
	}

	if err := validateDatasets("GoogleAds", ga.Datasets); err != nil {
		return err
	}

	if checker != nil {
		datasets := connectorDatasetConstraints(cfg, ga.Datasets)
		if err := resource.CheckAll(ctx, checker, nil, datasets); err != nil {
			return fmt.Errorf("resource validation failed: %v", err)
		}
	}
	log.Infof("Config file validated for GoogleAds and is looking good.")
	return nil
}

func validateCM360(ctx context.Context, cfg *Config, checker resource.Checker, log logger.Logger) error {
	log.Infof("Validating config file for CM360...")
	cm := cfg.Marketing.CM360

	var missing []string
	if cm.DeployCDC == nil {
		missing = append(missing, "deployCDC")
	}
	if cm.DataTransferBucket == "" {
		missing = append(missing, "dataTransferBucket")
	}
	if cm.Datasets == nil {
		missing = append(missing, "datasets")
	}
	if len(missing) > 0 {
		return fmt.Errorf(
			"config file is missing some CM360 attributes or has empty values: %s",
			strings.Join(missing, ", "))
	}

	if err := validateDatasets("CM360", cm.Datasets); err != nil {
		return err
	}

	buckets := []resource.BucketConstraint{{
		Name:      cm.DataTransferBucket,
		MustExist: true,
		Location:  cfg.Location,
	}}
	if checker != nil {
		datasets := connectorDatasetConstraints(cfg, cm.Datasets)
		if err := resource.CheckAll(ctx, checker, buckets, datasets); err != nil {
			return fmt.Errorf("resource validation failed: %v", err)
		}
	}
	log.Infof("Config file validated for CM360 and is looking good.")
	return nil
}

func validateDatasets(connector string, ds *Datasets) error {
	var missing []string
	if ds.CDC == "" {
		missing = append(missing, "cdc")
	}
	if ds.Raw == "" {
		missing = append(missing, "raw")
	}
	if ds.Reporting == "" {
		missing = append(missing, "reporting")
	}
	if len(missing) > 0 {
		return fmt.Errorf(
			"config file is missing some %s datasets attributes or has empty values: %s",
			connector, strings.Join(missing, ", "))
	}
	return nil
}

// connectorDatasetConstraints builds the constraint set shared by both
// connectors: raw and cdc must already exist and be writable in the source
// project, reporting only needs to be writable if it exists.
func connectorDatasetConstraints(cfg *Config, ds *Datasets) []resource.DatasetConstraint {
	return []resource.DatasetConstraint{
		{
			ID:        fmt.Sprintf("%s.%s", cfg.ProjectIDSource, ds.Raw),
			MustExist: true,
			Writable:  true,
			Location:  cfg.Location,
		},
		{
			ID:        fmt.Sprintf("%s.%s", cfg.ProjectIDSource, ds.CDC),
			MustExist: true,
			Writable:  true,
			Location:  cfg.Location,
		},
		{
			ID:        fmt.Sprintf("%s.%s", cfg.ProjectIDTarget, ds.Reporting),
			MustExist: false,
			Writable:  true,
			Location:  cfg.Location,
		},
	}
}

// validateDataflowRegion checks that the dataflow region sits inside the
// BigQuery location, e.g. region us-central1 inside multi-region US.
func validateDataflowRegion(region, location string) error {
	r := strings.ToLower(region)
	l := strings.ToLower(location)
	if r != l && !strings.HasPrefix(r, l+"-") {
		return fmt.Errorf("invalid dataflowRegion %q, expected to be in %q", region, location)
	}
	return nil
}
