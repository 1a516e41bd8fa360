package resource

import (
	"context"
	"fmt"
	"strings"
)

// DatasetConstraint describes what must be true of a BigQuery dataset
// before a deployment is allowed to proceed.
type DatasetConstraint struct {
	// ID is the fully qualified dataset, "project.dataset".
	ID string
	// MustExist requires the dataset to already exist. Datasets the
	// deployment creates itself (reporting) leave this false.
	MustExist bool
	// Writable requires write access to the dataset when it exists.
	Writable bool
	// Location is the expected dataset location, e.g. "US" or "europe-west1".
	Location string
}

// BucketConstraint describes what must be true of a Cloud Storage bucket.
type BucketConstraint struct {
	Name      string
	MustExist bool
	Location  string
}

// Checker validates resource constraints against an environment.
type Checker interface {
	CheckDataset(ctx context.Context, c DatasetConstraint) error
	CheckBucket(ctx context.Context, c BucketConstraint) error
}

// SplitDatasetID splits "project.dataset" into its two parts.
func SplitDatasetID(id string) (project, dataset string, err error) {
	parts := strings.SplitN(id, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid dataset id %q, expected project.dataset", id)
	}
	return parts[0], parts[1], nil
}

// CheckAll checks every constraint and returns the first failure.
func CheckAll(ctx context.Context, checker Checker, buckets []BucketConstraint, datasets []DatasetConstraint) error {
	for _, b := range buckets {
		if err := checker.CheckBucket(ctx, b); err != nil {
			return fmt.Errorf("bucket %s: %v", b.Name, err)
		}
	}
	for _, d := range datasets {
		if err := checker.CheckDataset(ctx, d); err != nil {
			return fmt.Errorf("dataset %s: %v", d.ID, err)
		}
	}
	return nil
}
