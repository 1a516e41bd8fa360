package resource

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/rs/xid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCPChecker validates constraints against live BigQuery and Cloud Storage.
type GCPChecker struct {
	bq  *bigquery.Client
	gcs *storage.Client
}

// NewGCPChecker creates a checker using application default credentials,
// or an explicit credentials file when one is configured.
func NewGCPChecker(ctx context.Context, projectID, credentialsFile string) (*GCPChecker, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	bqClient, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %v", err)
	}

	gcsClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		bqClient.Close()
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &GCPChecker{bq: bqClient, gcs: gcsClient}, nil
}

// Close releases both underlying clients.
func (g *GCPChecker) Close() error {
	err := g.bq.Close()
	if cerr := g.gcs.Close(); err == nil {
		err = cerr
	}
	return err
}

// CheckDataset verifies existence, location and writability of a dataset.
// A missing dataset passes when MustExist is false: the deployment will
// create it.
func (g *GCPChecker) CheckDataset(ctx context.Context, c DatasetConstraint) error {
	project, dataset, err := SplitDatasetID(c.ID)
	if err != nil {
		return err
	}

	ds := g.bq.DatasetInProject(project, dataset)
	md, err := ds.Metadata(ctx)
	if err != nil {
		if isNotFound(err) {
			if c.MustExist {
				return fmt.Errorf("dataset does not exist")
			}
			return nil
		}
		return fmt.Errorf("failed to read dataset metadata: %v", err)
	}

	if c.Location != "" && !strings.EqualFold(md.Location, c.Location) {
		return fmt.Errorf("dataset is in location %s, expected %s", md.Location, c.Location)
	}

	if c.Writable {
		return g.checkWritable(ctx, ds)
	}
	return nil
}

// checkWritable creates and deletes a short-lived scratch table. Metadata
// access alone does not prove write permission.
func (g *GCPChecker) checkWritable(ctx context.Context, ds *bigquery.Dataset) error {
	table := ds.Table(fmt.Sprintf("mktdeploy_write_check_%s", xid.New().String()))
	md := &bigquery.TableMetadata{
		ExpirationTime: time.Now().Add(time.Hour),
		Description:    "temporary table verifying write access, safe to delete",
	}
	if err := table.Create(ctx, md); err != nil {
		return fmt.Errorf("dataset is not writable: %v", err)
	}
	if err := table.Delete(ctx); err != nil {
		// The table expires on its own; the write check itself passed.
		return nil
	}
	return nil
}

// CheckBucket verifies existence and location of a Cloud Storage bucket.
func (g *GCPChecker) CheckBucket(ctx context.Context, c BucketConstraint) error {
	attrs, err := g.gcs.Bucket(c.Name).Attrs(ctx)
	if err != nil {
		if err == storage.ErrBucketNotExist {
			if c.MustExist {
				return fmt.Errorf("bucket does not exist")
			}
			return nil
		}
		return fmt.Errorf("failed to read bucket attributes: %v", err)
	}

	// GCS reports multi-region locations like "US"; dataset locations in the
	// config may be lower case.
	if c.Location != "" && !locationCovers(attrs.Location, c.Location) {
		return fmt.Errorf("bucket is in location %s, expected %s", attrs.Location, c.Location)
	}
	return nil
}

func locationCovers(bucketLocation, expected string) bool {
	b := strings.ToLower(bucketLocation)
	e := strings.ToLower(expected)
	return b == e || strings.HasPrefix(b, e+"-") || strings.HasPrefix(e, b+"-")
}

func isNotFound(err error) bool {
	if gerr, ok := err.(*googleapi.Error); ok {
		return gerr.Code == http.StatusNotFound
	}
	return false
}
