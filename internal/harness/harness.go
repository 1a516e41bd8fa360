package harness

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Version pins the harness dataset naming scheme.
const Version = "5_0"

// DatasetName builds the harness dataset name for a workload. Dots in the
// workload path and dashes in the location are not valid in dataset names,
// so both are folded to underscores.
func DatasetName(workloadPath, datasetType, location string) string {
	workloadPrefix := strings.ReplaceAll(workloadPath, ".", "__")
	location = strings.ReplaceAll(location, "-", "_")
	name := fmt.Sprintf("%s__%s__%s__%s", workloadPrefix, datasetType, Version, location)
	return strings.ToLower(name)
}

// Loader seeds workload datasets with test data by copying tables from a
// shared harness project.
type Loader struct {
	client *bigquery.Client
}

// NewLoader creates a harness loader.
func NewLoader(ctx context.Context, projectID, credentialsFile string) (*Loader, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %v", err)
	}
	return &Loader{client: client}, nil
}

// Close releases the underlying client.
func (l *Loader) Close() error {
	return l.client.Close()
}

// LoadDataset copies every table of the harness dataset for the given
// workload into the target dataset, overwriting tables already there.
func (l *Loader) LoadDataset(ctx context.Context, harnessProject, workloadPath, datasetType, targetProject, targetDataset string, location string) error {
	sourceDataset := DatasetName(workloadPath, datasetType, location)
	src := l.client.DatasetInProject(harnessProject, sourceDataset)

	it := src.Tables(ctx)
	copied := 0
	for {
		table, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to list harness tables: %v", err)
		}

		dst := l.client.DatasetInProject(targetProject, targetDataset).Table(table.TableID)
		copier := dst.CopierFrom(table)
		copier.WriteDisposition = bigquery.WriteTruncate

		job, err := copier.Run(ctx)
		if err != nil {
			return fmt.Errorf("failed to start copy of %s: %v", table.TableID, err)
		}
		status, err := job.Wait(ctx)
		if err != nil {
			return fmt.Errorf("failed to wait for copy of %s: %v", table.TableID, err)
		}
		if err := status.Err(); err != nil {
			return fmt.Errorf("copy of %s failed: %v", table.TableID, err)
		}
		copied++
	}

	if copied == 0 {
		return fmt.Errorf("harness dataset %s.%s has no tables", harnessProject, sourceDataset)
	}
	return nil
}
