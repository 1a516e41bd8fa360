package view

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"
)

// Deployer applies view definitions to BigQuery.
type Deployer struct {
	client *bigquery.Client
}

// NewDeployer creates a deployer for the given project.
func NewDeployer(ctx context.Context, projectID, credentialsFile string) (*Deployer, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %v", err)
	}
	return &Deployer{client: client}, nil
}

// Close releases the underlying client.
func (d *Deployer) Close() error {
	return d.client.Close()
}

// SourceColumns fetches the column names of the view's source table in
// schema order.
func (d *Deployer) SourceColumns(ctx context.Context, def *Definition) ([]string, error) {
	table := d.client.DatasetInProject(def.ProjectIDSource, def.CDCDataset).Table(def.sourceTable())
	md, err := table.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read source table metadata: %v", err)
	}

	columns := make([]string, 0, len(md.Schema))
	for _, field := range md.Schema {
		columns = append(columns, field.Name)
	}
	return columns, nil
}

// Apply creates or replaces the view. The source schema is checked first
// so a missing key column fails before any DDL runs.
func (d *Deployer) Apply(ctx context.Context, def *Definition) error {
	columns, err := d.SourceColumns(ctx, def)
	if err != nil {
		return err
	}
	if _, err := Project(columns, def.keys()); err != nil {
		return err
	}

	sql, err := def.RenderCreate()
	if err != nil {
		return err
	}

	q := d.client.Query(sql)
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to run view DDL: %v", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for view DDL: %v", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("view DDL failed: %v", err)
	}
	return nil
}
