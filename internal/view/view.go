package view

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// KeyColumns are the identifying columns every reporting view surfaces
// first, in this order.
var KeyColumns = []string{
	"account_id",
	"advertiser_id",
	"campaign_id",
	"ad_id",
	"impression_id",
	"event_time",
}

// DefaultSourceTable is the CDC table the campaign insights view reads.
const DefaultSourceTable = "campaign_insights"

// Definition identifies a reporting view: where it reads from, where it
// lands, and which columns lead.
type Definition struct {
	ProjectIDSource  string
	CDCDataset       string
	ProjectIDTarget  string
	ReportingDataset string
	SourceTable      string
	Name             string
	Keys             []string
}

func (d *Definition) keys() []string {
	if len(d.Keys) > 0 {
		return d.Keys
	}
	return KeyColumns
}

func (d *Definition) sourceTable() string {
	if d.SourceTable != "" {
		return d.SourceTable
	}
	return DefaultSourceTable
}

// Project computes the view's output column order: the key columns first,
// then every remaining source column in its original relative order. The
// exclusion list always equals the leading keys, so no column appears
// twice. A key column missing from the source is an error since the
// rendered SQL would not compile.
func Project(sourceColumns, keys []string) ([]string, error) {
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}

	present := make(map[string]bool, len(sourceColumns))
	out := make([]string, 0, len(sourceColumns))
	out = append(out, keys...)
	for _, c := range sourceColumns {
		present[c] = true
		if !keySet[c] {
			out = append(out, c)
		}
	}

	for _, k := range keys {
		if !present[k] {
			return nil, fmt.Errorf("source table is missing key column %s", k)
		}
	}
	return out, nil
}

var selectTemplate = template.Must(template.New("select").Parse(
	`SELECT
{{- range .Keys}}
  {{.}},
{{- end}}
  * EXCEPT ({{.ExceptList}})
FROM ` + "`{{.Source}}`" + `
`))

// RenderSelect renders the view body: key columns first, then everything
// else via EXCEPT-expansion.
func (d *Definition) RenderSelect() (string, error) {
	keys := d.keys()
	if len(keys) == 0 {
		return "", fmt.Errorf("view has no key columns")
	}

	var buf bytes.Buffer
	err := selectTemplate.Execute(&buf, struct {
		Keys       []string
		ExceptList string
		Source     string
	}{
		Keys:       keys,
		ExceptList: strings.Join(keys, ", "),
		Source:     fmt.Sprintf("%s.%s.%s", d.ProjectIDSource, d.CDCDataset, d.sourceTable()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render view SQL: %v", err)
	}
	return buf.String(), nil
}

// RenderCreate renders the full CREATE OR REPLACE VIEW statement.
func (d *Definition) RenderCreate() (string, error) {
	if d.Name == "" {
		return "", fmt.Errorf("view has no name")
	}
	body, err := d.RenderSelect()
	if err != nil {
		return "", err
	}
	target := fmt.Sprintf("%s.%s.%s", d.ProjectIDTarget, d.ReportingDataset, d.Name)
	return fmt.Sprintf("CREATE OR REPLACE VIEW `%s` AS\n%s", target, body), nil
}
