package view

import (
	"reflect"
	"strings"
	"testing"
)

func TestProject(t *testing.T) {
	source := []string{
		"event_time",
		"account_id",
		"clicks",
		"advertiser_id",
		"campaign_id",
		"ad_id",
		"impressions",
		"impression_id",
		"cost_micros",
	}

	t.Run("Column Set And Order", func(t *testing.T) {
		got, err := Project(source, KeyColumns)
		if err != nil {
			t.Fatalf("Failed to project: %v", err)
		}

		want := []string{
			"account_id", "advertiser_id", "campaign_id", "ad_id", "impression_id", "event_time",
			"clicks", "impressions", "cost_micros",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Projection mismatch:\n got %v\nwant %v", got, want)
		}

		// No duplicates: output size equals the source size.
		if len(got) != len(source) {
			t.Errorf("Expected %d columns, got %d", len(source), len(got))
		}
		seen := map[string]bool{}
		for _, c := range got {
			if seen[c] {
				t.Errorf("Duplicate column %s in projection", c)
			}
			seen[c] = true
		}
	})

	t.Run("Missing Key Column", func(t *testing.T) {
		if _, err := Project([]string{"account_id", "clicks"}, KeyColumns); err == nil {
			t.Error("Expected error for source missing key columns")
		}
	})

	t.Run("Keys Only Source", func(t *testing.T) {
		got, err := Project(KeyColumns, KeyColumns)
		if err != nil {
			t.Fatalf("Failed to project: %v", err)
		}
		if !reflect.DeepEqual(got, KeyColumns) {
			t.Errorf("Expected keys only, got %v", got)
		}
	})
}

func TestRenderSelect(t *testing.T) {
	def := &Definition{
		ProjectIDSource: "src-project",
		CDCDataset:      "cm360_cdc",
	}
	sql, err := def.RenderSelect()
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	for _, key := range KeyColumns {
		if !strings.Contains(sql, "  "+key+",") {
			t.Errorf("Expected leading selection of %s, got:\n%s", key, sql)
		}
	}
	wantExcept := "* EXCEPT (" + strings.Join(KeyColumns, ", ") + ")"
	if !strings.Contains(sql, wantExcept) {
		t.Errorf("Exclusion list must equal the leading columns, got:\n%s", sql)
	}
	if !strings.Contains(sql, "FROM `src-project.cm360_cdc.campaign_insights`") {
		t.Errorf("Expected templated source table, got:\n%s", sql)
	}
}

func TestRenderSelectCustomKeys(t *testing.T) {
	def := &Definition{
		ProjectIDSource: "p",
		CDCDataset:      "d",
		SourceTable:     "events",
		Keys:            []string{"a", "b"},
	}
	sql, err := def.RenderSelect()
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	if !strings.Contains(sql, "* EXCEPT (a, b)") {
		t.Errorf("Expected custom exclusion list, got:\n%s", sql)
	}
	if !strings.Contains(sql, "FROM `p.d.events`") {
		t.Errorf("Expected custom source table, got:\n%s", sql)
	}
}

func TestRenderCreate(t *testing.T) {
	def := &Definition{
		ProjectIDSource:  "src-project",
		CDCDataset:       "cm360_cdc",
		ProjectIDTarget:  "tgt-project",
		ReportingDataset: "cm360_reporting",
		Name:             "campaign_insights",
	}
	sql, err := def.RenderCreate()
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	if !strings.HasPrefix(sql, "CREATE OR REPLACE VIEW `tgt-project.cm360_reporting.campaign_insights` AS") {
		t.Errorf("Unexpected DDL prefix:\n%s", sql)
	}

	t.Run("Missing Name", func(t *testing.T) {
		bad := *def
		bad.Name = ""
		if _, err := bad.RenderCreate(); err == nil {
			t.Error("Expected error for unnamed view")
		}
	})
}
