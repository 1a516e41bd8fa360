package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
)

// DefaultLookbackDays is applied to the Google Ads connector when the
// config file leaves lookbackDays unset.
const DefaultLookbackDays = 180

// Config is the deployment configuration for the marketing workload.
// The on-disk format is JSON; YAML is accepted on read.
type Config struct {
	ProjectIDSource string `json:"projectIdSource"`
	ProjectIDTarget string `json:"projectIdTarget"`
	Location        string `json:"location"`
	TargetBucket    string `json:"targetBucket,omitempty"`
	TestData        *bool  `json:"testData,omitempty"`
	TestDataProject string `json:"testDataProject,omitempty"`

	DeployMarketing bool       `json:"deployMarketing"`
	Marketing       *Marketing `json:"marketing,omitempty"`
}

// Marketing holds the marketing workload section of the config.
type Marketing struct {
	DeployGoogleAds *bool  `json:"deployGoogleAds,omitempty"`
	DeployCM360     *bool  `json:"deployCM360,omitempty"`
	DataflowRegion  string `json:"dataflowRegion,omitempty"`

	GoogleAds *GoogleAds `json:"GoogleAds,omitempty"`
	CM360     *CM360     `json:"CM360,omitempty"`
}

// GoogleAds holds the Google Ads connector settings.
type GoogleAds struct {
	DeployCDC    *bool     `json:"deployCDC,omitempty"`
	LookbackDays *int      `json:"lookbackDays,omitempty"`
	Datasets     *Datasets `json:"datasets,omitempty"`
}

// CM360 holds the Campaign Manager 360 connector settings.
type CM360 struct {
	DeployCDC          *bool     `json:"deployCDC,omitempty"`
	DataTransferBucket string    `json:"dataTransferBucket,omitempty"`
	Datasets           *Datasets `json:"datasets,omitempty"`
}

// Datasets names the three BigQuery datasets every connector uses.
type Datasets struct {
	Raw       string `json:"raw,omitempty"`
	CDC       string `json:"cdc,omitempty"`
	Reporting string `json:"reporting,omitempty"`
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}
	return &cfg, nil
}

// Save writes the config back as indented JSON, creating parent
// directories as needed. Downstream connector scripts re-read this file,
// so the normalized form must land on disk before any deploy step runs.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %v", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}
	return nil
}

// ApplyDefaults fills optional fields the validator and the connector
// scripts expect to be present.
func (c *Config) ApplyDefaults() {
	if c.TestData == nil {
		c.TestData = boolPtr(false)
	}
	if c.TargetBucket == "" && c.ProjectIDTarget != "" {
		c.TargetBucket = fmt.Sprintf("%s-mktdeploy", c.ProjectIDTarget)
	}
	if c.Marketing == nil {
		return
	}
	if ga := c.Marketing.GoogleAds; ga != nil && ga.LookbackDays == nil {
		ga.LookbackDays = intPtr(DefaultLookbackDays)
	}
}

// GoogleAdsEnabled reports whether the Google Ads connector is gated on.
func (c *Config) GoogleAdsEnabled() bool {
	return c.DeployMarketing && c.Marketing != nil &&
		c.Marketing.DeployGoogleAds != nil && *c.Marketing.DeployGoogleAds
}

// CM360Enabled reports whether the CM360 connector is gated on.
func (c *Config) CM360Enabled() bool {
	return c.DeployMarketing && c.Marketing != nil &&
		c.Marketing.DeployCM360 != nil && *c.Marketing.DeployCM360
}

// TestDataEnabled reports whether test harness data should be loaded.
func (c *Config) TestDataEnabled() bool {
	return c.TestData != nil && *c.TestData
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
