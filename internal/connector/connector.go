package connector

import (
	"fmt"

	"github.com/gmartner/mktdeploy/internal/config"
)

// Connector describes one marketing data source the deployment can ship.
type Connector struct {
	// Name as it appears in the config file, e.g. "GoogleAds".
	Name string
	// StepID of the connector's deploy step in the pipeline.
	StepID string
	// FlagName is the config attribute gating the deployment.
	FlagName string
	// ScriptDir holds the connector's deploy.sh.
	ScriptDir string
	// Enabled reads the gating flag from a processed config.
	Enabled func(*config.Config) bool
}

// SkipMessage is logged when the connector's flag gates it off.
func (c Connector) SkipMessage() string {
	return fmt.Sprintf("%s is not being deployed. Skipping.", c.Name)
}

// GoogleAds is the Google Ads connector.
var GoogleAds = Connector{
	Name:      "GoogleAds",
	StepID:    "googleads_deploy",
	FlagName:  "deployGoogleAds",
	ScriptDir: "src/GoogleAds",
	Enabled:   (*config.Config).GoogleAdsEnabled,
}

// CM360 is the Campaign Manager 360 connector.
var CM360 = Connector{
	Name:      "CM360",
	StepID:    "cm360_deploy",
	FlagName:  "deployCM360",
	ScriptDir: "src/CM360",
	Enabled:   (*config.Config).CM360Enabled,
}

// All returns every known connector in deployment order.
func All() []Connector {
	return []Connector{GoogleAds, CM360}
}

// Lookup finds a connector by name.
func Lookup(name string) (Connector, error) {
	for _, c := range All() {
		if c.Name == name {
			return c, nil
		}
	}
	return Connector{}, fmt.Errorf("unknown connector: %s", name)
}
