// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zilliztech/cloudtagger/common/werr"
)

// Property names of the required settings, kept compatible with the tagging.properties keys.
const (
	GcpServiceAccountKeyFileProperty = "gcp-service-account-key-file"
	ControllerURLProperty            = "controller-url"
	ControllerAPIClientProperty      = "controller-api-client"
	ControllerAPISecretProperty      = "controller-api-secret"
)

// RequiredProperties lists the settings without which the service must not start.
var RequiredProperties = []string{
	ControllerURLProperty,
	ControllerAPIClientProperty,
	ControllerAPISecretProperty,
	GcpServiceAccountKeyFileProperty,
}

// TaggingConfig stores the synchronization settings.
type TaggingConfig struct {
	GcpServiceAccountKeyFile string          `yaml:"gcpServiceAccountKeyFile"`
	ControllerURL            string          `yaml:"controllerURL"`
	ControllerAPIClient      string          `yaml:"controllerAPIClient"`
	ControllerAPISecret      string          `yaml:"controllerAPISecret"`
	Enabled                  bool            `yaml:"enabled"`
	SyncFrequencyMinutes     int             `yaml:"syncFrequencyMinutes"`
	TickInterval             DurationSeconds `yaml:"tickInterval"`
	NodeName                 string          `yaml:"nodeName"`
	NodeID                   int64           `yaml:"nodeID"`
	PropertiesFile           string          `yaml:"propertiesFile"`
}

// GcpConfig stores the cloud provider endpoints and credential settings.
type GcpConfig struct {
	MetadataHost    string               `yaml:"metadataHost"`
	ComputeEndpoint string               `yaml:"computeEndpoint"`
	Scopes          []string             `yaml:"scopes"`
	CacheToken      bool                 `yaml:"cacheToken"`
	RequestTimeout  DurationMilliseconds `yaml:"requestTimeout"`
}

// ControllerConfig stores the controller client settings.
type ControllerConfig struct {
	RequestTimeout DurationMilliseconds `yaml:"requestTimeout"`
}

// LogConfig stores the log configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// JaegerConfig stores the Jaeger configuration.
type JaegerConfig struct {
	URL string `yaml:"url"`
}

// OtlpConfig stores the OTLP configuration.
type OtlpConfig struct {
	Endpoint string `yaml:"endpoint"`
	Method   string `yaml:"method"`
	Secure   bool   `yaml:"secure"`
}

// TraceConfig stores the trace configuration.
type TraceConfig struct {
	Exporter       string       `yaml:"exporter"`
	SampleFraction float64      `yaml:"sampleFraction"`
	Jaeger         JaegerConfig `yaml:"jaeger"`
	Otlp           OtlpConfig   `yaml:"otlp"`
	InitTimeout    int          `yaml:"initTimeoutSeconds"`
}

// HttpConfig stores the admin http server configuration.
type HttpConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
	Pprof   bool   `yaml:"pprof"`
}

type Configuration struct {
	Tagging    TaggingConfig    `yaml:"tagging"`
	Gcp        GcpConfig        `yaml:"gcp"`
	Controller ControllerConfig `yaml:"controller"`
	Log        LogConfig        `yaml:"log"`
	Trace      TraceConfig      `yaml:"trace"`
	Http       HttpConfig       `yaml:"http"`
}

// NewConfiguration reads the Configuration from YAML files. Later files override earlier ones.
func NewConfiguration(files ...string) (*Configuration, error) {
	config := &Configuration{
		Tagging:    getDefaultTaggingConfig(),
		Gcp:        getDefaultGcpConfig(),
		Controller: getDefaultControllerConfig(),
		Log:        getDefaultLoggerConfig(),
		Trace:      getDefaultTraceConfig(),
		Http:       getDefaultHttpConfig(),
	}
	if len(files) == 0 {
		return config, nil
	}

	for _, filePath := range files {
		info, err := os.Stat(filePath)
		if err != nil {
			return nil, werr.ErrConfigError.WithCauseErrMsg(fmt.Sprintf("config file does not exist: %s", filePath))
		}
		if info.IsDir() {
			return nil, werr.ErrConfigError.WithCauseErrMsg(fmt.Sprintf("config file is a directory: %s", filePath))
		}
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, werr.ErrConfigError.WithCauseErrMsg(fmt.Sprintf("error reading config file: %s exception: %v", filePath, err))
		}
		if len(data) == 0 {
			continue
		}
		if err = yaml.Unmarshal(data, config); err != nil {
			return nil, werr.ErrConfigError.WithCauseErrMsg(fmt.Sprintf("error parsing config file: %s exception: %v", filePath, err))
		}
	}
	return config, nil
}

// Lookup returns a required setting by its property name.
func (c *Configuration) Lookup(key string) (string, bool) {
	var v string
	switch key {
	case GcpServiceAccountKeyFileProperty:
		v = c.Tagging.GcpServiceAccountKeyFile
	case ControllerURLProperty:
		v = c.Tagging.ControllerURL
	case ControllerAPIClientProperty:
		v = c.Tagging.ControllerAPIClient
	case ControllerAPISecretProperty:
		v = c.Tagging.ControllerAPISecret
	default:
		return "", false
	}
	return v, len(v) > 0
}

// Validate reports every missing required property in a single error.
func (c *Configuration) Validate() error {
	var missing strings.Builder
	for _, key := range RequiredProperties {
		if _, ok := c.Lookup(key); !ok {
			missing.WriteString(fmt.Sprintf(" Missing required property: '%s'", key))
		}
	}
	if missing.Len() > 0 {
		return werr.ErrConfigError.WithCauseErrMsg("error in reading configuration properties, issues:" + missing.String())
	}
	if c.Tagging.SyncFrequencyMinutes < 0 {
		return werr.ErrConfigError.WithCauseErrMsg(fmt.Sprintf("invalid syncFrequencyMinutes: %d", c.Tagging.SyncFrequencyMinutes))
	}
	if c.Tagging.TickInterval.Duration.Duration() <= 0 {
		return werr.ErrConfigError.WithCauseErrMsg("tickInterval must be positive")
	}
	return nil
}

// ControllerBaseURL returns the controller url without trailing slashes.
func (c *Configuration) ControllerBaseURL() string {
	return strings.TrimRight(c.Tagging.ControllerURL, "/")
}

func getDefaultTaggingConfig() TaggingConfig {
	return TaggingConfig{
		Enabled:              false,
		SyncFrequencyMinutes: 15,
		TickInterval:         NewDurationSecondsFromInt(60),
	}
}

func getDefaultGcpConfig() GcpConfig {
	return GcpConfig{
		MetadataHost:    "",
		ComputeEndpoint: "https://compute.googleapis.com/compute/v1/",
		Scopes:          []string{"https://www.googleapis.com/auth/compute.readonly"},
		CacheToken:      false,
		RequestTimeout:  NewDurationMillisecondsFromInt(int((30 * time.Second).Milliseconds())),
	}
}

func getDefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		RequestTimeout: NewDurationMillisecondsFromInt(int((30 * time.Second).Milliseconds())),
	}
}

func getDefaultLoggerConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "text",
	}
}

func getDefaultTraceConfig() TraceConfig {
	return TraceConfig{
		Exporter: "noop",
		Jaeger: JaegerConfig{
			URL: "http://localhost:14268/api/traces",
		},
		Otlp: OtlpConfig{
			Endpoint: "localhost:4317",
			Method:   "grpc",
			Secure:   false,
		},
		SampleFraction: 1.0,
		InitTimeout:    10,
	}
}

func getDefaultHttpConfig() HttpConfig {
	return HttpConfig{
		Enabled: true,
		Port:    "9091",
		Pprof:   false,
	}
}
