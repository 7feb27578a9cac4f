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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zilliztech/cloudtagger/common/werr"
)

const testConfigYaml = `
tagging:
  gcpServiceAccountKeyFile: /etc/cloudtagger/key.json
  controllerURL: https://controller.example.com/
  controllerAPIClient: tagger@customer1
  controllerAPISecret: s3cret
  enabled: true
  syncFrequencyMinutes: 5
  tickInterval: 30s
  nodeName: node-a
  nodeID: 42
gcp:
  metadataHost: 127.0.0.1:8080
  cacheToken: true
  requestTimeout: 5s
controller:
  requestTimeout: 2500
log:
  level: debug
  format: json
trace:
  exporter: stdout
http:
  port: "9100"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfiguration(t *testing.T) {
	cfg, err := NewConfiguration(writeFile(t, "cloudtagger.yaml", testConfigYaml))
	require.NoError(t, err)

	assert.Equal(t, "/etc/cloudtagger/key.json", cfg.Tagging.GcpServiceAccountKeyFile)
	assert.Equal(t, "https://controller.example.com", cfg.ControllerBaseURL())
	assert.Equal(t, "tagger@customer1", cfg.Tagging.ControllerAPIClient)
	assert.True(t, cfg.Tagging.Enabled)
	assert.Equal(t, 5, cfg.Tagging.SyncFrequencyMinutes)
	assert.Equal(t, 30*time.Second, cfg.Tagging.TickInterval.Duration.Duration())
	assert.Equal(t, "node-a", cfg.Tagging.NodeName)
	assert.Equal(t, int64(42), cfg.Tagging.NodeID)
	assert.Equal(t, "127.0.0.1:8080", cfg.Gcp.MetadataHost)
	assert.True(t, cfg.Gcp.CacheToken)
	assert.Equal(t, 5000, cfg.Gcp.RequestTimeout.Milliseconds())
	assert.Equal(t, 2500, cfg.Controller.RequestTimeout.Milliseconds())
	// untouched keys keep their defaults
	assert.Equal(t, "https://compute.googleapis.com/compute/v1/", cfg.Gcp.ComputeEndpoint)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/compute.readonly"}, cfg.Gcp.Scopes)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "stdout", cfg.Trace.Exporter)
	assert.Equal(t, "9100", cfg.Http.Port)
	assert.NoError(t, cfg.Validate())

	defaultConfig, err := NewConfiguration()
	require.NoError(t, err)
	assert.False(t, defaultConfig.Tagging.Enabled)
	assert.Equal(t, 15, defaultConfig.Tagging.SyncFrequencyMinutes)
	assert.Equal(t, time.Minute, defaultConfig.Tagging.TickInterval.Duration.Duration())
	assert.Equal(t, 30*time.Second, defaultConfig.Gcp.RequestTimeout.Duration.Duration())
	assert.Equal(t, "info", defaultConfig.Log.Level)
	assert.Equal(t, "noop", defaultConfig.Trace.Exporter)
}

func TestNewConfiguration_Overlay(t *testing.T) {
	base := writeFile(t, "base.yaml", testConfigYaml)
	override := writeFile(t, "override.yaml", "tagging:\n  syncFrequencyMinutes: 60\n")
	empty := writeFile(t, "empty.yaml", "")

	cfg, err := NewConfiguration(base, empty, override)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Tagging.SyncFrequencyMinutes)
	assert.Equal(t, "node-a", cfg.Tagging.NodeName)
}

func TestNewConfiguration_Errors(t *testing.T) {
	_, err := NewConfiguration(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, werr.ErrConfigError.Is(err))

	_, err = NewConfiguration(t.TempDir())
	assert.True(t, werr.ErrConfigError.Is(err))

	_, err = NewConfiguration(writeFile(t, "broken.yaml", "tagging: [unclosed"))
	assert.True(t, werr.ErrConfigError.Is(err))
}

func TestConfiguration_LookupAndValidate(t *testing.T) {
	cfg, err := NewConfiguration()
	require.NoError(t, err)

	_, ok := cfg.Lookup(ControllerURLProperty)
	assert.False(t, ok)
	_, ok = cfg.Lookup("not-a-property")
	assert.False(t, ok)

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, werr.ErrConfigError.Is(err))
	for _, key := range RequiredProperties {
		assert.Contains(t, err.Error(), key)
	}

	cfg.Tagging.ControllerURL = "https://controller"
	cfg.Tagging.ControllerAPIClient = "client"
	cfg.Tagging.ControllerAPISecret = "secret"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), GcpServiceAccountKeyFileProperty)
	assert.NotContains(t, err.Error(), ControllerAPISecretProperty)

	cfg.Tagging.GcpServiceAccountKeyFile = "/key.json"
	assert.NoError(t, cfg.Validate())
	v, ok := cfg.Lookup(ControllerAPIClientProperty)
	assert.True(t, ok)
	assert.Equal(t, "client", v)

	cfg.Tagging.TickInterval = NewDurationSecondsFromInt(0)
	assert.Error(t, cfg.Validate())
}
