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

package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/zilliztech/cloudtagger/common/config"
	"github.com/zilliztech/cloudtagger/common/controller"
	"github.com/zilliztech/cloudtagger/common/gcp"
	"github.com/zilliztech/cloudtagger/tagging"
)

const fakeInstanceJSON = `{
  "id": "8734127123456789",
  "name": "vm1",
  "zone": "https://www.googleapis.com/compute/v1/projects/p1/zones/us-central1-a",
  "machineType": "https://www.googleapis.com/compute/v1/projects/p1/zones/us-central1-a/machineTypes/e2-medium",
  "status": "RUNNING",
  "labels": {"env": "prod"}
}`

// fakeCloud serves the metadata server, the OAuth token endpoint, the compute API and the
// controller from one listener.
type fakeCloud struct {
	server *httptest.Server

	metadataCalls     atomic.Int32
	cloudTokenCalls   atomic.Int32
	instanceCalls     atomic.Int32
	controllerToken   atomic.Int32
	uploads           atomic.Int32
	instanceStatus    atomic.Int32
	controllerStatus  atomic.Int32
	uploadStatus      atomic.Int32
	uploadReply       atomic.String
	lastUpload        atomic.Value
	lastAuthorization atomic.String
}

func newFakeCloud(t *testing.T) *fakeCloud {
	t.Helper()
	c := &fakeCloud{}
	c.instanceStatus.Store(http.StatusOK)
	c.controllerStatus.Store(http.StatusOK)
	c.uploadStatus.Store(http.StatusOK)
	c.server = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.server.Close)
	// restored after the test, NewMetadataFetcher overrides it
	t.Setenv(gcp.MetadataHostEnv, "")
	return c
}

func (c *fakeCloud) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/computeMetadata/v1/"):
		c.metadataCalls.Inc()
		values := map[string]string{
			gcp.ProjectIDPath:    "p1",
			gcp.InstanceNamePath: "vm1",
			gcp.InstanceZonePath: "projects/123456/zones/us-central1-a",
		}
		value, ok := values[strings.TrimPrefix(r.URL.Path, "/computeMetadata/v1/")]
		if !ok || r.Header.Get("Metadata-Flavor") != "Google" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Metadata-Flavor", "Google")
		_, _ = w.Write([]byte(value))
	case r.URL.Path == "/token":
		c.cloudTokenCalls.Inc()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"cloud-token","token_type":"Bearer","expires_in":3600}`))
	case r.URL.Path == "/compute/v1/projects/p1/zones/us-central1-a/instances/vm1":
		c.instanceCalls.Inc()
		if status := int(c.instanceStatus.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fakeInstanceJSON))
	case r.URL.Path == controller.AccessTokenPath:
		c.controllerToken.Inc()
		if status := int(c.controllerStatus.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok123","expires_in":300}`))
	case r.URL.Path == controller.TagBatchPath:
		c.uploads.Inc()
		c.lastAuthorization.Store(r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		c.lastUpload.Store(body)
		w.WriteHeader(int(c.uploadStatus.Load()))
		_, _ = w.Write([]byte(c.uploadReply.Load()))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (c *fakeCloud) host() string {
	return strings.TrimPrefix(c.server.URL, "http://")
}

func (c *fakeCloud) uploadedRequest(t *testing.T) *tagging.BatchTaggingRequest {
	t.Helper()
	body, ok := c.lastUpload.Load().([]byte)
	require.True(t, ok, "nothing uploaded")
	req, err := tagging.UnmarshalBatchTaggingRequest(body)
	require.NoError(t, err)
	return req
}

// config returns a complete configuration pointing every endpoint at the fake cloud.
func (c *fakeCloud) config(t *testing.T) *config.Configuration {
	t.Helper()
	cfg, err := config.NewConfiguration()
	require.NoError(t, err)
	cfg.Tagging.GcpServiceAccountKeyFile = writeServiceAccountKey(t, c.server.URL+"/token")
	cfg.Tagging.ControllerURL = c.server.URL + "/"
	cfg.Tagging.ControllerAPIClient = "tagger@customer1"
	cfg.Tagging.ControllerAPISecret = "s3cret"
	cfg.Tagging.Enabled = true
	cfg.Tagging.NodeName = "node-a"
	cfg.Tagging.NodeID = 42
	cfg.Gcp.MetadataHost = c.host()
	cfg.Gcp.ComputeEndpoint = c.server.URL + "/compute/v1/"
	cfg.Gcp.RequestTimeout = config.NewDurationMillisecondsFromInt(int((5 * time.Second).Milliseconds()))
	cfg.Controller.RequestTimeout = config.NewDurationMillisecondsFromInt(int((5 * time.Second).Milliseconds()))
	return cfg
}

func writeServiceAccountKey(t *testing.T, tokenURL string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "p1",
		"private_key_id": "key-1",
		"private_key":    string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		"client_email":   "tagger@p1.iam.gserviceaccount.com",
		"token_uri":      tokenURL,
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "service-account.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func findTag(t *testing.T, req *tagging.BatchTaggingRequest, name string) string {
	t.Helper()
	require.Len(t, req.Entities, 1)
	for _, tag := range req.Entities[0].Tags {
		if tag.Name == name {
			return tag.Value
		}
	}
	assert.Failf(t, "tag not found", "%s", name)
	return ""
}
