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
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zilliztech/cloudtagger/common/config"
	"github.com/zilliztech/cloudtagger/common/controller"
	"github.com/zilliztech/cloudtagger/common/gcp"
	"github.com/zilliztech/cloudtagger/common/werr"
	"github.com/zilliztech/cloudtagger/tagging"
)

const eventually = 5 * time.Second

func startService(t *testing.T, cfg *config.Configuration) (*Service, clockwork.FakeClock, <-chan error) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	svc, err := NewService(context.Background(), cfg, WithClock(clock))
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(context.Background())
	}()
	t.Cleanup(func() { _ = svc.Stop() })
	return svc, clock, done
}

func TestService_EndToEnd(t *testing.T) {
	cloud := newFakeCloud(t)
	cfg := cloud.config(t)
	cfg.Tagging.SyncFrequencyMinutes = 15
	cfg.Tagging.TickInterval = config.NewDurationSecondsFromInt(60)

	svc, clock, done := startService(t, cfg)
	assert.Equal(t, gcp.Identity{ProjectID: "p1", InstanceName: "vm1", Zone: "us-central1-a"}, svc.Identity())
	assert.Equal(t, int32(3), cloud.metadataCalls.Load())

	// the first cycle runs without waiting for a tick
	require.Eventually(t, func() bool { return cloud.uploads.Load() == 1 }, eventually, 10*time.Millisecond)
	assert.Equal(t, "Bearer tok123", cloud.lastAuthorization.Load())
	req := cloud.uploadedRequest(t)
	assert.Equal(t, "APPLICATION_COMPONENT_NODE", req.EntityType)
	assert.Equal(t, "node-a", req.Entities[0].Name)
	assert.Equal(t, int64(42), req.Entities[0].ID)
	assert.Equal(t, "prod", findTag(t, req, tagging.LabelTagPrefix+"env"))
	assert.Equal(t, "vm1", findTag(t, req, tagging.NameTag))
	outcome, ok := svc.Syncer().LastOutcome()
	assert.True(t, ok)
	assert.Equal(t, Completed, outcome)

	clock.BlockUntil(1)
	clock.Advance(15 * time.Minute)
	require.Eventually(t, func() bool { return cloud.uploads.Load() == 2 }, eventually, 10*time.Millisecond)
	assert.Equal(t, int32(2), cloud.cloudTokenCalls.Load())
	assert.Equal(t, int32(2), cloud.instanceCalls.Load())
	assert.Equal(t, int32(2), cloud.controllerToken.Load())

	require.NoError(t, svc.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(eventually):
		t.Fatal("service did not stop")
	}
}

func TestService_DisabledUntilPropertyChange(t *testing.T) {
	cloud := newFakeCloud(t)
	cfg := cloud.config(t)
	cfg.Tagging.Enabled = false
	cfg.Tagging.SyncFrequencyMinutes = 0

	svc, clock, _ := startService(t, cfg)
	require.Eventually(t, func() bool {
		outcome, ok := svc.Syncer().LastOutcome()
		return ok && outcome == SkippedDisabled
	}, eventually, 10*time.Millisecond)
	assert.Equal(t, int32(0), cloud.cloudTokenCalls.Load())
	assert.Equal(t, int32(0), cloud.controllerToken.Load())

	require.NoError(t, svc.Properties().UpdateProperty(config.EnabledProperty, "true"))
	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return cloud.uploads.Load() == 1 }, eventually, 10*time.Millisecond)
}

func TestService_PropertiesFile(t *testing.T) {
	cloud := newFakeCloud(t)
	cfg := cloud.config(t)
	cfg.Tagging.Enabled = false
	cfg.Tagging.PropertiesFile = filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(cfg.Tagging.PropertiesFile, []byte("enabled: true\n"), 0o600))

	svc, _, _ := startService(t, cfg)
	require.Eventually(t, func() bool { return cloud.uploads.Load() == 1 }, eventually, 10*time.Millisecond)
	assert.True(t, svc.Properties().IsEnabled())

	require.NoError(t, os.WriteFile(cfg.Tagging.PropertiesFile, []byte("enabled: false\n"), 0o600))
	require.Eventually(t, func() bool { return !svc.Properties().IsEnabled() }, eventually, 10*time.Millisecond)
}

func TestService_StartupErrors(t *testing.T) {
	cloud := newFakeCloud(t)

	t.Run("missing properties", func(t *testing.T) {
		cfg, err := config.NewConfiguration()
		require.NoError(t, err)
		_, err = NewService(context.Background(), cfg)
		assert.True(t, werr.ErrConfigError.Is(err))
		assert.True(t, werr.IsFatalStartupErr(err))
		assert.Contains(t, err.Error(), config.ControllerURLProperty)
	})

	t.Run("not running on a compute instance", func(t *testing.T) {
		cfg := cloud.config(t)
		elsewhere := httptest.NewServer(http.NotFoundHandler())
		defer elsewhere.Close()
		cfg.Gcp.MetadataHost = strings.TrimPrefix(elsewhere.URL, "http://")
		_, err := NewService(context.Background(), cfg)
		assert.True(t, werr.ErrNotRunningOn.Is(err))
		assert.True(t, werr.IsFatalStartupErr(err))
	})

	t.Run("malformed key file", func(t *testing.T) {
		cfg := cloud.config(t)
		cfg.Tagging.GcpServiceAccountKeyFile = filepath.Join(t.TempDir(), "key.json")
		require.NoError(t, os.WriteFile(cfg.Tagging.GcpServiceAccountKeyFile, []byte("{not json"), 0o600))
		_, err := NewService(context.Background(), cfg)
		assert.True(t, werr.ErrConfigError.Is(err))
	})
}

func TestService_StopBeforeRun(t *testing.T) {
	cloud := newFakeCloud(t)
	svc, err := NewService(context.Background(), cloud.config(t), WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)
	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())
	assert.NoError(t, svc.Run(context.Background()))
	assert.Equal(t, int32(0), cloud.uploads.Load())
}

func TestService_RunStopsWithContext(t *testing.T) {
	cloud := newFakeCloud(t)
	svc, err := NewService(context.Background(), cloud.config(t), WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)
	}()
	require.Eventually(t, func() bool { return cloud.uploads.Load() == 1 }, eventually, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(eventually):
		t.Fatal("run did not return")
	}
	assert.NoError(t, svc.Stop())
}

// newWiredSyncer builds a syncer with the real cloud and controller clients.
func newWiredSyncer(t *testing.T, cloud *fakeCloud) *Syncer {
	t.Helper()
	cfg := cloud.config(t)
	credentials, err := gcp.NewCredentialProvider(context.Background(), cfg.Tagging.GcpServiceAccountKeyFile, nil)
	require.NoError(t, err)
	instances, err := gcp.NewInstanceFetcher(context.Background(), cfg.Gcp.ComputeEndpoint, 5*time.Second)
	require.NoError(t, err)
	return NewSyncer(
		gcp.Identity{ProjectID: "p1", InstanceName: "vm1", Zone: "us-central1-a"},
		tagging.NodeIdentity{Name: "node-a", ID: 42},
		ControllerSettings{URL: cfg.ControllerBaseURL(), ClientID: "tagger@customer1", ClientSecret: "s3cret"},
		config.NewNodeProperties(&config.TaggingConfig{Enabled: true}),
		instances, credentials, controller.NewClient(5*time.Second), clockwork.NewFakeClock())
}

func TestSyncer_WiredControllerTokenRejected(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.controllerStatus.Store(http.StatusUnauthorized)

	outcome, err := newWiredSyncer(t, cloud).RunCycle(context.Background())
	assert.Equal(t, AbortedUploadError, outcome)
	assert.True(t, werr.ErrCommunication.Is(err))
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(0), cloud.uploads.Load())
}

func TestSyncer_WiredUploadServerError(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.uploadStatus.Store(http.StatusInternalServerError)

	outcome, err := newWiredSyncer(t, cloud).RunCycle(context.Background())
	assert.Equal(t, AbortedUploadError, outcome)
	assert.True(t, werr.ErrCommunication.Is(err))
	assert.Equal(t, int32(1), cloud.uploads.Load())
}

func TestSyncer_WiredInstanceForbidden(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.instanceStatus.Store(http.StatusForbidden)

	outcome, err := newWiredSyncer(t, cloud).RunCycle(context.Background())
	assert.Equal(t, AbortedFetchError, outcome)
	assert.True(t, werr.ErrInstanceFetch.Is(err))
	assert.Equal(t, int32(0), cloud.controllerToken.Load())
}

func TestSyncer_WiredPartialFailure(t *testing.T) {
	cloud := newFakeCloud(t)
	cloud.uploadReply.Store(`{"entityType":"APPLICATION_COMPONENT_NODE","success":{"count":0,"entityIds":[]},"failure":{"count":1,"entityIds":[42]}}`)

	outcome, err := newWiredSyncer(t, cloud).RunCycle(context.Background())
	assert.Equal(t, Completed, outcome)
	assert.True(t, werr.ErrPartialFailure.Is(err))
}
