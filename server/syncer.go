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
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/zilliztech/cloudtagger/common/config"
	"github.com/zilliztech/cloudtagger/common/gcp"
	"github.com/zilliztech/cloudtagger/common/http/health"
	"github.com/zilliztech/cloudtagger/common/logger"
	"github.com/zilliztech/cloudtagger/common/metrics"
	"github.com/zilliztech/cloudtagger/common/tracer"
	"github.com/zilliztech/cloudtagger/common/werr"
	"github.com/zilliztech/cloudtagger/tagging"
)

// Outcome is the terminal state of one sync cycle.
type Outcome int32

const (
	SkippedDisabled Outcome = iota
	SkippedTooSoon
	AbortedFetchError
	AbortedUploadError
	Completed
)

func (o Outcome) String() string {
	switch o {
	case SkippedDisabled:
		return metrics.OutcomeSkippedDisabled
	case SkippedTooSoon:
		return metrics.OutcomeSkippedTooSoon
	case AbortedFetchError:
		return metrics.OutcomeAbortedFetchError
	case AbortedUploadError:
		return metrics.OutcomeAbortedUploadError
	case Completed:
		return metrics.OutcomeCompleted
	default:
		return "unknown"
	}
}

// InstanceFetcher describes the instance the service runs on.
type InstanceFetcher interface {
	FetchInstance(ctx context.Context, projectID, zone, instanceName, token string) (*gcp.InstanceDescription, error)
}

// TokenMinter provides cloud bearer tokens.
type TokenMinter interface {
	Token(ctx context.Context) (string, error)
}

// ControllerClient exchanges client credentials and uploads batch requests.
type ControllerClient interface {
	GetBearerToken(ctx context.Context, controllerURL, clientID, clientSecret string) (string, error)
	Upload(ctx context.Context, controllerURL, token string, request *tagging.BatchTaggingRequest) (*tagging.BatchResponse, error)
}

// SyncProperties is the dynamic configuration consulted by every cycle.
type SyncProperties interface {
	IsEnabled() bool
	SyncFrequencyMinutes() int
}

var _ SyncProperties = (*config.NodeProperties)(nil)

// ControllerSettings addresses and authenticates the controller.
type ControllerSettings struct {
	URL          string
	ClientID     string
	ClientSecret string
}

const syncerIndicatorName = "tagging-syncer"

// noOutcome marks a syncer that has not attempted a cycle yet.
const noOutcome = -1

// Syncer runs sync cycles. Cycles are serialized, a cycle started while another one runs
// waits for it.
type Syncer struct {
	mu       sync.Mutex
	lastSync time.Time

	identity   gcp.Identity
	node       tagging.NodeIdentity
	controller ControllerSettings
	props      SyncProperties
	instances  InstanceFetcher
	tokens     TokenMinter
	client     ControllerClient
	clock      clockwork.Clock

	lastOutcome atomic.Int32
}

func NewSyncer(identity gcp.Identity, node tagging.NodeIdentity, controller ControllerSettings, props SyncProperties,
	instances InstanceFetcher, tokens TokenMinter, client ControllerClient, clock clockwork.Clock,
) *Syncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Syncer{
		identity:   identity,
		node:       node,
		controller: controller,
		props:      props,
		instances:  instances,
		tokens:     tokens,
		client:     client,
		clock:      clock,
	}
	s.lastOutcome.Store(noOutcome)
	return s
}

// RunCycle evaluates the enablement and interval gates and, when both pass, fetches the
// instance description and uploads it as tags of the local node. The interval restarts
// with every attempted cycle whatever its outcome. A completed cycle whose upload was
// partly rejected returns Completed together with ErrPartialFailure.
func (s *Syncer) RunCycle(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.props.IsEnabled() {
		logger.Ctx(ctx).Info("tagging is not enabled, set the node property to enable it",
			zap.String("property", config.EnabledProperty))
		return s.finish(SkippedDisabled), nil
	}
	now := s.clock.Now()
	interval := time.Duration(s.props.SyncFrequencyMinutes()) * time.Minute
	if now.Before(s.lastSync.Add(interval)) {
		metrics.TaggerSyncCyclesTotal.WithLabelValues(SkippedTooSoon.String()).Inc()
		return SkippedTooSoon, nil
	}
	s.lastSync = now

	ctx, span := tracer.Tracer().Start(ctx, "SyncCycle", trace.WithAttributes(
		attribute.String("project", s.identity.ProjectID),
		attribute.String("zone", s.identity.Zone),
		attribute.String("instance", s.identity.InstanceName),
	))
	defer span.End()
	defer func() {
		metrics.TaggerSyncCycleLatency.Observe(s.clock.Since(now).Seconds())
	}()

	instance, err := s.fetchInstance(ctx)
	if err != nil {
		logger.Ctx(ctx).Error("error fetching instance data, cycle aborted",
			zap.String("project", s.identity.ProjectID),
			zap.String("zone", s.identity.Zone),
			zap.String("instance", s.identity.InstanceName),
			zap.Int32("errorCode", werr.Code(err)),
			zap.Bool("retryable", werr.IsRetryableErr(err)),
			zap.Bool("timeout", werr.IsTimeoutError(err)),
			zap.Error(err))
		span.RecordError(err)
		span.SetAttributes(attribute.Int("errorCode", int(werr.Code(err))))
		span.SetStatus(codes.Error, "fetch instance")
		return s.finish(AbortedFetchError), err
	}

	request := tagging.Build(instance, s.node)
	span.SetAttributes(attribute.Int("tags", request.TagCount()))

	resp, err := s.upload(ctx, request)
	if err != nil && !werr.ErrPartialFailure.Is(err) {
		logger.Ctx(ctx).Error("communication error in uploading tags, cycle aborted",
			zap.String("controller", s.controller.URL),
			zap.Int32("errorCode", werr.Code(err)),
			zap.Bool("retryable", werr.IsRetryableErr(err)),
			zap.Bool("timeout", werr.IsTimeoutError(err)),
			zap.Error(err))
		span.RecordError(err)
		span.SetAttributes(attribute.Int("errorCode", int(werr.Code(err))))
		span.SetStatus(codes.Error, "upload tags")
		return s.finish(AbortedUploadError), err
	}
	if err != nil {
		var failed []int64
		if resp != nil {
			failed = resp.Failure.EntityIDs
		}
		logger.Ctx(ctx).Warn("controller rejected some tagged entities",
			zap.Int64s("failedEntityIds", failed),
			zap.Error(err))
		span.AddEvent("partial failure")
	}

	metrics.TaggerSyncTagsUploaded.Set(float64(request.TagCount()))
	metrics.TaggerSyncLastSuccessTimestamp.Set(float64(s.clock.Now().Unix()))
	logger.Ctx(ctx).Info("tags uploaded to controller",
		zap.String("node", s.node.Name),
		zap.Int64("nodeId", s.node.ID),
		zap.Int("tags", request.TagCount()))
	return s.finish(Completed), err
}

func (s *Syncer) fetchInstance(ctx context.Context) (*gcp.InstanceDescription, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return s.instances.FetchInstance(ctx, s.identity.ProjectID, s.identity.Zone, s.identity.InstanceName, token)
}

func (s *Syncer) upload(ctx context.Context, request *tagging.BatchTaggingRequest) (*tagging.BatchResponse, error) {
	token, err := s.client.GetBearerToken(ctx, s.controller.URL, s.controller.ClientID, s.controller.ClientSecret)
	if err != nil {
		return nil, err
	}
	return s.client.Upload(ctx, s.controller.URL, token, request)
}

func (s *Syncer) finish(outcome Outcome) Outcome {
	s.lastOutcome.Store(int32(outcome))
	metrics.TaggerSyncCyclesTotal.WithLabelValues(outcome.String()).Inc()
	return outcome
}

// LastOutcome returns the outcome of the last attempted cycle, false before the first one.
// Cycles skipped by the interval gate are not attempts.
func (s *Syncer) LastOutcome() (Outcome, bool) {
	v := s.lastOutcome.Load()
	if v == noOutcome {
		return 0, false
	}
	return Outcome(v), true
}

func (s *Syncer) GetName() string {
	return syncerIndicatorName
}

// Health implements health.Indicator.
func (s *Syncer) Health(ctx context.Context) string {
	outcome, ok := s.LastOutcome()
	if !ok {
		return health.Initializing
	}
	switch outcome {
	case Completed:
		return health.Healthy
	case SkippedDisabled:
		return health.StandBy
	default:
		return health.Abnormal
	}
}

var _ health.Indicator = (*Syncer)(nil)
