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

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/zilliztech/cloudtagger/common/config"
	"github.com/zilliztech/cloudtagger/common/controller"
	"github.com/zilliztech/cloudtagger/common/gcp"
	"github.com/zilliztech/cloudtagger/common/http/health"
	"github.com/zilliztech/cloudtagger/common/logger"
	"github.com/zilliztech/cloudtagger/common/metrics"
	"github.com/zilliztech/cloudtagger/common/version"
	"github.com/zilliztech/cloudtagger/common/werr"
	"github.com/zilliztech/cloudtagger/tagging"
)

type serviceOptions struct {
	clock clockwork.Clock
	props *config.NodeProperties
}

type ServiceOption func(*serviceOptions)

// WithClock drives the tick loop and the interval gate from clock.
func WithClock(clock clockwork.Clock) ServiceOption {
	return func(o *serviceOptions) {
		o.clock = clock
	}
}

// WithNodeProperties shares already created node properties with the service.
func WithNodeProperties(props *config.NodeProperties) ServiceOption {
	return func(o *serviceOptions) {
		o.props = props
	}
}

// Service hosts the tagging syncer: it resolves where it runs, owns the credentials and
// drives sync cycles from a ticker until stopped.
type Service struct {
	cfg      *config.Configuration
	props    *config.NodeProperties
	identity gcp.Identity
	syncer   *Syncer
	watcher  *PropertiesWatcher
	clock    clockwork.Clock

	ctx      context.Context
	cancel   context.CancelFunc
	runMu    sync.Mutex
	stopOnce sync.Once
}

// NewService validates the configuration, resolves the instance identity from the metadata
// server and loads the service account credentials. A failure of any of these is fatal for
// the host, see werr.IsFatalStartupErr.
func NewService(ctx context.Context, cfg *config.Configuration, opts ...ServiceOption) (*Service, error) {
	o := &serviceOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if o.props == nil {
		o.props = config.NewNodeProperties(&cfg.Tagging)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gcpTimeout := cfg.Gcp.RequestTimeout.Duration.Duration()
	identity, err := gcp.NewMetadataFetcher(cfg.Gcp.MetadataHost, gcpTimeout).ResolveIdentity(ctx)
	if err != nil {
		return nil, err
	}
	credentials, err := gcp.NewCredentialProvider(ctx, cfg.Tagging.GcpServiceAccountKeyFile, cfg.Gcp.Scopes,
		gcp.WithTokenCache(cfg.Gcp.CacheToken))
	if err != nil {
		return nil, err
	}
	instances, err := gcp.NewInstanceFetcher(ctx, cfg.Gcp.ComputeEndpoint, gcpTimeout)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		props:    o.props,
		identity: identity,
		clock:    o.clock,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.syncer = NewSyncer(
		identity,
		tagging.NodeIdentityFromConfig(&cfg.Tagging),
		ControllerSettings{
			URL:          cfg.ControllerBaseURL(),
			ClientID:     cfg.Tagging.ControllerAPIClient,
			ClientSecret: cfg.Tagging.ControllerAPISecret,
		},
		s.props,
		instances,
		credentials,
		controller.NewClient(cfg.Controller.RequestTimeout.Duration.Duration()),
		s.clock,
	)
	if len(cfg.Tagging.PropertiesFile) > 0 {
		s.watcher, err = NewPropertiesWatcher(cfg.Tagging.PropertiesFile, s.props)
		if err != nil {
			return nil, werr.ErrConfigError.WithCauseErr(err)
		}
	}
	s.props.AddListener(s.onPropertyChange)
	health.Handler().Register(s.syncer)

	logger.Ctx(ctx).Info("tagging service created",
		zap.String("project", identity.ProjectID),
		zap.String("zone", identity.Zone),
		zap.String("instance", identity.InstanceName),
		zap.String("controller", cfg.ControllerBaseURL()))
	return s, nil
}

// Run invokes a sync cycle immediately and then on every tick until ctx is done or Stop is
// called. Cycles never overlap.
func (s *Service) Run(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.ctx.Err() != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if s.watcher != nil {
		if err := s.watcher.Start(runCtx); err != nil {
			return err
		}
	}
	s.infoEvent(runCtx, "Tagging service started")

	ticker := s.clock.NewTicker(s.cfg.Tagging.TickInterval.Duration.Duration())
	defer ticker.Stop()
	s.tick(runCtx)
	for {
		select {
		case <-runCtx.Done():
			logger.Ctx(ctx).Info("tagging service loop exit")
			return nil
		case <-ticker.Chan():
			s.tick(runCtx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	metrics.TaggerSyncEnabled.Set(lo.Ternary(s.props.IsEnabled(), 1.0, 0.0))
	outcome, err := s.syncer.RunCycle(ctx)
	logger.Ctx(ctx).Debug("sync cycle finished", zap.String("outcome", outcome.String()), zap.Error(err))
}

func (s *Service) onPropertyChange(name, value string) {
	if name != config.EnabledProperty {
		return
	}
	s.infoEvent(s.ctx, "Tagging enablement changed", zap.String(name, value))
}

// infoEvent logs a lifecycle event together with the static agent metadata.
func (s *Service) infoEvent(ctx context.Context, msg string, fields ...zap.Field) {
	for key, value := range version.Info() {
		fields = append(fields, zap.String(key, value))
	}
	logger.Ctx(ctx).Info(msg, fields...)
}

// Properties returns the node properties consulted by every cycle.
func (s *Service) Properties() *config.NodeProperties {
	return s.props
}

func (s *Service) Identity() gcp.Identity {
	return s.identity
}

func (s *Service) Syncer() *Syncer {
	return s.syncer
}

// Stop ends the tick loop and waits for a running cycle to finish.
func (s *Service) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.cancel()
		s.runMu.Lock()
		defer s.runMu.Unlock()
		if s.watcher != nil {
			err = s.watcher.Close()
		}
		health.Handler().UnRegister(s.syncer.GetName())
		logger.Ctx(context.Background()).Info("tagging service stopped")
	})
	return err
}
