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

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	taggerNamespace = "cloudtagger"
	syncSubsystem   = "sync"
	controllerRole  = "controller"
	systemSubsystem = "system"
)

// Cycle outcome label values.
const (
	OutcomeSkippedDisabled    = "skipped_disabled"
	OutcomeSkippedTooSoon     = "skipped_too_soon"
	OutcomeAbortedFetchError  = "aborted_fetch_error"
	OutcomeAbortedUploadError = "aborted_upload_error"
	OutcomeCompleted          = "completed"
)

// Controller endpoint and result label values.
const (
	EndpointToken  = "token"
	EndpointUpload = "upload"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	TaggerRegisterOnce sync.Once

	// NodeID labels the per node metrics.
	NodeID = "0"

	TaggerSyncCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: taggerNamespace,
			Subsystem: syncSubsystem,
			Name:      "cycles_total",
			Help:      "Total number of sync cycles by outcome",
		},
		[]string{"outcome"},
	)
	TaggerSyncCycleLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: taggerNamespace,
			Subsystem: syncSubsystem,
			Name:      "cycle_latency_seconds",
			Help:      "Latency of sync cycles that passed both gates",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)
	TaggerSyncTagsUploaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: taggerNamespace,
			Subsystem: syncSubsystem,
			Name:      "tags_uploaded",
			Help:      "Number of tags sent by the last completed cycle",
		},
	)
	// TaggerSyncEnabled mirrors the "Agent|Tagging|Enabled" metric of the node.
	TaggerSyncEnabled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: taggerNamespace,
			Subsystem: syncSubsystem,
			Name:      "enabled",
			Help:      "Whether tag synchronization is enabled (1) or not (0)",
		},
	)
	TaggerSyncLastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: taggerNamespace,
			Subsystem: syncSubsystem,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last completed cycle",
		},
	)
	TaggerControllerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: taggerNamespace,
			Subsystem: controllerRole,
			Name:      "requests_total",
			Help:      "Total number of controller requests by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)
	TaggerControllerRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: taggerNamespace,
			Subsystem: controllerRole,
			Name:      "request_latency_seconds",
			Help:      "Latency of controller requests",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"endpoint"},
	)
	TaggerPartialFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: taggerNamespace,
			Subsystem: controllerRole,
			Name:      "partial_failures_total",
			Help:      "Total number of batch uploads with rejected entities",
		},
	)
)

// RegisterTaggerWithRegisterer registers the sync and controller metrics once.
func RegisterTaggerWithRegisterer(registerer prometheus.Registerer) {
	TaggerRegisterOnce.Do(func() {
		// sync cycles
		registerer.MustRegister(TaggerSyncCyclesTotal)
		registerer.MustRegister(TaggerSyncCycleLatency)
		registerer.MustRegister(TaggerSyncTagsUploaded)
		registerer.MustRegister(TaggerSyncEnabled)
		registerer.MustRegister(TaggerSyncLastSuccessTimestamp)
		// controller exchanges
		registerer.MustRegister(TaggerControllerRequestsTotal)
		registerer.MustRegister(TaggerControllerRequestLatency)
		registerer.MustRegister(TaggerPartialFailuresTotal)
	})
}

// RegisterTagger registers the tagger metrics with a specific registry.
func RegisterTagger(registry *prometheus.Registry) {
	RegisterTaggerWithRegisterer(registry)
}

// ResultLabel maps an error to a result label value.
func ResultLabel(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
