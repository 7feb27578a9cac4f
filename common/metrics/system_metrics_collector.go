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
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zilliztech/cloudtagger/common/hardware"
)

// System metrics of the host the tagger runs on. node_id is a regular label whose value
// comes from the NodeID package variable.
var (
	TaggerSystemRegisterOnce sync.Once

	TaggerSystemCPUUsage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: taggerNamespace,
		Subsystem: systemSubsystem,
		Name:      "cpu_usage",
		Help:      "Current CPU usage percentage",
	}, []string{"node_id"})
	TaggerSystemCPUNum = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: taggerNamespace,
		Subsystem: systemSubsystem,
		Name:      "cpu_num",
		Help:      "Number of CPU cores available",
	}, []string{"node_id"})
	TaggerSystemMemoryTotalBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: taggerNamespace,
		Subsystem: systemSubsystem,
		Name:      "memory_total_bytes",
		Help:      "Total system memory in bytes",
	}, []string{"node_id"})
	TaggerSystemMemoryUsedBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: taggerNamespace,
		Subsystem: systemSubsystem,
		Name:      "memory_used_bytes",
		Help:      "Used system memory in bytes",
	}, []string{"node_id"})
	TaggerSystemDiskUsedBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: taggerNamespace,
		Subsystem: systemSubsystem,
		Name:      "disk_used_bytes",
		Help:      "Used disk space in bytes",
	}, []string{"node_id", "path"})
	TaggerSystemDiskTotalBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: taggerNamespace,
		Subsystem: systemSubsystem,
		Name:      "disk_total_bytes",
		Help:      "Total disk space in bytes",
	}, []string{"node_id", "path"})
)

// RegisterSystemMetrics registers all system metrics with the given registerer.
func RegisterSystemMetrics(registerer prometheus.Registerer) {
	TaggerSystemRegisterOnce.Do(func() {
		registerer.MustRegister(TaggerSystemCPUUsage)
		registerer.MustRegister(TaggerSystemCPUNum)
		registerer.MustRegister(TaggerSystemMemoryTotalBytes)
		registerer.MustRegister(TaggerSystemMemoryUsedBytes)
		registerer.MustRegister(TaggerSystemDiskUsedBytes)
		registerer.MustRegister(TaggerSystemDiskTotalBytes)
	})
}

// StartSystemMetricsCollector periodically samples the host until ctx is done. diskPath
// may be empty to skip disk sampling.
func StartSystemMetricsCollector(ctx context.Context, diskPath string, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Collect once immediately
		collectSystemMetrics(diskPath)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collectSystemMetrics(diskPath)
			}
		}
	}()
}

func collectSystemMetrics(diskPath string) {
	TaggerSystemCPUUsage.WithLabelValues(NodeID).Set(hardware.GetCPUUsage())
	TaggerSystemCPUNum.WithLabelValues(NodeID).Set(float64(hardware.GetCPUNum()))

	if total, used, err := hardware.GetMemory(); err == nil {
		TaggerSystemMemoryTotalBytes.WithLabelValues(NodeID).Set(float64(total))
		TaggerSystemMemoryUsedBytes.WithLabelValues(NodeID).Set(float64(used))
	}

	if diskPath != "" {
		usedGB, totalGB, err := hardware.GetDiskUsage(diskPath)
		if err == nil {
			TaggerSystemDiskTotalBytes.WithLabelValues(NodeID, diskPath).Set(totalGB * 1e9)
			TaggerSystemDiskUsedBytes.WithLabelValues(NodeID, diskPath).Set(usedGB * 1e9)
		}
	}
}
