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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/zilliztech/cloudtagger/common/config"
	"github.com/zilliztech/cloudtagger/common/http"
	"github.com/zilliztech/cloudtagger/common/logger"
	"github.com/zilliztech/cloudtagger/common/metrics"
	"github.com/zilliztech/cloudtagger/common/tracer"
	"github.com/zilliztech/cloudtagger/common/version"
	"github.com/zilliztech/cloudtagger/common/werr"
	"github.com/zilliztech/cloudtagger/server"
)

const serviceName = "cloudtagger"

func main() {
	var (
		configFile     = flag.String("config", "/etc/cloudtagger/cloudtagger.yaml", "Configuration file path")
		propertiesFile = flag.String("properties", "", "Node properties file, watched for changes")
		showVersion    = flag.Bool("version", false, "Print version information and exit")
		diskPath       = flag.String("disk-path", "/", "Filesystem path reported by the disk usage metrics")
	)
	flag.Parse()

	if *showVersion {
		for key, value := range version.Info() {
			fmt.Printf("%s: %s\n", key, value)
		}
		return
	}

	cfg, err := config.NewConfiguration(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", *configFile, err)
	}
	if *propertiesFile != "" {
		cfg.Tagging.PropertiesFile = *propertiesFile
	}

	logger.InitLogger(cfg)
	ctx := context.Background()
	if err := tracer.InitTracer(cfg, serviceName, cfg.Tagging.NodeID); err != nil {
		logger.Ctx(ctx).Warn("tracer init failed, spans are dropped", zap.Error(err))
	}

	metrics.NodeID = strconv.FormatInt(cfg.Tagging.NodeID, 10)
	metrics.RegisterTaggerWithRegisterer(prometheus.DefaultRegisterer)
	metrics.RegisterSystemMetrics(prometheus.DefaultRegisterer)
	collectorCtx, stopCollector := context.WithCancel(ctx)
	defer stopCollector()
	metrics.StartSystemMetricsCollector(collectorCtx, *diskPath, 30*time.Second)

	props := config.NewNodeProperties(&cfg.Tagging)
	srv, err := server.NewService(ctx, cfg, server.WithNodeProperties(props))
	if err != nil {
		if werr.IsFatalStartupErr(err) {
			logger.Ctx(ctx).Error("tagging service cannot start", zap.Error(err))
		} else {
			logger.Ctx(ctx).Error("failed to create tagging service", zap.Error(err))
		}
		os.Exit(1)
	}
	if err := http.Start(cfg, props); err != nil {
		logger.Ctx(ctx).Error("failed to start http server", zap.Error(err))
		os.Exit(1)
	}

	logger.Ctx(ctx).Info("Starting cloudtagger",
		zap.String("version", version.Version),
		zap.String("config", *configFile),
		zap.String("properties", cfg.Tagging.PropertiesFile),
		zap.Bool("enabled", props.IsEnabled()),
		zap.Int("syncFrequencyMinutes", props.SyncFrequencyMinutes()))

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(ctx); err != nil {
			errChan <- fmt.Errorf("service run failed: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case err := <-errChan:
		logger.Ctx(ctx).Error("service error", zap.Error(err))
		exitCode = 1
	case sig := <-sigChan:
		logger.Ctx(ctx).Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	if err := srv.Stop(); err != nil {
		logger.Ctx(ctx).Warn("error during shutdown", zap.Error(err))
		exitCode = 1
	}
	if err := http.Stop(); err != nil {
		logger.Ctx(ctx).Warn("error stopping http server", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := tracer.CloseTracerProvider(shutdownCtx); err != nil {
		logger.Ctx(ctx).Warn("error closing tracer provider", zap.Error(err))
	}
	logger.Ctx(ctx).Info("cloudtagger stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
