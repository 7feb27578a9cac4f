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

package http

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // automatically registers pprof handlers
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zilliztech/cloudtagger/common/config"
	"github.com/zilliztech/cloudtagger/common/http/health"
	"github.com/zilliztech/cloudtagger/common/logger"
)

const (
	DefaultListenPort = "9091"
	ListenPortEnvKey  = "METRICS_PORT"

	PprofEnableEnvKey = "PPROF_ENABLE"
)

var (
	serverMu      sync.Mutex
	metricsServer *http.ServeMux
	server        *http.Server
)

// Provide alias for native http package
// avoiding import alias when using http package

type (
	ResponseWriter = http.ResponseWriter
	Request        = http.Request
)

type Handler struct {
	Path        string
	HandlerFunc http.HandlerFunc
	Handler     http.Handler
}

func pprofEnabled(cfg *config.Configuration) bool {
	switch os.Getenv(PprofEnableEnvKey) {
	case "true":
		return true
	case "false":
		return false
	default:
		return cfg != nil && cfg.Http.Pprof
	}
}

func initMux(cfg *config.Configuration) {
	if metricsServer != nil {
		return
	}
	if pprofEnabled(cfg) {
		// 'net/http/pprof' will register pprof handler to DefaultServeMux by default
		metricsServer = http.DefaultServeMux
	} else {
		metricsServer = http.NewServeMux()
	}
}

func Register(h *Handler) {
	serverMu.Lock()
	defer serverMu.Unlock()
	initMux(nil)
	if h.HandlerFunc != nil {
		metricsServer.HandleFunc(h.Path, h.HandlerFunc)
		return
	}
	if h.Handler != nil {
		metricsServer.Handle(h.Path, h.Handler)
	}
}

func registerDefaults(props *config.NodeProperties) {
	// Register health check endpoint
	Register(&Handler{
		Path:    HealthRouterPath,
		Handler: health.Handler(),
	})

	// Register metrics endpoint
	Register(&Handler{
		Path:    MetricsRouterPath,
		Handler: promhttp.Handler(),
	})

	// Register log level endpoint
	Register(&Handler{
		Path:        LogLevelRouterPath,
		HandlerFunc: LogLevelHandler,
	})

	if props != nil {
		Register(&Handler{
			Path:    TaggingPropertiesRouterPath,
			Handler: NewPropertiesHandler(props),
		})
	}
}

// Start initializes and starts the HTTP server. It is a no-op when the server is disabled.
func Start(cfg *config.Configuration, props *config.NodeProperties) error {
	if !cfg.Http.Enabled {
		logger.Ctx(context.Background()).Info("HTTP server disabled")
		return nil
	}
	serverMu.Lock()
	initMux(cfg)
	serverMu.Unlock()

	registerDefaults(props)

	port := os.Getenv(ListenPortEnvKey)
	if port == "" {
		port = cfg.Http.Port
	}
	if port == "" {
		port = DefaultListenPort
	}

	addr := fmt.Sprintf(":%s", port)
	serverMu.Lock()
	server = &http.Server{
		Addr:         addr,
		Handler:      metricsServer,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	srv := server
	serverMu.Unlock()

	logger.Ctx(context.Background()).Info("Starting HTTP server",
		zap.String("addr", addr),
		zap.Bool("pprof_enabled", metricsServer == http.DefaultServeMux))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Ctx(context.Background()).Error("HTTP server failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func Stop() error {
	serverMu.Lock()
	srv := server
	server = nil
	serverMu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Ctx(ctx).Info("Stopping HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Ctx(ctx).Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}

	logger.Ctx(ctx).Info("HTTP server stopped successfully")
	return nil
}
