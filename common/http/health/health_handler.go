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

package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/zilliztech/cloudtagger/common/logger"
)

const (
	Initializing = "Initializing"
	Healthy      = "Healthy"
	Abnormal     = "Abnormal"
	StandBy      = "StandBy"
	Stopping     = "Stopping"
)

const (
	// ContentTypeHeader is the health check request type header.
	ContentTypeHeader = "Content-Type"
	// ContentTypeText is the health check request type text.
	ContentTypeText = "text/plain"
	// ContentTypeJSON is another health check request type text, which response contains more info.
	ContentTypeJSON = "application/json"
)

type Indicator interface {
	GetName() string
	Health(ctx context.Context) string
}

type IndicatorState struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type HealthResponse struct {
	State  string            `json:"state"`
	Detail []*IndicatorState `json:"detail"`
}

type HealthHandler struct {
	indicatorLock sync.RWMutex
	indicators    []Indicator

	// unregister role when call stop by restful api
	unregisterLock    sync.RWMutex
	unregisteredRoles map[string]struct{}
}

// Register adds an indicator to the handler. An indicator already registered under the
// same name is replaced.
func (handler *HealthHandler) Register(in Indicator) {
	handler.indicatorLock.Lock()
	defer handler.indicatorLock.Unlock()
	replaced := false
	for i, existing := range handler.indicators {
		if existing.GetName() == in.GetName() {
			handler.indicators[i] = in
			replaced = true
			break
		}
	}
	if !replaced {
		handler.indicators = append(handler.indicators, in)
	}

	handler.unregisterLock.Lock()
	defer handler.unregisterLock.Unlock()
	delete(handler.unregisteredRoles, in.GetName())
}

// UnRegister excludes the named indicator from later checks.
func (handler *HealthHandler) UnRegister(role string) {
	handler.unregisterLock.Lock()
	defer handler.unregisterLock.Unlock()
	if handler.unregisteredRoles == nil {
		handler.unregisteredRoles = make(map[string]struct{})
	}
	handler.unregisteredRoles[role] = struct{}{}
}

func (handler *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := &HealthResponse{
		State: "OK",
	}

	handler.indicatorLock.RLock()
	indicators := append([]Indicator(nil), handler.indicators...)
	handler.indicatorLock.RUnlock()

	unhealthyComponent := make([]string, 0)
	checked := 0
	ctx := r.Context()
	for _, in := range indicators {
		handler.unregisterLock.RLock()
		_, unregistered := handler.unregisteredRoles[in.GetName()]
		handler.unregisterLock.RUnlock()
		if unregistered {
			continue
		}
		checked++
		code := in.Health(ctx)
		resp.Detail = append(resp.Detail, &IndicatorState{
			Name: in.GetName(),
			Code: code,
		})

		if code != Healthy && code != StandBy {
			unhealthyComponent = append(unhealthyComponent, in.GetName())
		}
	}

	if len(unhealthyComponent) > 0 {
		resp.State = fmt.Sprintf("Not all components are healthy, %d/%d", checked-len(unhealthyComponent), checked)
		logger.Ctx(ctx).Warn("check health failed", zap.Strings("UnhealthyComponent", unhealthyComponent))
	}

	// for compatibility
	if r.Header.Get(ContentTypeHeader) != ContentTypeJSON {
		writeText(ctx, w, resp)
		return
	}

	writeJSON(ctx, w, resp)
}

func statusCode(resp *HealthResponse) int {
	if resp.State == "OK" {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func writeJSON(ctx context.Context, w http.ResponseWriter, resp *HealthResponse) {
	w.Header().Set(ContentTypeHeader, ContentTypeJSON)
	w.WriteHeader(statusCode(resp))
	bs, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(resp)
	if err != nil {
		logger.Ctx(ctx).Warn("failed to send response", zap.Error(err))
		return
	}
	_, _ = w.Write(bs)
}

func writeText(ctx context.Context, w http.ResponseWriter, resp *HealthResponse) {
	w.Header().Set(ContentTypeHeader, ContentTypeText)
	w.WriteHeader(statusCode(resp))
	_, err := fmt.Fprint(w, resp.State)
	if err != nil {
		logger.Ctx(ctx).Warn("failed to send response",
			zap.Error(err))
	}
}

var _ http.Handler = (*HealthHandler)(nil)

var defaultHandler = HealthHandler{}

func Handler() *HealthHandler {
	return &defaultHandler
}
