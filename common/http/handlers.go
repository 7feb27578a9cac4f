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
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/zilliztech/cloudtagger/common/config"
	"github.com/zilliztech/cloudtagger/common/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PropertiesHandler serves the dynamic node properties. GET returns them as JSON, PUT and
// POST apply the form values as one change. A single invalid value rejects the whole form.
type PropertiesHandler struct {
	props *config.NodeProperties
}

func NewPropertiesHandler(props *config.NodeProperties) *PropertiesHandler {
	return &PropertiesHandler{props: props}
}

func (h *PropertiesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut, http.MethodPost:
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updates := make(map[string]string, len(r.PostForm))
		for name, values := range r.PostForm {
			if len(values) > 0 {
				updates[name] = values[len(values)-1]
			}
		}
		if err := h.props.UpdateProperties(updates); err != nil {
			logger.Ctx(r.Context()).Warn("rejected node property update", zap.Error(err))
			writeError(w, http.StatusBadRequest, err)
			return
		}
		logger.Ctx(r.Context()).Info("node properties updated", zap.Any("properties", h.props.Snapshot()))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.props.Snapshot())
}

type logLevelResponse struct {
	Level string `json:"level"`
}

// LogLevelHandler reports the process log level on GET and changes it from the "level"
// form value on PUT and POST.
func LogLevelHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut, http.MethodPost:
		if err := logger.SetLevel(r.FormValue("level")); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		logger.Ctx(r.Context()).Info("log level changed", zap.String("level", logger.GetLevel()))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, &logLevelResponse{Level: logger.GetLevel()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	bs, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(bs)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
