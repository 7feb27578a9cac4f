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

package logger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zilliztech/cloudtagger/common/werr"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level    string
		expected zap.AtomicLevel
	}{
		{"debug", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"info", zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"warn", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"error", zap.NewAtomicLevelAt(zap.ErrorLevel)},
		{"invalid", zap.NewAtomicLevelAt(zap.WarnLevel)}, // falls back to the default logger
	}

	for _, test := range tests {
		logger := Ctx(WithLevel(context.Background(), test.level))
		assert.True(t, logger.Core().Enabled(test.expected.Level()), fmt.Sprintf("level:%s should enable:%v", test.level, test.expected.Level()))
	}
}

func TestLoggerMethods(t *testing.T) {
	logger := Ctx(WithLevel(context.Background(), "debug"))

	assert.NotPanics(t, func() {
		logger.Debug("debug message", zap.String("key", "value"))
		logger.Info("info message", zap.String("key", "value"))
		logger.Warn("warn message", zap.String("key", "value"))
		logger.Error("error message", zap.Error(werr.ErrCommunication))
	})
}

func TestLoggerMethodsWithContext(t *testing.T) {
	logger := Ctx(WithLevel(context.Background(), "info"))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
	assert.True(t, logger.Core().Enabled(zap.ErrorLevel))

	assert.NotNil(t, Ctx(nil)) //nolint:staticcheck
}

func TestWithLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	Ctx(ctx).Info("observed", zap.String("instance", "vm1"))
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "observed", logs.All()[0].Message)
	assert.Equal(t, "vm1", logs.All()[0].ContextMap()["instance"])
}

func TestSetLevel(t *testing.T) {
	original := GetLevel()
	defer func() { _ = SetLevel(original) }()

	assert.NoError(t, SetLevel("error"))
	assert.Equal(t, "error", GetLevel())
	assert.NoError(t, SetLevel("DEBUG"))
	assert.Equal(t, "debug", GetLevel())

	err := SetLevel("verbose")
	assert.True(t, werr.ErrConfigError.Is(err))
	assert.Equal(t, "debug", GetLevel())
}
