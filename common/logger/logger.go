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
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zilliztech/cloudtagger/common/config"
	"github.com/zilliztech/cloudtagger/common/werr"
)

type ctxKey string

const (
	loggerCtxKey   ctxKey = "__Logger__"
	logLevelCtxKey ctxKey = "__LogLevel__"
)

var (
	_globalLevelLogger sync.Map
	_globalLogger      atomic.Value
	_globalLevel       = zap.NewAtomicLevelAt(zap.InfoLevel)
	initLogOnce        sync.Once
)

func init() {
	levels := []string{
		"debug", "info", "warn", "error",
	}
	for _, level := range levels {
		l, err := parseLevel(level)
		if err != nil {
			continue
		}
		levelLogger, err := newLogger("text", zap.NewAtomicLevelAt(l))
		if err != nil {
			continue
		}
		_globalLevelLogger.Store(level, levelLogger)
	}
}

// InitLogger installs the process logger. Only the first call has an effect.
func InitLogger(cfg *config.Configuration) {
	initLogOnce.Do(func() {
		logLevel := cfg.Log.Level
		if len(logLevel) == 0 {
			logLevel = "info"
		}
		if err := SetLevel(logLevel); err != nil {
			_ = SetLevel("info")
		}
		l, err := newLogger(cfg.Log.Format, _globalLevel)
		if err != nil {
			v, _ := _globalLevelLogger.Load("info")
			_globalLogger.Store(v)
			return
		}
		_globalLogger.Store(l)
	})
}

// SetLevel changes the level of the process logger at runtime.
func SetLevel(level string) error {
	l, err := parseLevel(level)
	if err != nil {
		return err
	}
	_globalLevel.SetLevel(l)
	return nil
}

// GetLevel returns the current level of the process logger.
func GetLevel() string {
	return _globalLevel.Level().String()
}

// WithLogger returns a context whose Ctx lookups yield l.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, l)
}

// WithLevel returns a context whose Ctx lookups yield the logger of the given level.
func WithLevel(ctx context.Context, level string) context.Context {
	return context.WithValue(ctx, logLevelCtxKey, level)
}

func debugLogger() *zap.Logger {
	v, _ := _globalLevelLogger.Load("debug")
	return v.(*zap.Logger)
}

func warnLogger() *zap.Logger {
	v, _ := _globalLevelLogger.Load("warn")
	return v.(*zap.Logger)
}

func Ctx(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return debugLogger()
	}
	if l, ok := ctx.Value(loggerCtxKey).(*zap.Logger); ok && l != nil {
		return l
	}
	if level, ok := ctx.Value(logLevelCtxKey).(string); ok {
		if l, ok := _globalLevelLogger.Load(level); ok {
			return l.(*zap.Logger)
		}
	}
	l := _globalLogger.Load()
	if l != nil {
		return l.(*zap.Logger)
	}
	return warnLogger()
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel, nil
	case "info":
		return zap.InfoLevel, nil
	case "warn":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, werr.ErrConfigError.WithCauseErrMsg(fmt.Sprintf("invalid log level: %s", level))
	}
}

func newLogger(format string, level zap.AtomicLevel) (*zap.Logger, error) {
	// Use development config for all levels to get console-friendly output
	config := zap.NewDevelopmentConfig()
	config.Level = level
	config.Development = false

	if format == "json" {
		config.Encoding = "json"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.EncodeTime = customTimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	return config.Build()
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006/01/02 15:04:05.000 -07:00")) // custom time format
}
