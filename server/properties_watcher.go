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
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/zilliztech/cloudtagger/common/config"
	"github.com/zilliztech/cloudtagger/common/logger"
)

// PropertiesWatcher re-applies a node properties file to NodeProperties whenever the
// file is written, created or renamed into place.
type PropertiesWatcher struct {
	path    string
	props   *config.NodeProperties
	watcher *fsnotify.Watcher

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

func NewPropertiesWatcher(path string, props *config.NodeProperties) (*PropertiesWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create properties watcher")
	}
	return &PropertiesWatcher{
		path:    filepath.Clean(path),
		props:   props,
		watcher: w,
		closeCh: make(chan struct{}),
	}, nil
}

// Start loads the file once and then follows changes until ctx is done or Close is called.
// The parent directory is watched so that editors replacing the file are noticed.
func (w *PropertiesWatcher) Start(ctx context.Context) error {
	if err := w.props.LoadFile(w.path); err != nil {
		logger.Ctx(ctx).Warn("initial node properties load failed", zap.String("path", w.path), zap.Error(err))
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, "failed to watch %s", filepath.Dir(w.path))
	}
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *PropertiesWatcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.closeCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := w.props.LoadFile(w.path); err != nil {
				logger.Ctx(ctx).Warn("failed to apply node properties", zap.String("path", w.path), zap.Error(err))
				continue
			}
			logger.Ctx(ctx).Debug("node properties reloaded", zap.String("path", w.path), zap.Any("properties", w.props.Snapshot()))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Ctx(ctx).Warn("node properties watcher error", zap.String("path", w.path), zap.Error(err))
		}
	}
}

func (w *PropertiesWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
