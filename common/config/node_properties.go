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

package config

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/atomic"
	"gopkg.in/yaml.v3"

	"github.com/zilliztech/cloudtagger/common/werr"
)

// Dynamic node property names.
const (
	EnabledProperty              = "enabled"
	SyncFrequencyMinutesProperty = "sync-frequency-minutes"
)

// PropertyChangeListener is notified after a node property changed value.
type PropertyChangeListener func(name, value string)

// NodeProperties holds the settings that may change while the service runs. Every
// field is a single atomic cell, readers never take a lock.
type NodeProperties struct {
	enabled              atomic.Bool
	syncFrequencyMinutes atomic.Int32

	listenerMu sync.RWMutex
	listeners  []PropertyChangeListener
}

func NewNodeProperties(cfg *TaggingConfig) *NodeProperties {
	p := &NodeProperties{}
	p.enabled.Store(cfg.Enabled)
	p.syncFrequencyMinutes.Store(int32(cfg.SyncFrequencyMinutes))
	return p
}

func (p *NodeProperties) IsEnabled() bool {
	return p.enabled.Load()
}

func (p *NodeProperties) SyncFrequencyMinutes() int {
	return int(p.syncFrequencyMinutes.Load())
}

// AddListener registers l for subsequent property changes.
func (p *NodeProperties) AddListener(l PropertyChangeListener) {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()
	p.listeners = append(p.listeners, l)
}

// UpdateProperty applies a property-change notification. Unknown names and unparsable
// values leave the properties untouched.
func (p *NodeProperties) UpdateProperty(name, value string) error {
	v, err := parseProperty(name, value)
	if err != nil {
		return err
	}
	p.apply(v)
	return nil
}

// UpdateProperties applies values only if every entry is valid. On error nothing changes.
func (p *NodeProperties) UpdateProperties(values map[string]string) error {
	names := lo.Keys(values)
	sort.Strings(names)
	parsed := make([]propertyValue, 0, len(names))
	errs := make([]error, 0)
	for _, name := range names {
		v, err := parseProperty(name, values[name])
		errs = append(errs, err)
		parsed = append(parsed, v)
	}
	if err := werr.Combine(errs...); err != nil {
		return err
	}
	for _, v := range parsed {
		p.apply(v)
	}
	return nil
}

type propertyValue struct {
	name    string
	raw     string
	enabled bool
	minutes int32
}

func parseProperty(name, value string) (propertyValue, error) {
	v := propertyValue{name: strings.TrimSpace(name), raw: strings.TrimSpace(value)}
	switch v.name {
	case EnabledProperty:
		b, err := strconv.ParseBool(v.raw)
		if err != nil {
			return v, werr.ErrConfigError.WithCauseErrMsg(fmt.Sprintf("invalid value %q for property %s", v.raw, v.name))
		}
		v.enabled = b
	case SyncFrequencyMinutesProperty:
		n, err := strconv.Atoi(v.raw)
		if err != nil || n < 0 || n > math.MaxInt32 {
			return v, werr.ErrConfigError.WithCauseErrMsg(fmt.Sprintf("invalid value %q for property %s", v.raw, v.name))
		}
		v.minutes = int32(n)
	default:
		return v, werr.ErrConfigError.WithCauseErrMsg(fmt.Sprintf("unknown node property: %s", v.name))
	}
	return v, nil
}

func (p *NodeProperties) apply(v propertyValue) {
	changed := false
	switch v.name {
	case EnabledProperty:
		changed = p.enabled.Swap(v.enabled) != v.enabled
	case SyncFrequencyMinutesProperty:
		changed = p.syncFrequencyMinutes.Swap(v.minutes) != v.minutes
	}
	if changed {
		p.notify(v.name, v.raw)
	}
}

// Snapshot returns the current values keyed by property name.
func (p *NodeProperties) Snapshot() map[string]string {
	return map[string]string{
		EnabledProperty:              strconv.FormatBool(p.IsEnabled()),
		SyncFrequencyMinutesProperty: strconv.Itoa(p.SyncFrequencyMinutes()),
	}
}

// LoadFile applies every property of a flat YAML file. All entries are attempted, the
// errors are combined.
func (p *NodeProperties) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return werr.ErrConfigError.WithCauseErr(err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return werr.ErrConfigError.WithCauseErr(err)
	}
	names := lo.Keys(values)
	sort.Strings(names)
	errs := make([]error, 0)
	for _, name := range names {
		errs = append(errs, p.UpdateProperty(name, values[name]))
	}
	return werr.Combine(errs...)
}

func (p *NodeProperties) notify(name, value string) {
	p.listenerMu.RLock()
	listeners := append([]PropertyChangeListener(nil), p.listeners...)
	p.listenerMu.RUnlock()
	for _, l := range listeners {
		l(name, value)
	}
}
