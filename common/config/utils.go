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
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a duration parsed from YAML either as a Go duration string ("90s", "2m")
// or as a plain number interpreted in defaultUnit.
type Duration struct {
	duration    time.Duration
	defaultUnit time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var v interface{}
	if err := value.Decode(&v); err != nil {
		return err
	}

	if d.defaultUnit == 0 {
		d.defaultUnit = time.Millisecond
	}

	switch val := v.(type) {
	case int:
		d.duration = time.Duration(val) * d.defaultUnit
		return nil
	case int64:
		d.duration = time.Duration(val) * d.defaultUnit
		return nil
	case string:
		duration, err := parseDuration(val, d.defaultUnit)
		if err != nil {
			return err
		}
		d.duration = duration
		return nil
	default:
		return fmt.Errorf("invalid type for Duration: %T", v)
	}
}

// MarshalYAML writes the duration in Go duration format.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.duration.String(), nil
}

// Milliseconds returns the duration in milliseconds
func (d Duration) Milliseconds() int {
	return int(d.duration.Milliseconds())
}

// Seconds returns the duration in seconds
func (d Duration) Seconds() int {
	return int(d.duration.Seconds())
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return d.duration
}

// DurationSeconds represents a duration with default unit as seconds
type DurationSeconds struct {
	Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for DurationSeconds
func (d *DurationSeconds) UnmarshalYAML(value *yaml.Node) error {
	d.Duration.defaultUnit = time.Second
	return d.Duration.UnmarshalYAML(value)
}

// DurationMilliseconds represents a duration with default unit as milliseconds
type DurationMilliseconds struct {
	Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for DurationMilliseconds
func (d *DurationMilliseconds) UnmarshalYAML(value *yaml.Node) error {
	d.Duration.defaultUnit = time.Millisecond
	return d.Duration.UnmarshalYAML(value)
}

// NewDurationSecondsFromInt creates a DurationSeconds from an int value (seconds)
func NewDurationSecondsFromInt(seconds int) DurationSeconds {
	return DurationSeconds{
		Duration: Duration{
			duration:    time.Duration(seconds) * time.Second,
			defaultUnit: time.Second,
		},
	}
}

// NewDurationMillisecondsFromInt creates a DurationMilliseconds from an int value (milliseconds)
func NewDurationMillisecondsFromInt(milliseconds int) DurationMilliseconds {
	return DurationMilliseconds{
		Duration: Duration{
			duration:    time.Duration(milliseconds) * time.Millisecond,
			defaultUnit: time.Millisecond,
		},
	}
}

// parseDuration accepts plain numbers in defaultUnit, then falls back to time.ParseDuration.
func parseDuration(durationStr string, defaultUnit time.Duration) (time.Duration, error) {
	durationStr = strings.TrimSpace(durationStr)
	if durationStr == "" {
		return 0, nil
	}

	if value, err := strconv.ParseInt(durationStr, 10, 64); err == nil {
		return time.Duration(value) * defaultUnit, nil
	}

	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format '%s': %w", durationStr, err)
	}
	return duration, nil
}
