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

package version

// Overridden at build time with
// -ldflags "-X github.com/zilliztech/cloudtagger/common/version.Version=1.2.0 -X ...BuildTime=..."
var (
	Version   = "0.0.0-dev"
	BuildTime = "unknown"
)

const (
	ServiceName = "Agent Tags Provider Service"
	Developer   = "Cloud Tagger maintainers"
	Repository  = "https://github.com/zilliztech/cloudtagger"
	DevNet      = ""
	Support     = "https://github.com/zilliztech/cloudtagger/issues"
)

// Info returns the plugin metadata attached to info events.
func Info() map[string]string {
	return map[string]string{
		"plugin-version":        "v" + Version,
		"plugin-name":           ServiceName,
		"plugin-buildTimestamp": BuildTime,
		"plugin-developer":      Developer,
		"plugin-github":         Repository,
		"plugin-devnet":         DevNet,
		"plugin-support":        Support,
	}
}
