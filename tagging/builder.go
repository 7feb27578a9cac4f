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

package tagging

import (
	"os"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/zilliztech/cloudtagger/common/config"
	"github.com/zilliztech/cloudtagger/common/gcp"
)

const (
	TagPrefix      = "GCP|"
	LabelTagPrefix = TagPrefix + "Label|"
)

// Fixed instance tags, in emission order.
const (
	IDTag                  = TagPrefix + "id"
	NameTag                = TagPrefix + "name"
	DescriptionTag         = TagPrefix + "description"
	ZoneTag                = TagPrefix + "zone"
	MachineTypeTag         = TagPrefix + "machineType"
	StatusTag              = TagPrefix + "status"
	StatusMessageTag       = TagPrefix + "statusMessage"
	SelfLinkTag            = TagPrefix + "selfLink"
	CPUPlatformTag         = TagPrefix + "cpuPlatform"
	ReservationAffinityTag = TagPrefix + "reservationAffinity"
)

// NodeIdentity is the local node as known to the controller.
type NodeIdentity struct {
	Name string
	ID   int64
}

// NodeIdentityFromConfig takes the node from configuration, the host name stands in for a
// missing node name.
func NodeIdentityFromConfig(cfg *config.TaggingConfig) NodeIdentity {
	name := cfg.NodeName
	if len(name) == 0 {
		if hostname, err := os.Hostname(); err == nil {
			name = hostname
		}
	}
	return NodeIdentity{Name: name, ID: cfg.NodeID}
}

// InstanceTags maps the instance fields and labels to tags. Labels follow the fixed
// fields sorted by key.
func InstanceTags(instance *gcp.InstanceDescription) []TagEntry {
	tags := make([]TagEntry, 0, 10+len(instance.Labels))
	tags = append(tags,
		TagEntry{Name: IDTag, Value: strconv.FormatUint(instance.ID, 10)},
		TagEntry{Name: NameTag, Value: instance.Name},
		TagEntry{Name: DescriptionTag, Value: instance.Description},
		TagEntry{Name: ZoneTag, Value: instance.Zone},
		TagEntry{Name: MachineTypeTag, Value: instance.MachineType},
		TagEntry{Name: StatusTag, Value: instance.Status},
		TagEntry{Name: StatusMessageTag, Value: instance.StatusMessage},
		TagEntry{Name: SelfLinkTag, Value: instance.SelfLink},
		TagEntry{Name: CPUPlatformTag, Value: instance.CPUPlatform},
		TagEntry{Name: ReservationAffinityTag, Value: instance.ReservationAffinity},
	)
	keys := lo.Keys(instance.Labels)
	sort.Strings(keys)
	for _, key := range keys {
		tags = append(tags, TagEntry{Name: LabelTagPrefix + key, Value: instance.Labels[key]})
	}
	return tags
}

// Build returns the request tagging the local node with the instance description.
func Build(instance *gcp.InstanceDescription, node NodeIdentity) *BatchTaggingRequest {
	req, err := NewBatchTaggingRequest(Node)
	if err != nil {
		// Node always has a mapping
		panic(err)
	}
	req.AddEntity(node.Name, node.ID, InstanceTags(instance))
	return req
}
