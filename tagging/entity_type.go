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
	"fmt"

	"github.com/zilliztech/cloudtagger/common/werr"
)

// EntityType is the kind of controller entity a batch request tags.
type EntityType int

const (
	Server EntityType = iota
	Application
	Tier
	Node
	Machine
	BusinessTransaction
	SyntheticPage
)

var entityTypeNames = map[EntityType]string{
	Server:              "Server",
	Application:         "Application",
	Tier:                "Tier",
	Node:                "Node",
	Machine:             "Machine",
	BusinessTransaction: "BusinessTransaction",
	SyntheticPage:       "SyntheticPage",
}

// apiEntityTypes holds the wire names accepted by the batch tagging endpoint. Machine has
// no entry.
var apiEntityTypes = map[EntityType]string{
	Server:              "SIM_MACHINE",
	Application:         "APPLICATION",
	Tier:                "APPLICATION_COMPONENT",
	Node:                "APPLICATION_COMPONENT_NODE",
	BusinessTransaction: "BUSINESS_TRANSACTION",
	SyntheticPage:       "BASE_PAGE",
}

func (t EntityType) String() string {
	if name, ok := entityTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EntityType(%d)", int(t))
}

// ConvertToAPIEntityType returns the wire name of t.
func (t EntityType) ConvertToAPIEntityType() (string, error) {
	name, ok := apiEntityTypes[t]
	if !ok {
		return "", werr.ErrInvalidEntityType.WithCauseErrMsg(fmt.Sprintf("entity type %s has no api mapping", t))
	}
	return name, nil
}

// MustConvertToAPIEntityType is like ConvertToAPIEntityType but panics for unmapped types.
func (t EntityType) MustConvertToAPIEntityType() string {
	name, err := t.ConvertToAPIEntityType()
	if err != nil {
		panic(err)
	}
	return name
}
