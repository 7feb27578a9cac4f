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
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RequestSource is the source reported for every batch request.
const RequestSource = "API"

// TagEntry is a single tag, the name is namespaced by provider.
type TagEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Entity is a controller entity together with the tags to apply.
type Entity struct {
	Name string     `json:"name"`
	ID   int64      `json:"id"`
	Tags []TagEntry `json:"tags"`
}

// BatchTaggingRequest tags entities of one type in a single call.
type BatchTaggingRequest struct {
	EntityType string   `json:"entityType"`
	Source     string   `json:"source"`
	Entities   []Entity `json:"entities"`
}

// NewBatchTaggingRequest returns an empty request for entityType. Types without an API
// mapping are rejected with ErrInvalidEntityType.
func NewBatchTaggingRequest(entityType EntityType) (*BatchTaggingRequest, error) {
	apiType, err := entityType.ConvertToAPIEntityType()
	if err != nil {
		return nil, err
	}
	return &BatchTaggingRequest{
		EntityType: apiType,
		Source:     RequestSource,
		Entities:   make([]Entity, 0, 1),
	}, nil
}

// AddEntity appends an entity and its tags.
func (r *BatchTaggingRequest) AddEntity(name string, id int64, tags []TagEntry) {
	r.Entities = append(r.Entities, Entity{
		Name: name,
		ID:   id,
		Tags: tags,
	})
}

func (r *BatchTaggingRequest) TagCount() int {
	n := 0
	for _, e := range r.Entities {
		n += len(e.Tags)
	}
	return n
}

func (r *BatchTaggingRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func UnmarshalBatchTaggingRequest(data []byte) (*BatchTaggingRequest, error) {
	r := &BatchTaggingRequest{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}

// BatchStatus counts the entities of one outcome.
type BatchStatus struct {
	Count     int     `json:"count"`
	EntityIDs []int64 `json:"entityIds"`
}

// BatchResponse is the controller reply to a batch tagging request.
type BatchResponse struct {
	EntityType string      `json:"entityType"`
	Success    BatchStatus `json:"success"`
	Failure    BatchStatus `json:"failure"`
}

func UnmarshalBatchResponse(data []byte) (*BatchResponse, error) {
	r := &BatchResponse{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}

// HasFailures reports whether the controller rejected any entity.
func (r *BatchResponse) HasFailures() bool {
	return r.Failure.Count > 0 || len(r.Failure.EntityIDs) > 0
}
