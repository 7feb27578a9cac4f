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

package gcp

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"

	"github.com/zilliztech/cloudtagger/common/logger"
	"github.com/zilliztech/cloudtagger/common/werr"
)

// DefaultComputeEndpoint is the public compute API base path.
const DefaultComputeEndpoint = "https://compute.googleapis.com/compute/v1/"

// ServiceAccount is an account attached to the instance.
type ServiceAccount struct {
	Email  string
	Scopes []string
}

// InstanceDescription is a snapshot of a compute instance taken by one sync cycle.
type InstanceDescription struct {
	ID                  uint64
	Name                string
	Description         string
	Zone                string
	MachineType         string
	Status              string
	StatusMessage       string
	SelfLink            string
	CPUPlatform         string
	ReservationAffinity string
	Labels              map[string]string

	CreationTimestamp  string
	CanIPForward       bool
	DeletionProtection bool
	Fingerprint        string
	Preemptible        bool
	AutomaticRestart   bool
	OnHostMaintenance  string
	NetworkTags        []string
	ServiceAccounts    []ServiceAccount
}

// InstanceFetcher describes instances through the compute API.
type InstanceFetcher struct {
	service *compute.Service
}

// NewInstanceFetcher builds a compute client against endpoint. Authorization is set per
// call from the caller's token, the client itself carries no credentials.
func NewInstanceFetcher(ctx context.Context, endpoint string, timeout time.Duration) (*InstanceFetcher, error) {
	if len(endpoint) == 0 {
		endpoint = DefaultComputeEndpoint
	}
	service, err := compute.NewService(ctx,
		option.WithEndpoint(endpoint),
		option.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, werr.ErrConfigError.WithCauseErr(errors.Wrap(err, "create compute client"))
	}
	return &InstanceFetcher{service: service}, nil
}

// FetchInstance describes one instance with the given bearer token. Any transport, status
// or decoding failure is reported as ErrInstanceFetch.
func (f *InstanceFetcher) FetchInstance(ctx context.Context, projectID, zone, instanceName, token string) (*InstanceDescription, error) {
	call := f.service.Instances.Get(projectID, zone, instanceName).Context(ctx)
	call.Header().Set("Authorization", "Bearer "+token)
	instance, err := call.Do()
	if err != nil {
		return nil, werr.ErrInstanceFetch.WithCauseErr(errors.Wrapf(err, "describe instance %s/%s/%s", projectID, zone, instanceName))
	}
	desc := newInstanceDescription(instance)
	logger.Ctx(ctx).Debug("instance described",
		zap.String("instance", desc.Name),
		zap.Uint64("id", desc.ID),
		zap.Int("labels", len(desc.Labels)))
	return desc, nil
}

func newInstanceDescription(instance *compute.Instance) *InstanceDescription {
	desc := &InstanceDescription{
		ID:                 instance.Id,
		Name:               instance.Name,
		Description:        instance.Description,
		Zone:               instance.Zone,
		MachineType:        instance.MachineType,
		Status:             instance.Status,
		StatusMessage:      instance.StatusMessage,
		SelfLink:           instance.SelfLink,
		CPUPlatform:        instance.CpuPlatform,
		Labels:             lo.Assign(instance.Labels),
		CreationTimestamp:  instance.CreationTimestamp,
		CanIPForward:       instance.CanIpForward,
		DeletionProtection: instance.DeletionProtection,
		Fingerprint:        instance.Fingerprint,
	}
	if instance.ReservationAffinity != nil {
		desc.ReservationAffinity = instance.ReservationAffinity.ConsumeReservationType
	}
	if s := instance.Scheduling; s != nil {
		desc.Preemptible = s.Preemptible
		desc.OnHostMaintenance = s.OnHostMaintenance
		desc.AutomaticRestart = s.AutomaticRestart == nil || *s.AutomaticRestart
	}
	if instance.Tags != nil {
		desc.NetworkTags = append([]string(nil), instance.Tags.Items...)
	}
	desc.ServiceAccounts = lo.Map(instance.ServiceAccounts, func(sa *compute.ServiceAccount, _ int) ServiceAccount {
		return ServiceAccount{Email: sa.Email, Scopes: append([]string(nil), sa.Scopes...)}
	})
	return desc
}
