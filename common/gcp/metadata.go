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
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/zilliztech/cloudtagger/common/logger"
	"github.com/zilliztech/cloudtagger/common/werr"
)

// MetadataHostEnv is read by the metadata client itself. NewMetadataFetcher never sets it,
// an explicit host is applied per request instead.
const MetadataHostEnv = "GCE_METADATA_HOST"

const (
	ProjectIDPath    = "project/project-id"
	InstanceNamePath = "instance/name"
	InstanceZonePath = "instance/zone"
)

// Identity locates the instance the process runs on.
type Identity struct {
	ProjectID    string
	InstanceName string
	Zone         string
}

// MetadataFetcher reads values from the instance metadata server.
type MetadataFetcher struct {
	client *metadata.Client
}

// NewMetadataFetcher returns a fetcher bounded by timeout. A non-empty host replaces the
// default metadata server address.
func NewMetadataFetcher(host string, timeout time.Duration) *MetadataFetcher {
	hc := &http.Client{Timeout: timeout}
	if len(host) > 0 {
		hc.Transport = &metadataHostTransport{host: host, base: http.DefaultTransport}
	}
	return &MetadataFetcher{
		client: metadata.NewClient(hc),
	}
}

// metadataHostTransport sends every request to host instead of the address picked by the
// metadata client.
type metadataHostTransport struct {
	host string
	base http.RoundTripper
}

func (t *metadataHostTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Host = t.host
	r.Host = t.host
	return t.base.RoundTrip(r)
}

// FetchMetadataValue returns the trimmed value stored under path. Any failure means the
// process is not running on a compute instance.
func (f *MetadataFetcher) FetchMetadataValue(ctx context.Context, path string) (string, error) {
	value, err := f.client.GetWithContext(ctx, path)
	if err != nil {
		return "", werr.ErrNotRunningOn.WithCauseErr(errors.Wrapf(err, "fetch metadata %s", path))
	}
	return strings.TrimSpace(value), nil
}

// ResolveIdentity looks up the project id, instance name and zone.
func (f *MetadataFetcher) ResolveIdentity(ctx context.Context) (Identity, error) {
	projectID, err := f.FetchMetadataValue(ctx, ProjectIDPath)
	if err != nil {
		return Identity{}, err
	}
	instanceName, err := f.FetchMetadataValue(ctx, InstanceNamePath)
	if err != nil {
		return Identity{}, err
	}
	zone, err := f.FetchMetadataValue(ctx, InstanceZonePath)
	if err != nil {
		return Identity{}, err
	}
	identity := Identity{
		ProjectID:    projectID,
		InstanceName: instanceName,
		Zone:         LastPathSegment(zone),
	}
	logger.Ctx(ctx).Info("resolved instance identity",
		zap.String("project", identity.ProjectID),
		zap.String("instance", identity.InstanceName),
		zap.String("zone", identity.Zone))
	return identity, nil
}

// LastPathSegment returns the part after the final '/', e.g. the zone name of
// "projects/123/zones/us-central1-a".
func LastPathSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
