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

package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/zilliztech/cloudtagger/common/logger"
	"github.com/zilliztech/cloudtagger/common/metrics"
	"github.com/zilliztech/cloudtagger/common/werr"
	"github.com/zilliztech/cloudtagger/tagging"
)

const maxResponseBytes = 1 << 20

// Upload posts the batch request once. A non-200 status is a communication error. When the
// reply is a batch response with rejected entities the response is returned together with
// ErrPartialFailure, an unparsable reply to a 200 is accepted as is.
func (c *Client) Upload(ctx context.Context, controllerURL, token string, request *tagging.BatchTaggingRequest) (*tagging.BatchResponse, error) {
	start := time.Now()
	resp, err := c.upload(ctx, controllerURL, token, request)
	result := metrics.ResultLabel(err)
	if werr.ErrPartialFailure.Is(err) {
		metrics.TaggerPartialFailuresTotal.Inc()
		result = metrics.ResultSuccess
	}
	metrics.TaggerControllerRequestsTotal.WithLabelValues(metrics.EndpointUpload, result).Inc()
	metrics.TaggerControllerRequestLatency.WithLabelValues(metrics.EndpointUpload).Observe(time.Since(start).Seconds())
	return resp, err
}

func (c *Client) upload(ctx context.Context, controllerURL, token string, request *tagging.BatchTaggingRequest) (*tagging.BatchResponse, error) {
	body, err := request.Marshal()
	if err != nil {
		return nil, werr.ErrCommunication.WithCauseErr(errors.Wrap(err, "serialize batch request"))
	}
	url := endpoint(controllerURL, TagBatchPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, werr.ErrCommunication.WithCauseErr(errors.Wrap(err, "create upload request"))
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, werr.ErrCommunication.WithCauseErr(errors.Wrap(err, "upload batch request"))
	}
	defer httpResp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if httpResp.StatusCode != http.StatusOK {
		logger.Ctx(ctx).Warn("controller rejected batch request",
			zap.String("url", url),
			zap.Int("statusCode", httpResp.StatusCode),
			zap.ByteString("body", data))
		return nil, werr.ErrCommunication.WithCauseErrMsg(fmt.Sprintf("controller upload failed: %s", httpResp.Status))
	}
	if readErr != nil {
		return nil, werr.ErrCommunication.WithCauseErr(errors.Wrap(readErr, "read upload response"))
	}

	batchResp, err := tagging.UnmarshalBatchResponse(data)
	if err != nil || len(data) == 0 {
		logger.Ctx(ctx).Debug("controller reply is not a batch response", zap.Int("bytes", len(data)))
		return nil, nil
	}
	if batchResp.HasFailures() {
		return batchResp, werr.ErrPartialFailure.WithCauseErrMsg(
			fmt.Sprintf("controller rejected %d entities: %v", batchResp.Failure.Count, batchResp.Failure.EntityIDs))
	}
	return batchResp, nil
}
