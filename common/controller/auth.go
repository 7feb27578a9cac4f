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
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/zilliztech/cloudtagger/common/logger"
	"github.com/zilliztech/cloudtagger/common/metrics"
	"github.com/zilliztech/cloudtagger/common/werr"
)

const (
	AccessTokenPath = "/controller/api/oauth/access_token"
	TagBatchPath    = "/controller/restui/tags/tagEntitiesInBatch"
)

// Client talks to the controller. It holds no tokens, every exchange starts from scratch.
type Client struct {
	httpClient  *http.Client
	tokenClient *http.Client
}

// NewClient returns a controller client whose requests are bounded by timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		tokenClient: &http.Client{
			Timeout:   timeout,
			Transport: &tokenReplyTransport{base: http.DefaultTransport},
		},
	}
}

// tokenStatusError is returned for any token reply other than 200 OK.
type tokenStatusError struct {
	status string
}

func (e *tokenStatusError) Error() string {
	return "unexpected token reply status " + e.status
}

// tokenReplyTransport only lets 200 OK token replies through, and always hands them
// to the json decoder whatever Content-Type the controller sent.
type tokenReplyTransport struct {
	base http.RoundTripper
}

func (t *tokenReplyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		_ = resp.Body.Close()
		return nil, &tokenStatusError{status: resp.Status}
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

// GetBearerToken performs a client credentials grant against the controller. The client id
// and secret are sent in the form body.
func (c *Client) GetBearerToken(ctx context.Context, controllerURL, clientID, clientSecret string) (string, error) {
	start := time.Now()
	token, err := c.getBearerToken(ctx, controllerURL, clientID, clientSecret)
	metrics.TaggerControllerRequestsTotal.WithLabelValues(metrics.EndpointToken, metrics.ResultLabel(err)).Inc()
	metrics.TaggerControllerRequestLatency.WithLabelValues(metrics.EndpointToken).Observe(time.Since(start).Seconds())
	return token, err
}

func (c *Client) getBearerToken(ctx context.Context, controllerURL, clientID, clientSecret string) (string, error) {
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     endpoint(controllerURL, AccessTokenPath),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := conf.Token(context.WithValue(ctx, oauth2.HTTPClient, c.tokenClient))
	if err != nil {
		var statusErr *tokenStatusError
		if errors.As(err, &statusErr) {
			logger.Ctx(ctx).Warn("controller rejected token request",
				zap.String("url", conf.TokenURL),
				zap.String("status", statusErr.status))
			return "", werr.ErrCommunication.WithCauseErrMsg(fmt.Sprintf("controller token request failed: %s", statusErr.status))
		}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			logger.Ctx(ctx).Warn("controller rejected token request",
				zap.String("url", conf.TokenURL),
				zap.Int("statusCode", retrieveErr.Response.StatusCode))
			return "", werr.ErrCommunication.WithCauseErrMsg(fmt.Sprintf("controller token request failed: %s", retrieveErr.Response.Status))
		}
		return "", werr.ErrCommunication.WithCauseErr(errors.Wrap(err, "controller token request"))
	}
	logger.Ctx(ctx).Debug("controller token acquired", zap.String("url", conf.TokenURL))
	return tok.AccessToken, nil
}

func endpoint(controllerURL, path string) string {
	return strings.TrimRight(controllerURL, "/") + path
}
