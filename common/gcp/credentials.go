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
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"

	"github.com/zilliztech/cloudtagger/common/logger"
	"github.com/zilliztech/cloudtagger/common/werr"
)

// ComputeReadOnlyScope is the default scope of minted tokens.
const ComputeReadOnlyScope = "https://www.googleapis.com/auth/compute.readonly"

// CredentialProvider mints bearer tokens for a service account key.
type CredentialProvider struct {
	mu         sync.Mutex
	conf       *jwt.Config
	httpClient *http.Client
	cacheToken bool

	currentToken atomic.Pointer[oauth2.Token]
}

type CredentialOption func(*CredentialProvider)

// WithCredentialHTTPClient sets the client used to reach the token endpoint.
func WithCredentialHTTPClient(c *http.Client) CredentialOption {
	return func(p *CredentialProvider) {
		p.httpClient = c
	}
}

// WithTokenCache lets Token reuse a minted token until it expires.
func WithTokenCache(enabled bool) CredentialOption {
	return func(p *CredentialProvider) {
		p.cacheToken = enabled
	}
}

// NewCredentialProvider loads the service account key file once. A missing, unreadable
// or malformed file is a configuration error.
func NewCredentialProvider(ctx context.Context, keyFile string, scopes []string, opts ...CredentialOption) (*CredentialProvider, error) {
	if len(keyFile) == 0 {
		return nil, werr.ErrConfigError.WithCauseErrMsg("service account key file is not set")
	}
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, werr.ErrConfigError.WithCauseErr(errors.Wrapf(err, "read service account key file %s", keyFile))
	}
	if len(scopes) == 0 {
		scopes = []string{ComputeReadOnlyScope}
	}
	conf, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, werr.ErrConfigError.WithCauseErr(errors.Wrapf(err, "parse service account key file %s", keyFile))
	}
	p := &CredentialProvider{
		conf:       conf,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	logger.Ctx(ctx).Info("service account credentials loaded",
		zap.String("keyFile", keyFile),
		zap.String("email", conf.Email),
		zap.Strings("scopes", scopes),
		zap.Bool("cacheToken", p.cacheToken))
	return p, nil
}

// MintAccessToken performs a round trip to the identity provider on every call.
func (p *CredentialProvider) MintAccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tok, err := p.mintLocked(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Token returns the cached token while it is valid when caching is enabled, otherwise it
// mints a new one.
func (p *CredentialProvider) Token(ctx context.Context) (string, error) {
	if !p.cacheToken {
		return p.MintAccessToken(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if current := p.currentToken.Load(); current.Valid() {
		return current.AccessToken, nil
	}
	tok, err := p.mintLocked(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (p *CredentialProvider) mintLocked(ctx context.Context) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	// a fresh token source per call, ReuseTokenSource would hand back the previous token
	tok, err := p.conf.TokenSource(ctx).Token()
	if err != nil {
		return nil, werr.ErrCommunication.WithCauseErr(errors.Wrap(err, "mint cloud access token"))
	}
	p.currentToken.Store(tok)
	logger.Ctx(ctx).Debug("cloud access token minted", zap.Time("expiry", tok.Expiry))
	return tok, nil
}
