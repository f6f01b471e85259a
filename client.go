// Copyright 2023 Sneller, Inc.
// Copyright 2025 Roman Atachiants
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package b2 is a client library for Backblaze B2 cloud object storage. It
// authenticates, uploads files (single- or multi-part), downloads files, and
// enumerates bucket contents, entirely over the B2 v2 HTTPS API.
package b2

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kelindar/b2/internal/transport"
	"github.com/kelindar/b2/internal/wire"
)

// defaultAPIBaseURL is where b2_authorize_account always lives, regardless of
// which apiUrl the account is later assigned (spec §6).
const defaultAPIBaseURL = "https://api.backblazeb2.com"

// Credentials are the opaque applicationKeyId/applicationKey pair combined
// and Base64-encoded for HTTP Basic on the authorize call (spec §3).
type Credentials struct {
	ApplicationKeyID string
	ApplicationKey   string
}

func (c Credentials) basic() string {
	raw := c.ApplicationKeyID + ":" + c.ApplicationKey
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// Allowed mirrors the capability descriptor nested in AuthorizationState
// (spec §3).
type Allowed struct {
	Capabilities []string
	BucketID     string
	BucketName   string
	NamePrefix   string
}

// AuthorizationState is the result of b2_authorize_account (spec §3). It is
// replaced in place (as a fresh value swapped in atomically) on re-
// authorization and is never nil after a successful Authorize.
type AuthorizationState struct {
	AccountID               string
	AuthorizationToken      string
	APIURL                  string
	DownloadURL             string
	AbsoluteMinimumPartSize int64
	RecommendedPartSize     int64
	Allowed                 Allowed
}

func fromWire(r wire.AuthorizeAccountResponse) *AuthorizationState {
	return &AuthorizationState{
		AccountID:               r.AccountID,
		AuthorizationToken:      r.AuthorizationToken,
		APIURL:                  r.APIURL,
		DownloadURL:             r.DownloadURL,
		AbsoluteMinimumPartSize: r.AbsoluteMinimumPartSize,
		RecommendedPartSize:     r.RecommendedPartSize,
		Allowed: Allowed{
			Capabilities: r.Allowed.Capabilities,
			BucketID:     r.Allowed.BucketID,
			BucketName:   r.Allowed.BucketName,
			NamePrefix:   r.Allowed.NamePrefix,
		},
	}
}

func toTransportAuth(a *AuthorizationState) *transport.AuthState {
	return &transport.AuthState{
		AccountID:               a.AccountID,
		AuthorizationToken:      a.AuthorizationToken,
		APIURL:                  a.APIURL,
		DownloadURL:             a.DownloadURL,
		AbsoluteMinimumPartSize: a.AbsoluteMinimumPartSize,
		RecommendedPartSize:     a.RecommendedPartSize,
		Capabilities:            a.Allowed.Capabilities,
		BucketID:                a.Allowed.BucketID,
		BucketName:              a.Allowed.BucketName,
		NamePrefix:              a.Allowed.NamePrefix,
	}
}

func fromTransportAuth(a *transport.AuthState) *AuthorizationState {
	return &AuthorizationState{
		AccountID:               a.AccountID,
		AuthorizationToken:      a.AuthorizationToken,
		APIURL:                  a.APIURL,
		DownloadURL:             a.DownloadURL,
		AbsoluteMinimumPartSize: a.AbsoluteMinimumPartSize,
		RecommendedPartSize:     a.RecommendedPartSize,
		Allowed: Allowed{
			Capabilities: a.Capabilities,
			BucketID:     a.BucketID,
			BucketName:   a.BucketName,
			NamePrefix:   a.NamePrefix,
		},
	}
}

// Logger is the optional diagnostic hook accepted by Options, modeled on the
// minimal Logger interface used by comparable B2 clients in the wider Go
// ecosystem (other_examples' jeffh-b2client). Nil-safe: the client never
// requires one.
type Logger = transport.Logger

// Options tunes a Client beyond its Credentials: the HTTP transport to use,
// an API base URL override (for pointing at a test double instead of the
// real B2 endpoint), a Logger, and the retry/concurrency knobs of spec
// §4.2/§4.1.
type Options struct {
	HTTPClient *http.Client
	// APIBaseURL overrides where b2_authorize_account is called, for tests.
	APIBaseURL string
	Logger     Logger

	// MaxRetries and BackoffBase tune the RequestExecutor's retry schedule
	// (spec §4.2). Zero values fall back to the spec's defaults (5, 150ms).
	MaxRetries  int
	BackoffBase time.Duration

	// PartSize overrides the engine's part size, clamped to
	// [absoluteMinimumPartSize, +inf) (spec §4.1). Zero uses
	// recommendedPartSize (spec §9's resolved Open Question).
	PartSize int64

	// MaxParallelParts bounds concurrent part uploads within one multi-part
	// upload (spec §4.1's "default 1 to preserve the original single-lane
	// behavior"). Zero means 1.
	MaxParallelParts int
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &transport.DefaultClient
}

func (o Options) apiBaseURL() string {
	if o.APIBaseURL != "" {
		return o.APIBaseURL
	}
	return defaultAPIBaseURL
}

// Client is the authenticated facade over a B2 account: it owns the
// RequestExecutor (spec §4.2) and is the entry point for resolving buckets.
type Client struct {
	creds Credentials
	opts  Options
	exec  *transport.Executor
}

// Authorize exchanges Credentials for an AuthorizationState via
// b2_authorize_account and returns a ready-to-use Client (spec §6). The
// returned Client's RequestExecutor re-authorizes itself in place whenever a
// later call observes bad_auth_token/expired_auth_token (spec §4.2); callers
// never need to call Authorize again.
func Authorize(ctx context.Context, creds Credentials, opts Options) (*Client, error) {
	c := &Client{creds: creds, opts: opts}

	auth, err := c.authorizeAccount(ctx)
	if err != nil {
		return nil, err
	}

	c.exec = transport.NewExecutor(toTransportAuth(auth), func(ctx context.Context) (*transport.AuthState, error) {
		fresh, err := c.authorizeAccount(ctx)
		if err != nil {
			return nil, err
		}
		return toTransportAuth(fresh), nil
	})
	c.exec.Client = opts.httpClient()
	c.exec.Logger = opts.Logger
	if opts.MaxRetries > 0 {
		c.exec.MaxRetries = opts.MaxRetries
	}
	if opts.BackoffBase > 0 {
		c.exec.BackoffBase = opts.BackoffBase
	}
	return c, nil
}

// authorizeAccount performs the raw b2_authorize_account HTTP Basic call.
// It is a method (rather than a free function) only so the re-auth closure
// passed to NewExecutor can share c.opts/c.creds.
func (c *Client) authorizeAccount(ctx context.Context) (*AuthorizationState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.apiBaseURL()+"/b2api/v2/b2_authorize_account", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.creds.basic())
	req.Header.Set("User-Agent", "b2-go-core/1")

	res, err := c.opts.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var out wire.AuthorizeAccountResponse
	dec := json.NewDecoder(res.Body)
	if res.StatusCode != 200 {
		var eb wire.ErrorBody
		_ = dec.Decode(&eb)
		return nil, fmt.Errorf("b2: b2_authorize_account: %d %s: %s", res.StatusCode, eb.Code, eb.Message)
	}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("b2: decoding b2_authorize_account response: %w", err)
	}
	return fromWire(out), nil
}

// Auth returns the current authorization snapshot (spec §3: "never nil after
// successful construction of the client").
func (c *Client) Auth() *AuthorizationState {
	return fromTransportAuth(c.exec.Auth())
}
