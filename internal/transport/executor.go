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

// Package transport implements the request executor of spec §4.2: the
// single choke point that signs outbound requests, classifies server
// responses, re-authorizes on token expiry, and retries under the backoff
// schedule keyed to HTTP status.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kelindar/b2/internal/bzerr"
)

// DefaultClient mirrors the teacher's tuned transport: short idle-conn
// reuse per host, compression disabled (B2 payloads are already opaque
// bytes or small JSON), and a response-header timeout so a wedged
// connection doesn't hang forever.
var DefaultClient = http.Client{
	Transport: &http.Transport{
		MaxIdleConnsPerHost:   5,
		DisableCompression:    true,
		ResponseHeaderTimeout: 60 * time.Second,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
	},
}

// atomicAuth is a tiny typed wrapper over atomic.Pointer so that Executor's
// Auth()/SetAuth() never race with a concurrent reauthorize (spec §5: "avoid
// the read-then-use race that would send a request with a half-updated
// token").
type atomicAuth struct {
	p atomic.Pointer[AuthState]
}

func (a *atomicAuth) load() *AuthState { return a.p.Load() }
func (a *atomicAuth) store(v *AuthState) { a.p.Store(v) }

// AuthState is the immutable snapshot of an authorize_account result.
// Replaced wholesale (never mutated in place) so that readers can safely
// hold a pointer obtained via atomic.Pointer.Load without locking (spec §5:
// "readers copy the token under an atomic load or equivalent").
type AuthState struct {
	AccountID               string
	AuthorizationToken      string
	APIURL                  string
	DownloadURL             string
	AbsoluteMinimumPartSize int64
	RecommendedPartSize     int64
	Capabilities            []string
	BucketID                string
	BucketName              string
	NamePrefix              string
}

// Logger is the optional diagnostic hook, modeled on the minimal logging
// interface used by comparable B2 clients in the wider Go ecosystem
// (see other_examples' jeffh-b2client Logger). Nil-safe: Executor never
// requires one.
type Logger interface {
	Printf(format string, args ...interface{})
}

// BaseKind selects which of the three base-URL constructions of spec §4.2
// a call uses.
type BaseKind int

const (
	BaseAPI BaseKind = iota
	BaseDownloadAPI
	BaseDownloadByName
)

// Executor is the authenticated HTTP choke point (spec §4.2).
type Executor struct {
	Client      *http.Client
	UserAgent   string
	Logger      Logger
	MaxRetries  int
	BackoffBase time.Duration

	auth    atomicAuth
	group   singleflight.Group
	reauth  func(ctx context.Context) (*AuthState, error)
}

// NewExecutor constructs an Executor around an initial AuthState and the
// callback used to refresh it on bad_auth_token/expired_auth_token (spec
// §4.2). reauth must itself call b2_authorize_account; it is supplied by
// the root package to avoid a transport->root import cycle.
func NewExecutor(initial *AuthState, reauth func(ctx context.Context) (*AuthState, error)) *Executor {
	e := &Executor{
		Client:      &DefaultClient,
		UserAgent:   "b2-go-core/1",
		MaxRetries:  5,
		BackoffBase: 150 * time.Millisecond,
		reauth:      reauth,
	}
	e.auth.store(initial)
	return e
}

// Auth returns the current authorization snapshot.
func (e *Executor) Auth() *AuthState { return e.auth.load() }

// SetAuth replaces the authorization snapshot (e.g. after an explicit
// Authorize call at client construction time).
func (e *Executor) SetAuth(a *AuthState) { e.auth.store(a) }

func (e *Executor) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return &DefaultClient
}

func (e *Executor) logf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

func (e *Executor) maxRetries() int {
	if e.MaxRetries > 0 {
		return e.MaxRetries
	}
	return 5
}

func (e *Executor) backoffBase() time.Duration {
	if e.BackoffBase > 0 {
		return e.BackoffBase
	}
	return 150 * time.Millisecond
}

// backoff implements the equal-jitter schedule of spec §4.2:
// delay(n) = backoff_base * 2^n * (0.5 + U(0,1)).
func (e *Executor) backoff(n int) time.Duration {
	base := float64(e.backoffBase())
	scale := float64(uint64(1) << uint(n))
	jitter := 0.5 + rand.Float64()
	return time.Duration(base * scale * jitter)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Executor) baseURL(kind BaseKind) string {
	a := e.Auth()
	switch kind {
	case BaseDownloadAPI, BaseDownloadByName:
		return a.DownloadURL
	default:
		return a.APIURL
	}
}

// Base resolves kind to its current root URL, for callers that bypass Do
// (downloads, which stream a raw body rather than a decoded JSON response)
// but still need the same base-URL construction Do uses (spec §4.2's three
// named entry points: API, Download API, Download-by-name).
func (e *Executor) Base(kind BaseKind) string {
	return e.baseURL(kind)
}

// Do executes op against base (one of the three surfaces of spec §4.2),
// marshaling body as JSON (a []byte body is sent as-is, and a nil body sends
// no request body at all) and decoding the 200 response into out. It owns authorization header injection, response
// classification, and the full retry/backoff/reauth policy; callers never
// see a retryable failure before the budget is exhausted (spec §7).
func (e *Executor) Do(ctx context.Context, method string, kind BaseKind, path string, body interface{}, out interface{}) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		url := e.baseURL(kind) + path
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", e.Auth().AuthorizationToken)
		req.Header.Set("User-Agent", e.UserAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := e.client().Do(req)
		if err != nil {
			if attempt >= e.maxRetries() {
				return bzerr.Wrap(path, bzerr.KindUnknownServerError, err)
			}
			e.logf("b2: transport error on %s (attempt %d): %v", path, attempt, err)
			if werr := sleep(ctx, e.backoff(attempt)); werr != nil {
				return werr
			}
			continue
		}

		decoded, raw, derr := decodeResponse(res, out)
		if derr != nil {
			return derr
		}
		if res.StatusCode == 200 {
			return nil
		}

		kind2, retryable := bzerr.ClassifyAPI(res.StatusCode, decoded)
		if kind2 == bzerr.KindExpiredCredentials {
			if attempt >= e.maxRetries() {
				return bzerr.New(path, bzerr.KindExpiredCredentials, res.StatusCode, codeOf(decoded), msgOf(decoded))
			}
			if _, rerr := e.reauthorize(ctx); rerr != nil {
				return bzerr.Wrap(path, bzerr.KindExpiredCredentials, rerr)
			}
			continue
		}
		if !retryable {
			return bzerr.New(path, kind2, res.StatusCode, codeOf(decoded), msgOf(decoded))
		}
		if attempt >= e.maxRetries() {
			return bzerr.New(path, kind2, res.StatusCode, codeOf(decoded), msgOf(decoded))
		}
		_ = raw
		e.logf("b2: retryable status %d on %s (attempt %d)", res.StatusCode, path, attempt)
		if werr := sleep(ctx, e.backoff(attempt)); werr != nil {
			return werr
		}
	}
}

// reauthorize is the single-flight choke point of spec §4.2: concurrent
// requests that observe expired_auth_token coalesce onto one in-flight
// b2_authorize_account call.
func (e *Executor) reauthorize(ctx context.Context) (*AuthState, error) {
	v, err, _ := e.group.Do("reauthorize", func() (interface{}, error) {
		fresh, err := e.reauth(ctx)
		if err != nil {
			return nil, err
		}
		e.auth.store(fresh)
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AuthState), nil
}

func encodeBody(body interface{}) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if b, ok := body.([]byte); ok {
		return b, nil
	}
	return json.Marshal(body)
}

func decodeResponse(res *http.Response, out interface{}) (*bzerr.Body, []byte, error) {
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("b2: reading response body: %w", err)
	}
	if res.StatusCode == 200 {
		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return nil, raw, fmt.Errorf("b2: decoding response: %w", err)
			}
		}
		return nil, raw, nil
	}
	body := &bzerr.Body{}
	_ = json.Unmarshal(raw, body) // a malformed error body still carries a status code
	return body, raw, nil
}

func codeOf(b *bzerr.Body) string {
	if b == nil {
		return ""
	}
	return b.Code
}

func msgOf(b *bzerr.Body) string {
	if b == nil {
		return ""
	}
	return b.Message
}
