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

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kelindar/b2/internal/bzerr"
)

type pingResponse struct {
	OK bool `json:"ok"`
}

func newExecutor(url string, reauth func(ctx context.Context) (*AuthState, error)) *Executor {
	e := NewExecutor(&AuthState{AuthorizationToken: "tok-1", APIURL: url}, reauth)
	e.BackoffBase = time.Millisecond
	return e
}

func TestDoDecodesSuccessResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(pingResponse{OK: true})
	}))
	defer srv.Close()

	e := newExecutor(srv.URL, nil)
	var out pingResponse
	err := e.Do(context.Background(), "POST", BaseAPI, "/ping", map[string]string{"a": "b"}, &out)
	assert.NoError(t, err)
	assert.True(t, out.OK)
}

func TestDoRetries503ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(bzerr.Body{Code: "service_unavailable"})
			return
		}
		_ = json.NewEncoder(w).Encode(pingResponse{OK: true})
	}))
	defer srv.Close()

	e := newExecutor(srv.URL, nil)
	var out pingResponse
	err := e.Do(context.Background(), "GET", BaseAPI, "/ping", nil, &out)
	assert.NoError(t, err)
	assert.True(t, out.OK)
	assert.EqualValues(t, 2, calls)
}

func TestDoTerminalStatusDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(bzerr.Body{Code: "bad_request", Message: "nope"})
	}))
	defer srv.Close()

	e := newExecutor(srv.URL, nil)
	err := e.Do(context.Background(), "POST", BaseAPI, "/ping", nil, nil)
	var berr *bzerr.Error
	assert.ErrorAs(t, err, &berr)
	assert.Equal(t, bzerr.KindBadRequest, berr.Kind)
	assert.EqualValues(t, 1, calls, "a 400 must not retry")
}

func TestDoReauthorizesOnExpiredToken(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			assert.Equal(t, "tok-1", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(bzerr.Body{Code: "expired_auth_token"})
			return
		}
		assert.Equal(t, "tok-2", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(pingResponse{OK: true})
	}))
	defer srv.Close()

	var reauthCalls int32
	reauth := func(ctx context.Context) (*AuthState, error) {
		atomic.AddInt32(&reauthCalls, 1)
		return &AuthState{AuthorizationToken: "tok-2", APIURL: srv.URL}, nil
	}

	e := newExecutor(srv.URL, reauth)
	var out pingResponse
	err := e.Do(context.Background(), "POST", BaseAPI, "/ping", nil, &out)
	assert.NoError(t, err)
	assert.True(t, out.OK)
	assert.EqualValues(t, 2, calls)
	assert.EqualValues(t, 1, reauthCalls)
	assert.Equal(t, "tok-2", e.Auth().AuthorizationToken, "the refreshed auth state must stick for later calls")
}

func TestDoExhaustsRetryBudgetOnRepeated503(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(bzerr.Body{Code: "service_unavailable"})
	}))
	defer srv.Close()

	e := newExecutor(srv.URL, nil)
	e.MaxRetries = 2
	err := e.Do(context.Background(), "GET", BaseAPI, "/ping", nil, nil)
	var berr *bzerr.Error
	assert.ErrorAs(t, err, &berr)
	assert.Equal(t, bzerr.KindServiceUnavailable, berr.Kind)
	assert.EqualValues(t, 3, calls, "attempts 0,1,2 should all fire before giving up")
}

// TestReauthorizeCoalescesConcurrentCallers exercises spec §4.2's singleflight
// guarantee: N callers that all observe expired_auth_token at the same time
// must drive exactly one b2_authorize_account call, not one per caller.
func TestReauthorizeCoalescesConcurrentCallers(t *testing.T) {
	var tok atomic.Value
	tok.Store("tok-1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != tok.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(bzerr.Body{Code: "expired_auth_token"})
			return
		}
		_ = json.NewEncoder(w).Encode(pingResponse{OK: true})
	}))
	defer srv.Close()

	var reauthCalls int32
	reauth := func(ctx context.Context) (*AuthState, error) {
		atomic.AddInt32(&reauthCalls, 1)
		// Hold the singleflight group open long enough that every goroutine
		// below has a chance to reach reauthorize concurrently.
		time.Sleep(20 * time.Millisecond)
		tok.Store("tok-2")
		return &AuthState{AuthorizationToken: "tok-2", APIURL: srv.URL}, nil
	}

	e := newExecutor(srv.URL, reauth)

	const n = 20
	var wg sync.WaitGroup
	var start sync.WaitGroup
	start.Add(1)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start.Wait()
			errs[i] = e.Do(context.Background(), "POST", BaseAPI, "/ping", nil, nil)
		}(i)
	}
	start.Done()
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, reauthCalls, "concurrent expired-token callers must coalesce onto one reauthorize")
}

func TestDoUsesDownloadBaseURL(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("download request must not hit the API base URL")
	}))
	defer apiSrv.Close()

	dlSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(pingResponse{OK: true})
	}))
	defer dlSrv.Close()

	e := NewExecutor(&AuthState{AuthorizationToken: "tok-1", APIURL: apiSrv.URL, DownloadURL: dlSrv.URL}, nil)
	e.BackoffBase = time.Millisecond
	var out pingResponse
	err := e.Do(context.Background(), "GET", BaseDownloadAPI, "/b2_download_file_by_id", nil, &out)
	assert.NoError(t, err)
	assert.True(t, out.OK)
}
