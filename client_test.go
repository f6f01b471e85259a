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

package b2

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kelindar/b2/mock"
)

func newTestClient(t *testing.T, srv *mock.Server) *Client {
	t.Helper()
	keyID, appKey := srv.Credentials()
	c, err := Authorize(context.Background(), Credentials{ApplicationKeyID: keyID, ApplicationKey: appKey}, Options{
		APIBaseURL:  srv.APIBaseURL(),
		BackoffBase: time.Millisecond,
		MaxRetries:  3,
	})
	assert.NoError(t, err)
	return c
}

func TestAuthorizeSucceeds(t *testing.T) {
	srv := mock.New("my-bucket", 200)
	defer srv.Close()

	c := newTestClient(t, srv)
	assert.NotEmpty(t, c.Auth().AuthorizationToken)
	assert.NotEmpty(t, c.Auth().APIURL)
}

func TestAuthorizeRejectsBadCredentials(t *testing.T) {
	srv := mock.New("my-bucket", 200)
	defer srv.Close()

	_, err := Authorize(context.Background(), Credentials{ApplicationKeyID: "wrong", ApplicationKey: "wrong"}, Options{
		APIBaseURL: srv.APIBaseURL(),
	})
	assert.Error(t, err)
}

func TestExecutorReauthorizesOnExpiredToken(t *testing.T) {
	srv := mock.New("my-bucket", 200)
	defer srv.Close()

	c := newTestClient(t, srv)
	// Force the next b2_list_buckets call to look like an expired token;
	// the executor must transparently reauthorize and retry.
	srv.ForceStatusCode("b2_list_buckets", 401, "expired_auth_token", 1)

	b := c.Bucket(srv.BucketName())
	id, err := b.ID(context.Background())
	assert.NoError(t, err)
	assert.NotEmpty(t, id)
}
