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

package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquireMintsWhenEmpty(t *testing.T) {
	var mints int32
	p := New(func(ctx context.Context) (Lease, error) {
		atomic.AddInt32(&mints, 1)
		return Lease{UploadURL: "http://x", Token: "tok"}, nil
	})

	l, err := p.Acquire(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "tok", l.Token)
	assert.EqualValues(t, 1, mints)
	assert.Equal(t, 0, p.Len())
}

func TestReleaseValidReusesLease(t *testing.T) {
	var mints int32
	p := New(func(ctx context.Context) (Lease, error) {
		atomic.AddInt32(&mints, 1)
		return Lease{Token: "tok"}, nil
	})

	l, err := p.Acquire(context.Background())
	assert.NoError(t, err)
	p.Release(l, true)
	assert.Equal(t, 1, p.Len())

	l2, err := p.Acquire(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, l, l2)
	assert.EqualValues(t, 1, mints, "a reused lease should not cause a second mint")
}

func TestReleaseInvalidDropsLease(t *testing.T) {
	var mints int32
	p := New(func(ctx context.Context) (Lease, error) {
		atomic.AddInt32(&mints, 1)
		return Lease{Token: "tok"}, nil
	})

	l, err := p.Acquire(context.Background())
	assert.NoError(t, err)
	p.Release(l, false)
	assert.Equal(t, 0, p.Len())

	_, err = p.Acquire(context.Background())
	assert.NoError(t, err)
	assert.EqualValues(t, 2, mints, "an invalidated lease forces a fresh mint")
}

func TestAcquirePropagatesMintError(t *testing.T) {
	wantErr := errors.New("no upload url for you")
	p := New(func(ctx context.Context) (Lease, error) {
		return Lease{}, wantErr
	})

	_, err := p.Acquire(context.Background())
	assert.ErrorIs(t, err, wantErr)
}
