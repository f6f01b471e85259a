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

// Package pool implements the upload-URL pool of spec §4.3: per-bucket and
// per-large-file pools of (uploadUrl, authorizationToken) leases, with
// lease/return semantics so that an in-flight failure invalidates a lease
// while success returns it for reuse.
package pool

import (
	"context"
	"sync"
)

// Lease is an (uploadUrl, authorizationToken) pair scoped to a bucket (for
// single-part uploads) or a large-file fileId (for parts). A lease is held
// exclusively while in use; Pool never hands the same Lease value to two
// callers concurrently (spec §3's UploadLease invariant).
type Lease struct {
	UploadURL string
	Token     string
	Scope     string
}

// Minter mints a fresh lease by calling b2_get_upload_url or
// b2_get_upload_part_url through the RequestExecutor. It is supplied by the
// caller (Bucket.mintSingle for single-part pools, Bucket.mintPart for part
// pools) so
// that Pool itself stays agnostic of which B2 operation backs it.
type Minter func(ctx context.Context) (Lease, error)

// Pool manages leases within a single scope (spec §4.3). It is safe for
// concurrent callers.
type Pool struct {
	mint Minter

	mu   sync.Mutex
	free []Lease
}

// New creates a Pool that mints new leases via mint.
func New(mint Minter) *Pool {
	return &Pool{mint: mint}
}

// Acquire returns an available lease or mints a new one. Multiple
// concurrent callers may cause multiple concurrent mints (spec §4.3:
// "implementations MAY cap outstanding mints" — this implementation does
// not cap them, since the part-pool's natural backpressure is the
// max-parallel-parts limit upstream in the engine).
func (p *Pool) Acquire(ctx context.Context) (Lease, error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		l := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return l, nil
	}
	p.mu.Unlock()

	l, err := p.mint(ctx)
	if err != nil {
		return Lease{}, err
	}
	return l, nil
}

// Release returns a lease to the free set if valid, or drops it otherwise
// (spec §4.3/§3: "a lease becomes invalid on any request failure that is
// not a clean 200").
func (p *Pool) Release(l Lease, valid bool) {
	if !valid {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, l)
	p.mu.Unlock()
}

// Len reports the number of currently-idle leases (test/diagnostic use).
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
