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

package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"hash"
	"io"
)

// HashingReader wraps a byte source, computing a running SHA-1 and, on EOF,
// appending the 40-character lowercase hex digest as trailing bytes of the
// stream it presents downstream (spec §4.6). It is used in "deferred hash"
// mode: the caller declares Content-Length as contentLength+40 and sets
// X-Bz-Content-Sha1: hex_digits_at_end, so the server recovers the digest
// from the tail of the body it already received.
type HashingReader struct {
	src    io.Reader
	h      hash.Hash
	trail  []byte // the 40-byte hex digest, once computed
	offset int     // read offset into trail
	eof    bool
}

// NewHashingReader wraps src for deferred-hash upload.
func NewHashingReader(src io.Reader) *HashingReader {
	return &HashingReader{src: src, h: sha1.New()}
}

// Read implements io.Reader. Once src is exhausted, Read continues to
// return the 40-character hex digest until it too is exhausted.
func (r *HashingReader) Read(p []byte) (int, error) {
	if !r.eof {
		n, err := r.src.Read(p)
		if n > 0 {
			r.h.Write(p[:n])
		}
		if err == io.EOF {
			r.eof = true
			r.trail = []byte(hex.EncodeToString(r.h.Sum(nil)))
			if n > 0 {
				return n, nil
			}
			// fall through to serve the trailer immediately
		} else if err != nil {
			return n, err
		} else {
			return n, nil
		}
	}
	if r.offset >= len(r.trail) {
		return 0, io.EOF
	}
	n := copy(p, r.trail[r.offset:])
	r.offset += n
	return n, nil
}

// Digest returns the memoized hex digest. It is only meaningful after the
// underlying source has been fully read (Read returning io.EOF once the
// trailer itself is exhausted, or after explicitly draining via io.Copy).
// Calling it repeatedly is idempotent (spec §4.6).
func (r *HashingReader) Digest() string {
	if r.trail != nil {
		return string(r.trail)
	}
	return hex.EncodeToString(r.h.Sum(nil))
}
