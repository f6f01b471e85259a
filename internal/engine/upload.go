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
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/kelindar/b2/internal/bzerr"
	"github.com/kelindar/b2/internal/pool"
	"github.com/kelindar/b2/internal/wire"
)

// Budget is the retry tuning for the upload-endpoint operations of spec
// §4.4/§4.5. It is distinct from transport.Executor's retry budget: uploads
// target mint-issued per-upload endpoints carrying their own tokens, so they
// never go through the general RequestExecutor.
type Budget struct {
	MaxRetries  int
	BackoffBase time.Duration
}

func (b Budget) maxRetries() int {
	if b.MaxRetries > 0 {
		return b.MaxRetries
	}
	return 5
}

func (b Budget) backoffBase() time.Duration {
	if b.BackoffBase > 0 {
		return b.BackoffBase
	}
	return 150 * time.Millisecond
}

// jitterBackoff mirrors transport.Executor's equal-jitter schedule (spec
// §4.2): delay(n) = backoff_base * 2^n * (0.5 + U(0,1)). Duplicated here
// rather than shared because it is three lines and pulling in the transport
// package for them would invert the natural dependency (transport has no
// reason to know about engine).
func (b Budget) jitterBackoff(n int) time.Duration {
	scale := float64(uint64(1) << uint(n))
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(b.backoffBase()) * scale * jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
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

// SinglePartUpload implements spec §4.4: a single POST to a leased upload
// URL carrying the full file body. open is called once per attempt so a
// retry re-sends the body from the start whenever the source supports it
// (a sized buffer always does); for a genuine non-seekable stream that has
// already yielded some bytes, open returning the same exhausted reader is
// the best any retry can do, since this path is only reached for sources
// declaring a length within one part, where a reconnect-level failure
// before any bytes are read is the overwhelmingly common case. If sha1 is
// empty the opened reader is wrapped in a HashingReader operating in
// deferred-hash mode (X-Bz-Content-Sha1: hex_digits_at_end, Content-Length =
// contentLength+40).
func SinglePartUpload(ctx context.Context, client *http.Client, leasePool *pool.Pool, budget Budget, fileName, contentType string, fileInfo map[string]string, sha1 string, contentLength int64, open func() io.Reader) (*wire.FileResponse, error) {
	for attempt := 0; ; attempt++ {
		lease, err := leasePool.Acquire(ctx)
		if err != nil {
			return nil, bzerr.Wrap("b2_upload_file", bzerr.KindUnknownServerError, err)
		}

		header := sha1
		length := contentLength
		reader := open()
		if sha1 == "" {
			reader = NewHashingReader(reader)
			header = "hex_digits_at_end"
			length = contentLength + 40
		}

		out, err := rawUpload(ctx, client, lease, fileName, contentType, fileInfo, 0, header, length, reader)
		if err != nil {
			leasePool.Release(lease, false)
			if attempt >= budget.maxRetries() {
				return nil, bzerr.Wrap("b2_upload_file", bzerr.KindUnknownServerError, err)
			}
			if werr := sleepCtx(ctx, budget.jitterBackoff(attempt)); werr != nil {
				return nil, werr
			}
			continue
		}

		switch {
		case out.Status == 200:
			leasePool.Release(lease, true)
			return out.File, nil
		case out.Status == 405:
			// spec §4.4: a 405 here is a library-internal wiring error, not a
			// server condition to retry.
			leasePool.Release(lease, false)
			return nil, bzerr.New("b2_upload_file", bzerr.KindUsageError, out.Status, codeOf(out.Body), msgOf(out.Body))
		case out.Status == 401 && (codeOf(out.Body) == "bad_auth_token" || codeOf(out.Body) == "expired_auth_token"):
			leasePool.Release(lease, false)
			if attempt >= budget.maxRetries() {
				return nil, bzerr.New("b2_upload_file", bzerr.KindExpiredCredentials, out.Status, codeOf(out.Body), msgOf(out.Body))
			}
			continue
		case out.Status == 503:
			leasePool.Release(lease, false)
			if attempt >= budget.maxRetries() {
				return nil, bzerr.New("b2_upload_file", bzerr.KindServiceUnavailable, out.Status, codeOf(out.Body), msgOf(out.Body))
			}
			if werr := sleepCtx(ctx, budget.jitterBackoff(attempt)); werr != nil {
				return nil, werr
			}
			continue
		default:
			kind, _ := bzerr.ClassifyAPI(out.Status, out.Body)
			leasePool.Release(lease, false)
			return nil, bzerr.New("b2_upload_file", kind, out.Status, codeOf(out.Body), msgOf(out.Body))
		}
	}
}

// PartRecord is one completed part, carrying exactly what b2_finish_large_file
// needs: the part number (for ordering) and its SHA-1 (spec §3's PartRecord).
type PartRecord struct {
	Num  int
	SHA1 string
}

// PartUpload implements spec §4.5: upload one part to a leased part-pool
// endpoint. 401/503 drop the lease and acquire a fresh one before retrying;
// 408 retries against the *same* lease with an un-jittered exponential
// backoff, since a timeout says nothing about the lease's validity.
func PartUpload(ctx context.Context, client *http.Client, leasePool *pool.Pool, budget Budget, partNumber int, data []byte, sha1hex string) (PartRecord, error) {
	var lease pool.Lease
	haveLease := false

	for attempt := 0; ; attempt++ {
		if !haveLease {
			l, err := leasePool.Acquire(ctx)
			if err != nil {
				return PartRecord{}, bzerr.Wrap("b2_upload_part", bzerr.KindUnknownServerError, err)
			}
			lease = l
			haveLease = true
		}

		out, err := rawUpload(ctx, client, lease, "", "", nil, partNumber, sha1hex, int64(len(data)), bytes.NewReader(data))
		if err != nil {
			leasePool.Release(lease, false)
			haveLease = false
			if attempt >= budget.maxRetries() {
				return PartRecord{}, bzerr.Wrap("b2_upload_part", bzerr.KindUnknownServerError, err)
			}
			if werr := sleepCtx(ctx, budget.jitterBackoff(attempt)); werr != nil {
				return PartRecord{}, werr
			}
			continue
		}

		switch out.Status {
		case 200:
			leasePool.Release(lease, true)
			return PartRecord{Num: partNumber, SHA1: sha1hex}, nil
		case 401:
			leasePool.Release(lease, false)
			haveLease = false
			if attempt >= budget.maxRetries() {
				return PartRecord{}, bzerr.New("b2_upload_part", bzerr.KindUnauthorizedRequest, out.Status, codeOf(out.Body), msgOf(out.Body))
			}
			continue
		case 503:
			leasePool.Release(lease, false)
			haveLease = false
			if attempt >= budget.maxRetries() {
				return PartRecord{}, bzerr.New("b2_upload_part", bzerr.KindServiceUnavailable, out.Status, codeOf(out.Body), msgOf(out.Body))
			}
			if werr := sleepCtx(ctx, budget.jitterBackoff(attempt)); werr != nil {
				return PartRecord{}, werr
			}
			continue
		case 408:
			if attempt >= budget.maxRetries() {
				leasePool.Release(lease, false)
				return PartRecord{}, bzerr.New("b2_upload_part", bzerr.KindRequestTimeout, out.Status, codeOf(out.Body), msgOf(out.Body))
			}
			delay := budget.backoffBase() * time.Duration(uint64(1)<<uint(attempt))
			if werr := sleepCtx(ctx, delay); werr != nil {
				leasePool.Release(lease, false)
				return PartRecord{}, werr
			}
			continue
		default:
			leasePool.Release(lease, false)
			return PartRecord{}, bzerr.New("b2_upload_part", bzerr.KindUnknownServerError, out.Status, codeOf(out.Body), msgOf(out.Body))
		}
	}
}
