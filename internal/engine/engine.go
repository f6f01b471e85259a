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

// Package engine implements the streaming upload engine of spec §4.1: it
// ingests a bounded or unbounded byte source, decides single-part vs.
// multi-part, drives PartBuffers and the upload-URL pools, and finalizes
// the stored file.
package engine

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kelindar/b2/internal/bzerr"
	"github.com/kelindar/b2/internal/pool"
	"github.com/kelindar/b2/internal/wire"
)

const defaultPartSize = 100 * 1024 * 1024

// Input is the tagged-variant source the engine dispatches on (spec §9:
// "avoid runtime type probing" — callers pick the field explicitly instead
// of the engine introspecting an interface{}).
type Input struct {
	FileName    string
	ContentType string
	FileInfo    map[string]string

	// SHA1 is the caller-precomputed digest, or "" to let the engine compute
	// one (via deferred hash for a stream whose declared length fits one
	// part; directly from the collected bytes otherwise).
	SHA1 string

	// Bytes is set for the sized-buffer variant; Stream is set otherwise.
	Bytes []byte

	// Stream is the unbounded-or-bounded byte source when Bytes is nil.
	Stream io.Reader
	// StreamLength is the declared length of Stream, or -1 if unknown.
	StreamLength int64
}

// Deps are the collaborators the engine needs but does not own: the HTTP
// client uploads execute on, the negotiated part size, retry tuning, the
// bounded-parallelism limit, the bucket's single-part pool, a part-pool
// factory scoped to a large-file id, and the three B2 operations that bracket
// a multi-part upload (start/finish/cancel), supplied by the root package to
// avoid an engine->root import cycle.
type Deps struct {
	Client           *http.Client
	PartSize         int64
	Budget           Budget
	MaxParallelParts int
	SinglePool       *pool.Pool
	PartPool         func(fileID string) *pool.Pool
	StartLargeFile   func(ctx context.Context) (string, error)
	FinishLargeFile  func(ctx context.Context, fileID string, partSha1Array []string) (*wire.FileResponse, error)
	CancelLargeFile  func(ctx context.Context, fileID string)
}

func (d Deps) partSize() int64 {
	if d.PartSize > 0 {
		return d.PartSize
	}
	return defaultPartSize
}

func (d Deps) maxParallelParts() int {
	if d.MaxParallelParts > 0 {
		return d.MaxParallelParts
	}
	return 1
}

func sha1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Upload is the engine's single entry point (spec §4.1). It applies the
// decision rule at call entry — a sized buffer within one part goes straight
// to SinglePartUpload; everything else enters the streaming state machine —
// and returns the finished file's metadata or the first error that survived
// its retry budget.
func Upload(ctx context.Context, d Deps, in Input) (*wire.FileResponse, error) {
	partSize := d.partSize()

	if in.Bytes != nil {
		if int64(len(in.Bytes)) <= partSize {
			sha1hex := in.SHA1
			if sha1hex == "" {
				sha1hex = sha1Hex(in.Bytes)
			}
			payload := in.Bytes
			return SinglePartUpload(ctx, d.Client, d.SinglePool, d.Budget, in.FileName, in.ContentType, in.FileInfo, sha1hex, int64(len(in.Bytes)), func() io.Reader { return bytes.NewReader(payload) })
		}
		return runMultipart(ctx, d, in, bytes.NewReader(in.Bytes), partSize)
	}

	if in.Stream == nil {
		return nil, bzerr.New("upload", bzerr.KindUsageError, 0, "", "no byte source provided")
	}

	// A stream that declares a length within one part can go straight to
	// single-part, using deferred-hash mode when no digest was supplied
	// (spec §4.4, scenario S6), without ever buffering it in a PartBuffer.
	if in.StreamLength >= 0 && in.StreamLength <= partSize {
		return SinglePartUpload(ctx, d.Client, d.SinglePool, d.Budget, in.FileName, in.ContentType, in.FileInfo, in.SHA1, in.StreamLength, func() io.Reader { return in.Stream })
	}

	return runMultipart(ctx, d, in, in.Stream, partSize)
}

// runMultipart is the streaming path's state machine (spec §4.1): Collecting
// fills a PartBuffer; Flushing seals it and dispatches a PartUpload while a
// fresh buffer starts Collecting; EOF with nothing sent yet and the buffer
// within one part reverts to single-part; otherwise Finalizing starts the
// large file (if not already started), awaits all parts, and submits
// b2_finish_large_file with the SHA-1 array in strict part-number order.
func runMultipart(ctx context.Context, d Deps, in Input, r io.Reader, partSize int64) (*wire.FileResponse, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxParallelParts())

	var (
		mu      sync.Mutex
		fileID  string
		parts   []PartRecord
		partNum int
	)

	ensureStarted := func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if fileID != "" {
			return fileID, nil
		}
		id, err := d.StartLargeFile(gctx)
		if err != nil {
			return "", err
		}
		fileID = id
		return id, nil
	}

	dispatch := func(buf *PartBuffer) error {
		id, err := ensureStarted()
		if err != nil {
			return err
		}
		mu.Lock()
		partNum++
		num := partNum
		mu.Unlock()
		data := buf.Bytes()
		digest := buf.SHA1Hex()
		partPool := d.PartPool(id)
		g.Go(func() error {
			rec, err := PartUpload(gctx, d.Client, partPool, d.Budget, num, data, digest)
			if err != nil {
				return err
			}
			mu.Lock()
			parts = append(parts, rec)
			mu.Unlock()
			return nil
		})
		return nil
	}

	buf := NewPartBuffer(int(partSize))
	chunk := make([]byte, 32*1024)
	startedMultipart := false

readLoop:
	for {
		n, rerr := r.Read(chunk)
		off := 0
		for off < n {
			m, _ := buf.Write(chunk[off:n])
			off += m
			if buf.Full() {
				startedMultipart = true
				sealed := buf
				if err := dispatch(sealed); err != nil {
					_ = g.Wait()
					return nil, err
				}
				buf = NewPartBuffer(int(partSize))
			}
		}
		switch {
		case rerr == io.EOF:
			break readLoop
		case rerr != nil:
			_ = g.Wait()
			return nil, rerr
		}
	}

	if !startedMultipart && buf.Len() <= int(partSize) {
		// Caller-contract error already excluded: this is the in-spec revert
		// to single-part using the bytes already collected and their
		// already-computed digest (spec §4.1's EOF-with-partNumber==1 rule).
		sha1hex := in.SHA1
		if sha1hex == "" {
			sha1hex = buf.SHA1Hex()
		}
		payload := buf.Bytes()
		return SinglePartUpload(ctx, d.Client, d.SinglePool, d.Budget, in.FileName, in.ContentType, in.FileInfo, sha1hex, int64(buf.Len()), func() io.Reader { return bytes.NewReader(payload) })
	}

	if buf.Len() > 0 {
		if err := dispatch(buf); err != nil {
			_ = g.Wait()
			return nil, err
		}
	}

	if err := g.Wait(); err != nil {
		mu.Lock()
		id := fileID
		mu.Unlock()
		if d.CancelLargeFile != nil && id != "" {
			d.CancelLargeFile(context.Background(), id)
		}
		return nil, err
	}

	if fileID == "" {
		// Nothing was ever written (empty stream, zero parts sealed, and the
		// revert-to-single-part branch above already handles buf.Len()==0
		// too, since 0 <= partSize) — defensive, should be unreachable.
		return nil, fmt.Errorf("b2: multipart upload produced no parts")
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].Num < parts[j].Num })
	shas := make([]string, len(parts))
	for i, p := range parts {
		shas[i] = p.SHA1
	}

	return d.FinishLargeFile(ctx, fileID, shas)
}
