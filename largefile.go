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

	"github.com/kelindar/b2/internal/pool"
	"github.com/kelindar/b2/internal/transport"
	"github.com/kelindar/b2/internal/wire"
)

// LargeFileContext is created by b2_start_large_file; its only essential
// field is the fileId (spec §3). It terminates on b2_finish_large_file or
// b2_cancel_large_file. The upload path does not construct this type: the
// engine tracks each multi-part Upload/UploadStream call's large file by its
// fileId string alone.
type LargeFileContext struct {
	FileID string
}

// startLargeFile calls b2_start_large_file with the bucket/fileName/
// contentType/fileInfo the engine is about to split into parts (spec §4.1's
// "Large-file kickoff"). fileName is fixed for the lifetime of one
// Upload/UploadStream call; engineDeps closes over it when wiring
// engine.Deps.StartLargeFile.
func (b *Bucket) startLargeFile(ctx context.Context, fileName string, opts UploadOptions) (string, error) {
	id, err := b.ID(ctx)
	if err != nil {
		return "", err
	}
	req := wire.StartLargeFileRequest{
		BucketID:    id,
		FileName:    fileName,
		ContentType: opts.ContentType,
		FileInfo:    opts.FileInfo,
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}
	var res wire.StartLargeFileResponse
	if err := b.client.exec.Do(ctx, "POST", transport.BaseAPI, "/b2api/v2/b2_start_large_file", req, &res); err != nil {
		return "", err
	}
	return res.FileID, nil
}

// mintPart mints a fresh part-upload lease via b2_get_upload_part_url (spec
// §4.3).
func (b *Bucket) mintPart(ctx context.Context, fileID string) (pool.Lease, error) {
	var res wire.GetUploadPartURLResponse
	err := b.client.exec.Do(ctx, "POST", transport.BaseAPI, "/b2api/v2/b2_get_upload_part_url", wire.GetUploadPartURLRequest{FileID: fileID}, &res)
	if err != nil {
		return pool.Lease{}, err
	}
	return pool.Lease{UploadURL: res.UploadURL, Token: res.AuthorizationToken, Scope: fileID}, nil
}

// finishLargeFile submits the part-number-ordered SHA-1 array to
// b2_finish_large_file (spec §4.1/§6).
func (b *Bucket) finishLargeFile(ctx context.Context, fileID string, partSha1Array []string) (*wire.FileResponse, error) {
	var res wire.FileResponse
	req := wire.FinishLargeFileRequest{FileID: fileID, PartSha1Array: partSha1Array}
	if err := b.client.exec.Do(ctx, "POST", transport.BaseAPI, "/b2api/v2/b2_finish_large_file", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// cancelLargeFile is the engine's best-effort cleanup on terminal failure
// (spec §4.1: "best-effort b2_cancel_large_file is permitted but not
// required"). Errors are deliberately swallowed: the caller already has the
// real failure to report, and a dangling unfinished large file is a B2-side
// storage cost, not a correctness problem for the caller.
func (b *Bucket) cancelLargeFile(ctx context.Context, fileID string) {
	_ = b.client.exec.Do(ctx, "POST", transport.BaseAPI, "/b2api/v2/b2_cancel_large_file", wire.CancelLargeFileRequest{FileID: fileID}, nil)
}
