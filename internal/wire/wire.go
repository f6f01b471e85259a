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

// Package wire defines the JSON request/response shapes of the B2 v2 API.
// It holds no behavior: parsing and serialization are plumbing, not part of
// the core (see spec §1). Field names follow the wire protocol exactly.
package wire

// ErrorBody is the JSON body B2 returns on any non-200 response.
type ErrorBody struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthorizeAccountResponse is the result of b2_authorize_account.
type AuthorizeAccountResponse struct {
	AccountID               string       `json:"accountId"`
	AuthorizationToken      string       `json:"authorizationToken"`
	APIURL                  string       `json:"apiUrl"`
	DownloadURL             string       `json:"downloadUrl"`
	AbsoluteMinimumPartSize int64        `json:"absoluteMinimumPartSize"`
	RecommendedPartSize     int64        `json:"recommendedPartSize"`
	Allowed                 AllowedBlock `json:"allowed"`
}

// AllowedBlock is the capability descriptor nested in AuthorizeAccountResponse.
type AllowedBlock struct {
	Capabilities []string `json:"capabilities"`
	BucketID     string   `json:"bucketId,omitempty"`
	BucketName   string   `json:"bucketName,omitempty"`
	NamePrefix   string   `json:"namePrefix,omitempty"`
}

// ListBucketsRequest is the body of b2_list_buckets.
type ListBucketsRequest struct {
	AccountID  string `json:"accountId"`
	BucketID   string `json:"bucketId,omitempty"`
	BucketName string `json:"bucketName,omitempty"`
}

// BucketInfo describes a single bucket as returned by b2_list_buckets.
type BucketInfo struct {
	AccountID string `json:"accountId"`
	BucketID  string `json:"bucketId"`
	Name      string `json:"bucketName"`
	Type      string `json:"bucketType"`
}

// ListBucketsResponse is the result of b2_list_buckets.
type ListBucketsResponse struct {
	Buckets []BucketInfo `json:"buckets"`
}

// GetUploadURLRequest is the body of b2_get_upload_url.
type GetUploadURLRequest struct {
	BucketID string `json:"bucketId"`
}

// GetUploadURLResponse is the result of b2_get_upload_url.
type GetUploadURLResponse struct {
	BucketID           string `json:"bucketId"`
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

// StartLargeFileRequest is the body of b2_start_large_file.
type StartLargeFileRequest struct {
	BucketID    string            `json:"bucketId"`
	FileName    string            `json:"fileName"`
	ContentType string            `json:"contentType"`
	FileInfo    map[string]string `json:"fileInfo,omitempty"`
}

// StartLargeFileResponse is the result of b2_start_large_file.
type StartLargeFileResponse struct {
	FileID      string            `json:"fileId"`
	BucketID    string            `json:"bucketId"`
	FileName    string            `json:"fileName"`
	ContentType string            `json:"contentType"`
	FileInfo    map[string]string `json:"fileInfo,omitempty"`
}

// GetUploadPartURLRequest is the body of b2_get_upload_part_url.
type GetUploadPartURLRequest struct {
	FileID string `json:"fileId"`
}

// GetUploadPartURLResponse is the result of b2_get_upload_part_url.
type GetUploadPartURLResponse struct {
	FileID             string `json:"fileId"`
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

// FinishLargeFileRequest is the body of b2_finish_large_file.
type FinishLargeFileRequest struct {
	FileID        string   `json:"fileId"`
	PartSha1Array []string `json:"partSha1Array"`
}

// FileResponse is the file-metadata shape returned by b2_finish_large_file,
// b2_get_file_info, and as entries of b2_list_file_names.
type FileResponse struct {
	FileID          string            `json:"fileId"`
	FileName        string            `json:"fileName"`
	AccountID       string            `json:"accountId"`
	BucketID        string            `json:"bucketId"`
	ContentLength   int64             `json:"contentLength"`
	ContentSha1     string            `json:"contentSha1"`
	ContentType     string            `json:"contentType"`
	FileInfo        map[string]string `json:"fileInfo,omitempty"`
	Action          string            `json:"action"`
	UploadTimestamp int64             `json:"uploadTimestamp"`
}

// CancelLargeFileRequest is the body of b2_cancel_large_file.
type CancelLargeFileRequest struct {
	FileID string `json:"fileId"`
}

// CancelLargeFileResponse is the result of b2_cancel_large_file.
type CancelLargeFileResponse struct {
	FileID     string `json:"fileId"`
	BucketID   string `json:"bucketId"`
	AccountID  string `json:"accountId"`
	FileName   string `json:"fileName"`
}

// ListFileNamesRequest is the body of b2_list_file_names.
type ListFileNamesRequest struct {
	BucketID      string `json:"bucketId"`
	StartFileName string `json:"startFileName,omitempty"`
	MaxFileCount  int    `json:"maxFileCount,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
	Delimiter     string `json:"delimiter,omitempty"`
}

// ListFileNamesResponse is the result of b2_list_file_names.
type ListFileNamesResponse struct {
	Files        []FileResponse `json:"files"`
	NextFileName string         `json:"nextFileName,omitempty"`
}

// DeleteFileVersionRequest is the body of b2_delete_file_version.
type DeleteFileVersionRequest struct {
	FileName string `json:"fileName"`
	FileID   string `json:"fileId"`
}
