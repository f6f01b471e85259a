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
	"errors"
	"fmt"

	"github.com/kelindar/b2/internal/bzerr"
)

// Kind distinguishes the taxonomy of errors the core can surface (spec §7).
// Callers discriminate on Kind, never on Go type identity.
type Kind = bzerr.Kind

// Error is a server or usage error tagged with the B2 {status, code, message}
// payload that produced it, per spec §7's "sealed set of error kinds".
type Error = bzerr.Error

const (
	KindUnknown             = bzerr.KindUnknown
	KindBadRequest          = bzerr.KindBadRequest
	KindForbidden           = bzerr.KindForbidden
	KindUnauthorizedRequest = bzerr.KindUnauthorizedRequest
	KindUsageCapExceeded    = bzerr.KindUsageCapExceeded
	KindDownloadCapExceeded = bzerr.KindDownloadCapExceeded
	KindRangeNotSatisfiable = bzerr.KindRangeNotSatisfiable
	KindRequestTimeout      = bzerr.KindRequestTimeout
	KindTooManyRequests     = bzerr.KindTooManyRequests
	KindInternalServerError = bzerr.KindInternalServerError
	KindServiceUnavailable  = bzerr.KindServiceUnavailable
	KindExpiredCredentials  = bzerr.KindExpiredCredentials
	KindUnknownServerError  = bzerr.KindUnknownServerError
	KindUsageError          = bzerr.KindUsageError
	KindNotFound            = bzerr.KindNotFound
)

// ErrInvalidBucket is returned when a bucket name fails B2/S3-style
// validation (spec §9's bucket-name sanity check, retained from the teacher).
var ErrInvalidBucket = errors.New("b2: invalid bucket name")

// ErrFileNotFound is returned when FileHandle's lazy name->fileId resolution
// (spec §9) does not find an exact match.
var ErrFileNotFound = errors.New("b2: file not found")

// ErrAlreadyFinalized is a library-usage error: a write, or a second Close,
// was attempted on a FileHandle.WriteStream sink after it had already
// finalized (spec §4.1's "caller contract error if bytes arrive after
// Finalizing").
var ErrAlreadyFinalized = errors.New("b2: upload already finalized")

func badBucket(bucket string) error {
	return fmt.Errorf("%w: %q", ErrInvalidBucket, bucket)
}
