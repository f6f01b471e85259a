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

// Package bzerr holds the error taxonomy (spec §7) shared by the root
// facade and the internal transport/pool/engine packages, so that neither
// side of that dependency needs to import the other just to classify a
// response.
package bzerr

import (
	"errors"
	"fmt"
)

// Kind distinguishes the taxonomy of errors the core can surface.
// Callers discriminate on Kind, never on Go type identity.
type Kind int

const (
	KindUnknown Kind = iota
	KindBadRequest
	KindForbidden
	KindUnauthorizedRequest
	KindUsageCapExceeded
	KindDownloadCapExceeded
	KindRangeNotSatisfiable
	KindRequestTimeout
	KindTooManyRequests
	KindInternalServerError
	KindServiceUnavailable
	KindExpiredCredentials
	KindUnknownServerError
	KindUsageError
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorizedRequest:
		return "unauthorized"
	case KindUsageCapExceeded:
		return "usage_cap_exceeded"
	case KindDownloadCapExceeded:
		return "download_cap_exceeded"
	case KindRangeNotSatisfiable:
		return "range_not_satisfiable"
	case KindRequestTimeout:
		return "request_timeout"
	case KindTooManyRequests:
		return "too_many_requests"
	case KindInternalServerError:
		return "internal_server_error"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindExpiredCredentials:
		return "expired_credentials"
	case KindUnknownServerError:
		return "unknown_server_error"
	case KindUsageError:
		return "usage_error"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a server or usage error tagged with the B2 {status, code, message}
// payload that produced it.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("b2: %s: %s: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("b2: %s: %v", e.Kind, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("b2: %s: %s (%d %s): %s", e.Op, e.Kind, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("b2: %s (%d %s): %s", e.Kind, e.Status, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets two *Error values compare equal on Kind, so callers and tests can
// do errors.Is(err, &bzerr.Error{Kind: KindServiceUnavailable}).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New builds a server-response error.
func New(op string, kind Kind, status int, code, message string) *Error {
	return &Error{Op: op, Kind: kind, Status: status, Code: code, Message: message}
}

// Wrap builds an error around a lower-level cause (transport failure, decode
// failure) tagged with a Kind.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Body is the JSON shape B2 returns on any non-200 response, duplicated here
// (rather than imported from internal/wire) to avoid a needless package
// dependency for a three-field struct used only for classification.
type Body struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClassifyAPI applies the classification table of spec §4.2 to a completed
// API response, returning the Kind the response maps to and whether it is
// retryable. A true retryable means "retry" (caller decides how, since retry
// needs state: the attempt counter and whether reauth already happened).
func ClassifyAPI(status int, body *Body) (kind Kind, retryable bool) {
	if status == 200 {
		return KindUnknown, false
	}
	if body != nil {
		switch body.Code {
		case "bad_request":
			return KindBadRequest, false
		case "unauthorized":
			return KindUnauthorizedRequest, false
		case "download_cap_exceeded":
			return KindDownloadCapExceeded, false
		case "bad_auth_token", "expired_auth_token":
			return KindExpiredCredentials, true
		}
	}
	switch status {
	case 400:
		return KindBadRequest, false
	case 403:
		return KindForbidden, false
	case 416:
		return KindRangeNotSatisfiable, false
	case 404:
		return KindNotFound, false
	case 408:
		return KindRequestTimeout, true
	case 429:
		return KindTooManyRequests, true
	case 500:
		return KindInternalServerError, true
	case 503:
		return KindServiceUnavailable, true
	default:
		return KindUnknownServerError, false
	}
}
