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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/kelindar/b2/internal/bzerr"
	"github.com/kelindar/b2/internal/pool"
	"github.com/kelindar/b2/internal/wire"
)

// transferOutcome is what a single raw upload attempt (spec §4.4/§4.5)
// produced: either a decoded file response on 200, or a status/body pair the
// caller's retry loop classifies itself (uploads bypass RequestExecutor
// entirely, per spec: "its own retry policy").
type transferOutcome struct {
	File   *wire.FileResponse
	Status int
	Body   *bzerr.Body
}

// rawUpload performs exactly one HTTP POST to a leased upload URL. partNumber
// of 0 means a single-part (b2_upload_file) request; any other value selects
// b2_upload_part framing. It never retries and never touches the lease pool:
// that policy lives in SinglePartUpload/PartUpload, since only they know
// whether a failure should invalidate the lease.
func rawUpload(ctx context.Context, client *http.Client, lease pool.Lease, fileName, contentType string, fileInfo map[string]string, partNumber int, sha1Header string, contentLength int64, body io.Reader) (transferOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lease.UploadURL, body)
	if err != nil {
		return transferOutcome{}, err
	}
	req.ContentLength = contentLength
	req.Header.Set("Authorization", lease.Token)
	req.Header.Set("X-Bz-Content-Sha1", sha1Header)
	req.Header.Set("Content-Length", strconv.FormatInt(contentLength, 10))

	if partNumber > 0 {
		req.Header.Set("X-Bz-Part-Number", strconv.Itoa(partNumber))
	} else {
		req.Header.Set("X-Bz-File-Name", escapeFileName(fileName))
		ct := contentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		req.Header.Set("Content-Type", ct)
		for k, v := range fileInfo {
			req.Header.Set("X-Bz-Info-"+k, v)
		}
	}

	res, err := client.Do(req)
	if err != nil {
		return transferOutcome{}, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return transferOutcome{}, err
	}

	if res.StatusCode == 200 {
		var fr wire.FileResponse
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &fr); err != nil {
				return transferOutcome{}, err
			}
		}
		return transferOutcome{File: &fr, Status: 200}, nil
	}

	var eb bzerr.Body
	_ = json.Unmarshal(raw, &eb)
	return transferOutcome{Status: res.StatusCode, Body: &eb}, nil
}

// escapeFileName percent-encodes name the way B2 requires for the
// X-Bz-File-Name header, leaving '/' unescaped so directory-style object
// names survive intact — the same "almost path escape" idea the teacher
// applies to S3 object keys, adapted for a single header value instead of a
// full request path.
func escapeFileName(name string) string {
	const hex = "0123456789ABCDEF"
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~', c == '/':
			out = append(out, c)
		default:
			out = append(out, '%', hex[c>>4], hex[c&0xf])
		}
	}
	return string(out)
}
