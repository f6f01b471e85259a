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

// Package mock provides an in-memory Backblaze B2 v2 API double for tests:
// authorize/list/upload/download/large-file operations speaking the same
// JSON wire format as the real service, plus hooks to force specific status
// codes so the retry/backoff paths can be exercised deterministically.
package mock

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// IDs come from one process-wide counter, so every mock instance hands out
// distinct ids.
var nextID = newIDGen()

func newIDGen() func(prefix string) string {
	var mu sync.Mutex
	var n int64
	return func(prefix string) string {
		mu.Lock()
		n++
		id := n
		mu.Unlock()
		return fmt.Sprintf("%s-%d", prefix, id)
	}
}

// Server is an in-memory B2 account: one or more buckets, their stored
// files, and any large files currently being assembled. It answers the full
// v2 API surface the client drives (authorize, bucket listing, upload-url
// minting, single- and multi-part upload, download, listing, delete).
type Server struct {
	api      *httptest.Server
	download *httptest.Server

	mu          sync.Mutex
	accountID   string
	keyID       string
	appKey      string
	authToken   string
	buckets     []bucketRecord
	files       map[string]*storedFile   // fileId -> file
	largeFiles map[string]*largeFile    // fileId -> in-progress large file
	uploadAuth  map[string]uploadGrant   // token -> grant (single-part)
	partAuth    map[string]string       // token -> fileId (part upload)
	requests    []RequestLog

	forceStatus    map[string]int    // path -> status to force on next N matches
	forceCode      map[string]string // path -> error code to force alongside the status
	forceRemaining map[string]int

	partSize int64
}

type bucketRecord struct {
	BucketID string
	Name     string
}

type storedFile struct {
	FileID          string
	FileName        string
	BucketID        string
	Content         []byte
	ContentSha1     string
	ContentType     string
	FileInfo        map[string]string
	UploadTimestamp int64
}

type largeFile struct {
	FileID      string
	BucketID    string
	FileName    string
	ContentType string
	FileInfo    map[string]string
	Parts       map[int][]byte
}

type uploadGrant struct{ BucketID string }

// RequestLog captures one request the mock observed, for assertions like
// "the client re-authorized exactly once".
type RequestLog struct {
	Method string
	Path   string
	Time   time.Time
}

// New starts a mock B2 account with a single bucket named bucketName and
// the given recommended part size (use a small value like 200 to exercise
// the multi-part path without huge test fixtures).
func New(bucketName string, partSize int64) *Server {
	s := &Server{
		accountID:      "act_" + nextID("acct"),
		keyID:          "key_" + nextID("key"),
		appKey:         "secret-" + nextID("sec"),
		authToken:      "token_" + nextID("auth"),
		files:          make(map[string]*storedFile),
		largeFiles:     make(map[string]*largeFile),
		uploadAuth:     make(map[string]uploadGrant),
		partAuth:       make(map[string]string),
		forceStatus:    make(map[string]int),
		forceCode:      make(map[string]string),
		forceRemaining: make(map[string]int),
		partSize:       partSize,
	}
	s.buckets = []bucketRecord{{BucketID: "bucket_" + nextID("bkt"), Name: bucketName}}

	s.api = httptest.NewServer(http.HandlerFunc(s.serveAPI))
	s.download = httptest.NewServer(http.HandlerFunc(s.serveDownload))
	return s
}

// Close shuts down both the API and download test servers.
func (s *Server) Close() {
	s.api.Close()
	s.download.Close()
}

// APIBaseURL is what Options.APIBaseURL should be pointed at.
func (s *Server) APIBaseURL() string { return s.api.URL }

// Credentials returns a (applicationKeyId, applicationKey) pair that
// authorizes successfully against this mock.
func (s *Server) Credentials() (string, string) { return s.keyID, s.appKey }

// BucketName returns the name of the one bucket this mock pre-creates.
func (s *Server) BucketName() string { return s.buckets[0].Name }

// ForceStatus makes the next n requests whose path ends with suffix receive
// the given status with a generic "forced" body code, instead of being
// handled normally — used to drive the retry/backoff paths.
func (s *Server) ForceStatus(pathSuffix string, status, n int) {
	s.ForceStatusCode(pathSuffix, status, "forced", n)
}

// ForceStatusCode is ForceStatus with an explicit body code, for forcing
// statuses whose retry/reauth behavior the executor keys off of (e.g. 401
// with "expired_auth_token" versus 401 with anything else).
func (s *Server) ForceStatusCode(pathSuffix string, status int, code string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceStatus[pathSuffix] = status
	s.forceCode[pathSuffix] = code
	s.forceRemaining[pathSuffix] = n
}

// StoredFile returns the bytes and metadata of a finished file by name, for
// assertions after a test upload.
func (s *Server) StoredFile(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if f.FileName == name {
			return f.Content, true
		}
	}
	return nil, false
}

// RequestLog returns every request this mock has observed, in order.
func (s *Server) RequestLog() []RequestLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RequestLog, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) logRequest(r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RequestLog{Method: r.Method, Path: r.URL.Path, Time: time.Now()})
	s.mu.Unlock()
}

// consumeForced reports whether path should be forced to a status right
// now, decrementing the remaining count.
func (s *Server) consumeForced(path string) (status int, code string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for suffix, remaining := range s.forceRemaining {
		if remaining <= 0 || !strings.HasSuffix(path, suffix) {
			continue
		}
		s.forceRemaining[suffix] = remaining - 1
		return s.forceStatus[suffix], s.forceCode[suffix], true
	}
	return 0, "", false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{"status": status, "code": code, "message": message})
}

func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) bool {
	tok := r.Header.Get("Authorization")
	s.mu.Lock()
	want := s.authToken
	s.mu.Unlock()
	if tok != want {
		writeErr(w, http.StatusUnauthorized, "expired_auth_token", "the auth token is no longer valid")
		return false
	}
	return true
}

// serveAPI routes every b2api/v2/* JSON operation.
func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request) {
	s.logRequest(r)
	if status, code, ok := s.consumeForced(r.URL.Path); ok {
		writeErr(w, status, code, "forced by test")
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/b2_authorize_account"):
		s.handleAuthorize(w, r)
	case strings.HasSuffix(r.URL.Path, "/b2_list_buckets"):
		s.handleListBuckets(w, r)
	case strings.HasSuffix(r.URL.Path, "/b2_get_upload_url"):
		s.handleGetUploadURL(w, r)
	case strings.HasSuffix(r.URL.Path, "/b2_get_upload_part_url"):
		s.handleGetUploadPartURL(w, r)
	case strings.HasSuffix(r.URL.Path, "/b2_start_large_file"):
		s.handleStartLargeFile(w, r)
	case strings.HasSuffix(r.URL.Path, "/b2_finish_large_file"):
		s.handleFinishLargeFile(w, r)
	case strings.HasSuffix(r.URL.Path, "/b2_cancel_large_file"):
		s.handleCancelLargeFile(w, r)
	case strings.HasSuffix(r.URL.Path, "/b2_list_file_names"):
		s.handleListFileNames(w, r)
	case strings.HasSuffix(r.URL.Path, "/b2_delete_file_version"):
		s.handleDeleteFileVersion(w, r)
	case strings.HasPrefix(r.URL.Path, "/upload/"):
		s.handleUploadFile(w, r)
	case strings.HasPrefix(r.URL.Path, "/upload_part/"):
		s.handleUploadPart(w, r)
	default:
		writeErr(w, http.StatusNotFound, "not_found", "no such operation: "+r.URL.Path)
	}
}

// serveDownload routes the download-by-id/by-name surface, which lives on
// its own base URL in the real API (spec §4.2's BaseDownloadAPI/ByName).
func (s *Server) serveDownload(w http.ResponseWriter, r *http.Request) {
	s.logRequest(r)
	if status, code, ok := s.consumeForced(r.URL.Path); ok {
		writeErr(w, status, code, "forced by test")
		return
	}
	switch {
	case strings.Contains(r.URL.Path, "/b2_download_file_by_id"):
		s.handleDownloadByID(w, r)
	case strings.HasPrefix(r.URL.Path, "/file/"):
		s.handleDownloadByName(w, r)
	default:
		writeErr(w, http.StatusNotFound, "not_found", "no such operation: "+r.URL.Path)
	}
}

func (s *Server) handleDownloadByID(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	fileID := r.URL.Query().Get("fileId")
	s.mu.Lock()
	f, ok := s.files[fileID]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	writeDownloadedFile(w, f)
}

// handleDownloadByName implements GET /file/{bucketName}/{fileName} (spec
// §4.2/§6's second download surface), looking the file up by name within
// the named bucket rather than by fileId.
func (s *Server) handleDownloadByName(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/file/")
	segs := strings.SplitN(rest, "/", 2)
	if len(segs) != 2 {
		writeErr(w, http.StatusBadRequest, "bad_request", "malformed download path")
		return
	}
	bucketName, fileName := segs[0], unescapeFileName(segs[1])

	s.mu.Lock()
	var bucketID string
	for _, b := range s.buckets {
		if b.Name == bucketName {
			bucketID = b.BucketID
			break
		}
	}
	var found *storedFile
	for _, f := range s.files {
		if f.BucketID == bucketID && f.FileName == fileName {
			found = f
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		writeErr(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	writeDownloadedFile(w, found)
}

func writeDownloadedFile(w http.ResponseWriter, f *storedFile) {
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("X-Bz-Content-Sha1", f.ContentSha1)
	w.Header().Set("X-Bz-File-Name", f.FileName)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Content)
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	const prefix = "Basic "
	if !strings.HasPrefix(auth, prefix) {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "missing basic auth")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, prefix))
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "malformed basic auth")
		return
	}
	parts := strings.SplitN(string(raw), ":", 2)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(parts) != 2 || parts[0] != s.keyID || parts[1] != s.appKey {
		writeErr(w, http.StatusUnauthorized, "bad_auth_token", "invalid applicationKeyId/applicationKey")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accountId":               s.accountID,
		"authorizationToken":      s.authToken,
		"apiUrl":                  s.api.URL,
		"downloadUrl":             s.download.URL,
		// A real account's absoluteMinimumPartSize is 5MB; tests pass a small
		// partSize to exercise the multi-part path, so mirror it here rather
		// than clamping every test upload back up to single-part.
		"absoluteMinimumPartSize": s.partSize,
		"recommendedPartSize":     s.partSize,
		"allowed": map[string]interface{}{
			"capabilities": []string{"listBuckets", "readFiles", "writeFiles"},
		},
	})
}

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	var req struct {
		BucketName string `json:"bucketName"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]string
	for _, b := range s.buckets {
		if req.BucketName != "" && b.Name != req.BucketName {
			continue
		}
		out = append(out, map[string]string{"accountId": s.accountID, "bucketId": b.BucketID, "bucketName": b.Name, "bucketType": "allPrivate"})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"buckets": out})
}

func (s *Server) handleGetUploadURL(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	var req struct {
		BucketID string `json:"bucketId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	token := "up_" + nextID("tok")
	s.mu.Lock()
	s.uploadAuth[token] = uploadGrant{BucketID: req.BucketID}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"bucketId":           req.BucketID,
		"uploadUrl":          s.api.URL + "/upload/" + req.BucketID + "/" + token,
		"authorizationToken": token,
	})
}

func (s *Server) handleGetUploadPartURL(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	var req struct {
		FileID string `json:"fileId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	_, ok := s.largeFiles[req.FileID]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusBadRequest, "bad_request", "no such large file")
		return
	}

	token := "pt_" + nextID("tok")
	s.mu.Lock()
	s.partAuth[token] = req.FileID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"fileId":             req.FileID,
		"uploadUrl":          s.api.URL + "/upload_part/" + req.FileID + "/" + token,
		"authorizationToken": token,
	})
}

func (s *Server) handleStartLargeFile(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	var req struct {
		BucketID    string            `json:"bucketId"`
		FileName    string            `json:"fileName"`
		ContentType string            `json:"contentType"`
		FileInfo    map[string]string `json:"fileInfo"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	id := "4_z" + nextID("lf")
	s.mu.Lock()
	s.largeFiles[id] = &largeFile{
		FileID: id, BucketID: req.BucketID, FileName: req.FileName,
		ContentType: req.ContentType, FileInfo: req.FileInfo,
		Parts: make(map[int][]byte),
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fileId": id, "bucketId": req.BucketID, "fileName": req.FileName,
		"contentType": req.ContentType, "fileInfo": req.FileInfo,
	})
}

func (s *Server) handleFinishLargeFile(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	var req struct {
		FileID        string   `json:"fileId"`
		PartSha1Array []string `json:"partSha1Array"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	lf, ok := s.largeFiles[req.FileID]
	if !ok {
		s.mu.Unlock()
		writeErr(w, http.StatusBadRequest, "bad_request", "no such large file")
		return
	}
	var nums []int
	for n := range lf.Parts {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	var content []byte
	for _, n := range nums {
		content = append(content, lf.Parts[n]...)
	}
	sum := sha1.Sum(content)
	f := &storedFile{
		FileID: lf.FileID, FileName: lf.FileName, BucketID: lf.BucketID,
		Content: content, ContentSha1: hex.EncodeToString(sum[:]),
		ContentType: lf.ContentType, FileInfo: lf.FileInfo,
		UploadTimestamp: 1,
	}
	s.files[f.FileID] = f
	delete(s.largeFiles, req.FileID)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, toFileResponse(f))
}

func (s *Server) handleCancelLargeFile(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	var req struct {
		FileID string `json:"fileId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	delete(s.largeFiles, req.FileID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"fileId": req.FileID})
}

func (s *Server) handleListFileNames(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	var req struct {
		BucketID      string `json:"bucketId"`
		StartFileName string `json:"startFileName"`
		MaxFileCount  int    `json:"maxFileCount"`
		Prefix        string `json:"prefix"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.MaxFileCount <= 0 {
		req.MaxFileCount = 100
	}

	s.mu.Lock()
	var names []string
	byName := make(map[string]*storedFile)
	for _, f := range s.files {
		if f.BucketID != req.BucketID {
			continue
		}
		if req.Prefix != "" && !strings.HasPrefix(f.FileName, req.Prefix) {
			continue
		}
		if f.FileName < req.StartFileName {
			continue
		}
		names = append(names, f.FileName)
		byName[f.FileName] = f
	}
	s.mu.Unlock()
	sort.Strings(names)

	var out []map[string]interface{}
	next := ""
	for i, name := range names {
		if i >= req.MaxFileCount {
			next = name
			break
		}
		out = append(out, toFileResponse(byName[name]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": out, "nextFileName": next})
}

func (s *Server) handleDeleteFileVersion(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	var req struct {
		FileID string `json:"fileId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	_, ok := s.files[req.FileID]
	delete(s.files, req.FileID)
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fileId": req.FileID})
}

// handleUploadFile implements the single-part b2_upload_file surface at a
// leased /upload/{bucketId}/{token} URL.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	segs := strings.Split(strings.TrimPrefix(r.URL.Path, "/upload/"), "/")
	if len(segs) != 2 {
		writeErr(w, http.StatusBadRequest, "bad_request", "malformed upload url")
		return
	}
	bucketID, token := segs[0], segs[1]

	s.mu.Lock()
	grant, ok := s.uploadAuth[token]
	s.mu.Unlock()
	if !ok || r.Header.Get("Authorization") != token || grant.BucketID != bucketID {
		writeErr(w, http.StatusUnauthorized, "expired_auth_token", "upload url is no longer valid")
		return
	}

	fileName := unescapeFileName(r.Header.Get("X-Bz-File-Name"))
	if fileName == "" {
		writeErr(w, http.StatusBadRequest, "bad_request", "missing X-Bz-File-Name")
		return
	}

	content, sum, err := readBodyWithSha1(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	fileInfo := map[string]string{}
	for k, v := range r.Header {
		if strings.HasPrefix(k, "X-Bz-Info-") {
			fileInfo[strings.TrimPrefix(k, "X-Bz-Info-")] = v[0]
		}
	}

	f := &storedFile{
		FileID: "4_z" + nextID("file"), FileName: fileName, BucketID: bucketID,
		Content: content, ContentSha1: sum, ContentType: r.Header.Get("Content-Type"),
		FileInfo: fileInfo, UploadTimestamp: 1,
	}
	s.mu.Lock()
	s.files[f.FileID] = f
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, toFileResponse(f))
}

// handleUploadPart implements b2_upload_part at a leased
// /upload_part/{fileId}/{token} URL.
func (s *Server) handleUploadPart(w http.ResponseWriter, r *http.Request) {
	segs := strings.Split(strings.TrimPrefix(r.URL.Path, "/upload_part/"), "/")
	if len(segs) != 2 {
		writeErr(w, http.StatusBadRequest, "bad_request", "malformed upload url")
		return
	}
	fileID, token := segs[0], segs[1]

	s.mu.Lock()
	grantFileID, ok := s.partAuth[token]
	lf, lfOK := s.largeFiles[fileID]
	s.mu.Unlock()
	if !ok || r.Header.Get("Authorization") != token || grantFileID != fileID || !lfOK {
		writeErr(w, http.StatusUnauthorized, "expired_auth_token", "upload url is no longer valid")
		return
	}

	partNumber, err := strconv.Atoi(r.Header.Get("X-Bz-Part-Number"))
	if err != nil || partNumber < 1 {
		writeErr(w, http.StatusBadRequest, "bad_request", "missing or invalid X-Bz-Part-Number")
		return
	}

	content, sum, err := readBodyWithSha1(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	s.mu.Lock()
	lf.Parts[partNumber] = content
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fileId": fileID, "partNumber": partNumber, "contentLength": len(content), "contentSha1": sum,
	})
}

// readBodyWithSha1 reads the request body, resolving the deferred-hash
// "hex_digits_at_end" convention (spec §4.4/S6) the same way the real
// service does: strip the trailing 40 hex bytes and treat them as the
// claimed digest rather than part of the content.
func readBodyWithSha1(r *http.Request) (content []byte, digestHex string, err error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	header := r.Header.Get("X-Bz-Content-Sha1")
	if header == "hex_digits_at_end" {
		if len(raw) < 40 {
			return nil, "", fmt.Errorf("body too short for deferred sha1 trailer")
		}
		content = raw[:len(raw)-40]
		digestHex = string(raw[len(raw)-40:])
		return content, digestHex, nil
	}
	return raw, header, nil
}

func unescapeFileName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '%' && i+2 < len(name) {
			b, err := strconv.ParseUint(name[i+1:i+3], 16, 8)
			if err == nil {
				out = append(out, byte(b))
				i += 2
				continue
			}
		}
		out = append(out, name[i])
	}
	return string(out)
}

func toFileResponse(f *storedFile) map[string]interface{} {
	return map[string]interface{}{
		"fileId": f.FileID, "fileName": f.FileName, "bucketId": f.BucketID,
		"contentLength": len(f.Content), "contentSha1": f.ContentSha1,
		"contentType": f.ContentType, "fileInfo": f.FileInfo,
		"action": "upload", "uploadTimestamp": f.UploadTimestamp,
	}
}
