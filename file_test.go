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
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kelindar/b2/mock"
)

func TestFileHandleStatAndReadStream(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	_, err := b.Upload(context.Background(), "notes.txt", []byte("line one"), UploadOptions{ContentType: "text/plain"})
	assert.NoError(t, err)

	fh := b.File("notes.txt")
	meta, err := fh.Stat(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "notes.txt", meta.FileName)
	assert.Equal(t, int64(len("line one")), meta.ContentLength)

	rc, err := fh.ReadStream(context.Background())
	assert.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	assert.NoError(t, err)
	assert.Equal(t, "line one", string(got))
}

func TestFileHandleStatNotFound(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	fh := b.File("ghost.txt")
	_, err := fh.Stat(context.Background())
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestFileHandleStatCachesAfterListing(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	_, err := b.Upload(context.Background(), "cached.txt", []byte("x"), UploadOptions{})
	assert.NoError(t, err)

	files, err := drainFiles(b.Files(ListOptions{}))
	assert.NoError(t, err)
	assert.Len(t, files, 1)

	before := len(srv.RequestLog())
	meta, err := files[0].Stat(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "cached.txt", meta.FileName)
	assert.Equal(t, before, len(srv.RequestLog()), "a pre-populated handle must not re-resolve via the network")
}

func TestBucketDownloadByName(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	_, err := b.Upload(context.Background(), "by-name.txt", []byte("fetched by name"), UploadOptions{})
	assert.NoError(t, err)

	rc, err := b.DownloadByName(context.Background(), "by-name.txt")
	assert.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	assert.NoError(t, err)
	assert.Equal(t, "fetched by name", string(got))
}

func TestBucketDownloadByNameNotFound(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	_, err := b.DownloadByName(context.Background(), "missing.txt")
	var berr *Error
	assert.ErrorAs(t, err, &berr)
	assert.Equal(t, KindNotFound, berr.Kind)
}

func TestFileHandleWriteStream(t *testing.T) {
	srv := mock.New("my-bucket", 10) // small part size forces multi-part on the larger write below
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	fh := b.File("streamed.bin")
	w, err := fh.WriteStream(context.Background(), UploadOptions{})
	assert.NoError(t, err)

	content := bytes.Repeat([]byte("0123456789"), 5) // 50 bytes, 5 parts at size 10
	_, err = w.Write(content[:20])
	assert.NoError(t, err)
	_, err = w.Write(content[20:])
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	stored, ok := srv.StoredFile("streamed.bin")
	assert.True(t, ok)
	assert.Equal(t, content, stored)

	// A second Close, or a Write after Close, is a caller contract error.
	assert.ErrorIs(t, w.Close(), ErrAlreadyFinalized)
	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestFileHandleDelete(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	_, err := b.Upload(context.Background(), "temp.txt", []byte("gone soon"), UploadOptions{})
	assert.NoError(t, err)

	fh := b.File("temp.txt")
	assert.NoError(t, fh.Delete(context.Background()))

	_, ok := srv.StoredFile("temp.txt")
	assert.False(t, ok)
}
