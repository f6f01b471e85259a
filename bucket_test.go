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
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kelindar/b2/mock"
)

func TestBucketResolvesIDByName(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)

	b := c.Bucket("my-bucket")
	id, err := b.ID(context.Background())
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	// Resolution is cached: a second call must not hit b2_list_buckets again.
	before := len(srv.RequestLog())
	_, err = b.ID(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, before, len(srv.RequestLog()))
}

func TestBucketRejectsInvalidName(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)

	b := c.Bucket("no")
	_, err := b.ID(context.Background())
	assert.ErrorIs(t, err, ErrInvalidBucket)
}

func TestBucketResolveUnknownNameNotFound(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)

	b := c.Bucket("does-not-exist")
	_, err := b.ID(context.Background())
	var berr *Error
	assert.ErrorAs(t, err, &berr)
	assert.Equal(t, KindNotFound, berr.Kind)
}

func TestUploadSinglePart(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	meta, err := b.Upload(context.Background(), "hello.txt", []byte("hello, world"), UploadOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "hello.txt", meta.FileName)
	assert.Equal(t, int64(len("hello, world")), meta.ContentLength)

	stored, ok := srv.StoredFile("hello.txt")
	assert.True(t, ok)
	assert.Equal(t, []byte("hello, world"), stored)
}

func TestUploadMultiPart(t *testing.T) {
	srv := mock.New("my-bucket", 10) // small recommended part size forces multi-part
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	data := bytes.Repeat([]byte("0123456789"), 5) // 50 bytes, 5 parts at size 10
	meta, err := b.Upload(context.Background(), "big.bin", data, UploadOptions{})
	assert.NoError(t, err)
	assert.Equal(t, int64(len(data)), meta.ContentLength)

	stored, ok := srv.StoredFile("big.bin")
	assert.True(t, ok)
	assert.Equal(t, data, stored)
}

func TestUploadStreamUnknownLength(t *testing.T) {
	srv := mock.New("my-bucket", 10)
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	content := bytes.Repeat([]byte("ab"), 30) // 60 bytes, unknown length up front
	meta, err := b.UploadStream(context.Background(), "stream.bin", bytes.NewReader(content), UploadOptions{ContentLength: -1})
	assert.NoError(t, err)
	assert.NotNil(t, meta)

	stored, ok := srv.StoredFile("stream.bin")
	assert.True(t, ok)
	assert.Equal(t, content, stored)
}

func TestFilesListsUploadedContent(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	_, err := b.Upload(context.Background(), "a.txt", []byte("a"), UploadOptions{})
	assert.NoError(t, err)
	_, err = b.Upload(context.Background(), "b.txt", []byte("bb"), UploadOptions{})
	assert.NoError(t, err)

	files, err := drainFiles(b.Files(ListOptions{}))
	assert.NoError(t, err)
	assert.Len(t, files, 2)

	names := map[string]bool{}
	for _, f := range files {
		names[f.Name()] = true
	}
	assert.True(t, names["a.txt"])
	assert.True(t, names["b.txt"])
}

// drainFiles exhausts a FileIterator into a slice, for tests that want to
// assert on the whole set rather than step through Next themselves.
func drainFiles(it *FileIterator) ([]*FileHandle, error) {
	var out []*FileHandle
	for {
		fh, err := it.Next(context.Background())
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, fh)
	}
}

func TestBucketOpenImplementsFsFS(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	_, err := b.Upload(context.Background(), "readme.txt", []byte("contents here"), UploadOptions{})
	assert.NoError(t, err)

	f, err := b.Open("readme.txt")
	assert.NoError(t, err)
	defer f.Close()

	got, err := io.ReadAll(f)
	assert.NoError(t, err)
	assert.Equal(t, "contents here", string(got))
}

func TestBucketOpenMissingFile(t *testing.T) {
	srv := mock.New("my-bucket", 1024)
	defer srv.Close()
	c := newTestClient(t, srv)
	b := c.Bucket(srv.BucketName())

	_, err := b.Open("nope.txt")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
