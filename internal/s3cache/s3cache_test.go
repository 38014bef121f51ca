// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package s3cache

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"go.uber.org/zap/zaptest"
	"willnorris.com/go/imagr/internal/filecache"
)

// mockS3Client is a mock implementation of the S3 client interface
type mockS3Client struct {
	s3iface.S3API

	mu       sync.Mutex
	storage  map[string][]byte
	putError error
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{
		storage: make(map[string][]byte),
	}
}

func (m *mockS3Client) GetObject(input *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.storage[*input.Key]; ok {
		return &s3.GetObjectOutput{
			Body: aws.ReadSeekCloser(bytes.NewReader(data)),
		}, nil
	}
	return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
}

func (m *mockS3Client) PutObject(input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	if m.putError != nil {
		return nil, m.putError
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storage[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.storage, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.storage)
}

func TestS3Cache(t *testing.T) {
	mock := newMockS3Client()
	c := newCache(mock, "test-bucket", "test-prefix", time.Second, zaptest.NewLogger(t))
	now := time.Unix(1_000_000, 0)
	c.now = func() time.Time { return now }

	t.Run("Basic Set and Get", func(t *testing.T) {
		key := "test-key"
		data := []byte("test-data")

		c.Set(key, data)
		got, exists := c.Get(key)
		if !exists {
			t.Error("expected data to exist in cache")
		}
		if string(got) != string(data) {
			t.Errorf("got %q, want %q", got, data)
		}
		if _, ok := mock.storage["test-prefix/"+filecache.UniqueID(key)]; !ok {
			t.Errorf("object not stored under prefixed unique id")
		}
	})

	t.Run("Expiration", func(t *testing.T) {
		key := "expiring-key"
		c.Set(key, []byte("expiring-data"))
		before := mock.len()

		now = now.Add(2 * time.Second)
		if _, exists := c.Get(key); exists {
			t.Error("expected data to be expired")
		}
		if got := mock.len(); got != before-1 {
			t.Errorf("expired object not deleted, %d objects remain", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := "delete-key"
		c.Set(key, []byte("delete-data"))
		c.Delete(key)

		if _, exists := c.Get(key); exists {
			t.Error("expected data to be deleted")
		}
	})

	t.Run("No TTL", func(t *testing.T) {
		key := "no-ttl-key"
		if err := c.Put(key, []byte("no-ttl-data"), 0); err != nil {
			t.Fatalf("Put returned error: %v", err)
		}
		now = now.Add(365 * 24 * time.Hour)
		if _, exists := c.Get(key); !exists {
			t.Error("expected data to still exist in cache with no TTL")
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		key := "corrupt-key"
		mock.storage["test-prefix/"+filecache.UniqueID(key)] = []byte("garbage")
		if _, exists := c.Get(key); exists {
			t.Error("expected corrupt entry to be a miss")
		}
		if _, ok := mock.storage["test-prefix/"+filecache.UniqueID(key)]; ok {
			t.Error("expected corrupt entry to be deleted")
		}
	})
}

func TestS3Cache_PutError(t *testing.T) {
	mock := newMockS3Client()
	mock.putError = errors.New("access denied")
	c := newCache(mock, "b", "", 0, nil)

	err := c.Put("k", []byte("v"), time.Hour)
	var serr *filecache.StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("Put returned %v, want *filecache.StorageError", err)
	}
	if want := "s3://b/" + filecache.UniqueID("k"); serr.Path != want {
		t.Errorf("StorageError.Path = %q, want %q", serr.Path, want)
	}

	// Set only logs
	c.Set("k", []byte("v"))
}

func TestNew(t *testing.T) {
	ttl := 24 * time.Hour
	c, err := New("s3://us-west-2/test-bucket/test-prefix?endpoint=localhost:9000&s3ForcePathStyle=1", ttl, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if c.ttl != ttl {
		t.Errorf("got TTL %v, want %v", c.ttl, ttl)
	}
	if c.bucket != "test-bucket" {
		t.Errorf("got bucket %q, want %q", c.bucket, "test-bucket")
	}
	if c.prefix != "test-prefix" {
		t.Errorf("got prefix %q, want %q", c.prefix, "test-prefix")
	}

	for _, s := range []string{"gcs://bucket", "s3://us-west-2/", "%zz"} {
		if _, err := New(s, ttl, nil); err == nil {
			t.Errorf("New(%q) did not return error", s)
		}
	}
}
