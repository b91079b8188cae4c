package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob" // registers mem://
	"gocloud.dev/gcerrors"
)

// BlobStore keeps chunks as objects in a gocloud.dev bucket. Any driver
// registered with the blob package can be used through a URL; the file and
// in-memory drivers are linked in.
type BlobStore struct {
	ref    string
	bucket *blob.Bucket
}

var _ Store = (*BlobStore)(nil)

// NewBlobStore opens the bucket named by ref. A ref without a URL scheme is
// treated as a local directory.
func NewBlobStore(ctx context.Context, ref string) (*BlobStore, error) {
	if ref == "" {
		return nil, fmt.Errorf("blob store needs a bucket URL or directory")
	}

	var (
		bucket *blob.Bucket
		err    error
	)
	if strings.Contains(ref, "://") {
		bucket, err = blob.OpenBucket(ctx, ref)
	} else {
		if err = os.MkdirAll(ref, 0o755); err != nil {
			return nil, fmt.Errorf("can't make directory at %s: %w", ref, err)
		}
		bucket, err = fileblob.OpenBucket(ref, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("can't open bucket reference @ %q: %w", ref, err)
	}
	return &BlobStore{ref: ref, bucket: bucket}, nil
}

// NewBlobStoreFromBucket wraps an already opened bucket. The store takes
// ownership and closes the bucket on Close.
func NewBlobStoreFromBucket(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

// Type implements Store.
func (s *BlobStore) Type() string { return BlobEngine }

// Get implements Store.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put implements Store.
func (s *BlobStore) Put(ctx context.Context, key string, val []byte) error {
	return s.bucket.WriteAll(ctx, key, val, nil)
}

// Delete implements Store.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Delete(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

// Close implements Store.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
