package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// defaultMaxObjectSize bounds configuration snapshots read from Cloud Storage.
const defaultMaxObjectSize int64 = 4 << 20

var (
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")

	// ErrObjectNotFound is returned when the requested object does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrObjectTooLarge is returned when an object exceeds the configured size limit.
	ErrObjectTooLarge = errors.New("storage: object exceeds size limit")
	// ErrReaderClosed is returned once Close has been called.
	ErrReaderClosed = errors.New("storage: reader is closed")
)

// ObjectOpener opens an object for reading. The default implementation uses a lazily created
// Cloud Storage client.
type ObjectOpener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

// Reader fetches small objects such as delivery configuration snapshots.
type Reader struct {
	clientOpts []option.ClientOption
	maxSize    int64
	open       ObjectOpener

	mu     sync.Mutex
	client *gcs.Client
	closed bool
}

// ReaderOption customises reader behaviour.
type ReaderOption func(*Reader)

// WithMaxObjectSize overrides the maximum accepted object size in bytes.
func WithMaxObjectSize(size int64) ReaderOption {
	return func(r *Reader) {
		if size > 0 {
			r.maxSize = size
		}
	}
}

// WithClientOptions appends options applied when the Cloud Storage client is created.
func WithClientOptions(opts ...option.ClientOption) ReaderOption {
	return func(r *Reader) {
		r.clientOpts = append(r.clientOpts, opts...)
	}
}

// WithObjectOpener replaces Cloud Storage access, used by tests.
func WithObjectOpener(open ObjectOpener) ReaderOption {
	return func(r *Reader) {
		if open != nil {
			r.open = open
		}
	}
}

// NewReader constructs a Reader.
func NewReader(opts ...ReaderOption) *Reader {
	reader := &Reader{maxSize: defaultMaxObjectSize}
	reader.open = reader.openGCS
	for _, opt := range opts {
		if opt != nil {
			opt(reader)
		}
	}
	return reader
}

// ReadObject returns the full contents of bucket/object.
func (r *Reader) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return nil, errInvalidObject
	}

	rc, err := r.open(ctx, bucket, object)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, fmt.Errorf("storage: open gs://%s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, r.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("storage: read gs://%s/%s: %w", bucket, object, err)
	}
	if int64(len(data)) > r.maxSize {
		return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectTooLarge, bucket, object)
	}
	return data, nil
}

// Close releases the Cloud Storage client when one was created.
func (r *Reader) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

func (r *Reader) openGCS(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	client, err := r.gcsClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (r *Reader) gcsClient(ctx context.Context) (*gcs.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrReaderClosed
	}
	if r.client != nil {
		return r.client, nil
	}
	client, err := gcs.NewClient(ctx, r.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}
	r.client = client
	return client, nil
}
