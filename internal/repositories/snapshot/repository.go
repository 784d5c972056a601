package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	domain "github.com/hanko-field/delivery/internal/domain"
	"github.com/hanko-field/delivery/internal/repositories"
)

const defaultRefreshInterval = 30 * time.Second

// Source returns the raw bytes of a snapshot file.
type Source func(ctx context.Context) ([]byte, error)

// ObjectReader reads objects from a bucket.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)
}

// FileSource reads the snapshot from the local filesystem.
func FileSource(path string) Source {
	return func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
		}
		return data, nil
	}
}

// ObjectSource reads the snapshot from Cloud Storage.
func ObjectSource(reader ObjectReader, bucket, object string) Source {
	return func(ctx context.Context) ([]byte, error) {
		if reader == nil {
			return nil, errors.New("snapshot: object reader is required")
		}
		return reader.ReadObject(ctx, bucket, object)
	}
}

// Option customises the repository.
type Option func(*Repository)

// WithRefreshInterval sets how long a parsed snapshot is reused. Zero re-reads on every call.
func WithRefreshInterval(interval time.Duration) Option {
	return func(r *Repository) {
		if interval >= 0 {
			r.refresh = interval
		}
	}
}

// WithClock injects a custom clock primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Repository) {
		if clock != nil {
			r.now = clock
		}
	}
}

// Repository serves settings and catalog lookups from a YAML snapshot.
type Repository struct {
	source  Source
	refresh time.Duration
	now     func() time.Time

	mu       sync.Mutex
	cached   Contents
	loadedAt time.Time
	loaded   bool
}

var (
	_ repositories.SettingsRepository = (*Repository)(nil)
	_ repositories.CatalogRepository  = (*Repository)(nil)
)

// NewRepository constructs a snapshot repository reading from source.
func NewRepository(source Source, opts ...Option) (*Repository, error) {
	if source == nil {
		return nil, errors.New("snapshot repository: source is required")
	}
	repo := &Repository{
		source:  source,
		refresh: defaultRefreshInterval,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// LoadSnapshot returns the configuration part of the snapshot.
func (r *Repository) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	contents, err := r.contents(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return contents.Snapshot, nil
}

// GetItem resolves an item embedded in the snapshot.
func (r *Repository) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	contents, err := r.contents(ctx)
	if err != nil {
		return domain.Item{}, err
	}
	item, ok := contents.lookup(itemID)
	if !ok {
		return domain.Item{}, repositories.NewCatalogError("snapshot.get_item", repositories.CatalogErrorItemNotFound, fmt.Sprintf("item %s not found", strings.TrimSpace(itemID)), nil)
	}
	return item, nil
}

// Ping forces a reload so readiness reflects the current state of the source.
func (r *Repository) Ping(ctx context.Context) error {
	data, err := r.source(ctx)
	if err != nil {
		return err
	}
	_, err = Parse(data)
	return err
}

func (r *Repository) contents(ctx context.Context) (Contents, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.loaded && r.refresh > 0 && now.Sub(r.loadedAt) < r.refresh {
		return r.cached, nil
	}

	data, err := r.source(ctx)
	if err != nil {
		return Contents{}, repositories.NewCatalogError("snapshot.load", repositories.CatalogErrorSourceUnavailable, "snapshot source unavailable", err)
	}
	contents, err := Parse(data)
	if err != nil {
		return Contents{}, err
	}
	r.cached = contents
	r.loadedAt = now
	r.loaded = true
	return contents, nil
}
