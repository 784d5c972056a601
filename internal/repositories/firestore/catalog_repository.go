package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/hanko-field/delivery/internal/domain"
	pfirestore "github.com/hanko-field/delivery/internal/platform/firestore"
	"github.com/hanko-field/delivery/internal/repositories"
)

// CatalogRepository resolves catalog items stored in Firestore.
type CatalogRepository struct {
	base *pfirestore.BaseRepository[map[string]any]
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider, collection string) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository: firestore provider is required")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("catalog repository: collection is required")
	}
	base := pfirestore.NewBaseRepository[map[string]any](provider, collection, pfirestore.MapDecoder())
	return &CatalogRepository{base: base}, nil
}

// GetItem loads the item and, for variants, its parent. A missing parent leaves Parent unset.
func (r *CatalogRepository) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	if r == nil || r.base == nil {
		return domain.Item{}, errors.New("catalog repository not initialised")
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.Item{}, repositories.NewCatalogError("catalog.get", repositories.CatalogErrorItemNotFound, "item id is required", nil)
	}

	item, err := r.load(ctx, itemID)
	if err != nil {
		return domain.Item{}, err
	}
	if item.ParentID == "" || item.ParentID == item.ID {
		return item, nil
	}

	parent, err := r.load(ctx, item.ParentID)
	switch {
	case err == nil:
		item.Parent = &parent
	case errors.Is(err, repositories.ErrItemNotFound):
	default:
		return domain.Item{}, err
	}
	return item, nil
}

// Ping confirms the catalog collection is readable.
func (r *CatalogRepository) Ping(ctx context.Context) error {
	if r == nil || r.base == nil {
		return errors.New("catalog repository not initialised")
	}
	return r.base.Ping(ctx)
}

func (r *CatalogRepository) load(ctx context.Context, itemID string) (domain.Item, error) {
	doc, err := r.base.Get(ctx, itemID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.Item{}, repositories.NewCatalogError("catalog.get", repositories.CatalogErrorItemNotFound, fmt.Sprintf("item %s not found", itemID), err)
		}
		if pfirestore.IsUnavailable(err) {
			return domain.Item{}, repositories.NewCatalogError("catalog.get", repositories.CatalogErrorSourceUnavailable, "catalog unavailable", err)
		}
		return domain.Item{}, err
	}
	return repositories.DecodeItem(doc.ID, doc.Data), nil
}
