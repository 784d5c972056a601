package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"

	domain "github.com/hanko-field/delivery/internal/domain"
	pfirestore "github.com/hanko-field/delivery/internal/platform/firestore"
	"github.com/hanko-field/delivery/internal/repositories"
)

// Document kinds stored in the delivery settings collection. Documents without a kind field are
// recognised by their well-known identifiers.
const (
	kindSettings  = "settings"
	kindCalendar  = "calendar"
	kindMethod    = "shipping_method"
	kindSurcharge = "surcharge"

	settingsDocumentID = "general"
	calendarDocumentID = "calendar"
)

// SettingsRepository loads the delivery configuration snapshot from one Firestore collection.
type SettingsRepository struct {
	base *pfirestore.BaseRepository[map[string]any]
}

var _ repositories.SettingsRepository = (*SettingsRepository)(nil)

// NewSettingsRepository constructs a Firestore-backed settings repository.
func NewSettingsRepository(provider *pfirestore.Provider, collection string) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository: firestore provider is required")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("settings repository: collection is required")
	}
	base := pfirestore.NewBaseRepository[map[string]any](provider, collection, pfirestore.MapDecoder())
	return &SettingsRepository{base: base}, nil
}

// LoadSnapshot reads every settings document and normalises them into a snapshot. Methods and
// surcharges are ordered by document ID so repeated loads produce identical snapshots.
func (r *SettingsRepository) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	if r == nil || r.base == nil {
		return domain.Snapshot{}, errors.New("settings repository not initialised")
	}

	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	var raw repositories.RawSnapshot
	for _, doc := range docs {
		data := doc.Data
		switch documentKind(doc.ID, data) {
		case kindSettings:
			raw.Settings = data
		case kindCalendar:
			raw.Calendar = data
		case kindMethod:
			raw.Methods = append(raw.Methods, withDocumentID(doc.ID, data))
		case kindSurcharge:
			raw.Surcharges = append(raw.Surcharges, withDocumentID(doc.ID, data))
		}
	}
	return repositories.DecodeSnapshot(raw), nil
}

// Ping confirms the settings collection is readable.
func (r *SettingsRepository) Ping(ctx context.Context) error {
	if r == nil || r.base == nil {
		return errors.New("settings repository not initialised")
	}
	return r.base.Ping(ctx)
}

func documentKind(id string, data map[string]any) string {
	if kind, ok := data["kind"].(string); ok && strings.TrimSpace(kind) != "" {
		return strings.ToLower(strings.TrimSpace(kind))
	}
	switch id {
	case settingsDocumentID:
		return kindSettings
	case calendarDocumentID:
		return kindCalendar
	default:
		return ""
	}
}

func withDocumentID(id string, data map[string]any) map[string]any {
	if existing, ok := data["id"].(string); ok && strings.TrimSpace(existing) != "" {
		return data
	}
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["id"] = id
	return out
}
