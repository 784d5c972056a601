package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	domain "github.com/hanko-field/delivery/internal/domain"
	"github.com/hanko-field/delivery/internal/repositories"
)

// document is the on-disk layout of a delivery configuration snapshot. Sections are decoded
// loosely and normalised by the shared repository decoder.
type document struct {
	Settings   map[string]any   `yaml:"settings"`
	Calendar   map[string]any   `yaml:"calendar"`
	Methods    []map[string]any `yaml:"shipping_methods"`
	Surcharges []map[string]any `yaml:"surcharges"`
	Items      []map[string]any `yaml:"items"`
}

// Contents is a parsed snapshot file: configuration plus the embedded catalog.
type Contents struct {
	Snapshot domain.Snapshot
	Items    map[string]domain.Item
}

// Parse decodes a YAML snapshot. Unknown top-level sections are rejected so that typos surface
// at load time; values inside sections are normalised rather than rejected.
func Parse(data []byte) (Contents, error) {
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Contents{}, fmt.Errorf("snapshot: decode yaml: %w", err)
	}

	contents := Contents{
		Snapshot: repositories.DecodeSnapshot(repositories.RawSnapshot{
			Settings:   doc.Settings,
			Calendar:   doc.Calendar,
			Methods:    doc.Methods,
			Surcharges: doc.Surcharges,
		}),
		Items: make(map[string]domain.Item, len(doc.Items)),
	}

	for _, raw := range doc.Items {
		item := repositories.DecodeItem("", raw)
		if item.ID == "" {
			continue
		}
		contents.Items[item.ID] = item
	}
	return contents, nil
}

// lookup resolves an item and links its parent when present.
func (c Contents) lookup(itemID string) (domain.Item, bool) {
	item, ok := c.Items[strings.TrimSpace(itemID)]
	if !ok {
		return domain.Item{}, false
	}
	if item.ParentID != "" && item.ParentID != item.ID {
		if parent, ok := c.Items[item.ParentID]; ok {
			item.Parent = &parent
		}
	}
	return item, true
}
