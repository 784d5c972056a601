package firestore

import "testing"

func TestDocumentKind(t *testing.T) {
	cases := []struct {
		id   string
		data map[string]any
		want string
	}{
		{id: "general", data: map[string]any{}, want: kindSettings},
		{id: "calendar", data: map[string]any{}, want: kindCalendar},
		{id: "yamato", data: map[string]any{"kind": " Shipping_Method "}, want: kindMethod},
		{id: "general", data: map[string]any{"kind": "surcharge"}, want: kindSurcharge},
		{id: "notes", data: map[string]any{"kind": 3}, want: ""},
	}
	for _, tc := range cases {
		if got := documentKind(tc.id, tc.data); got != tc.want {
			t.Fatalf("documentKind(%q, %v) = %q, want %q", tc.id, tc.data, got, tc.want)
		}
	}
}

func TestWithDocumentID(t *testing.T) {
	original := map[string]any{"name": "Yamato"}
	out := withDocumentID("yamato", original)
	if out["id"] != "yamato" {
		t.Fatalf("expected id to be set, got %v", out["id"])
	}
	if _, ok := original["id"]; ok {
		t.Fatalf("expected original map to stay untouched")
	}

	explicit := map[string]any{"id": "sagawa"}
	if got := withDocumentID("doc-1", explicit)["id"]; got != "sagawa" {
		t.Fatalf("expected explicit id to win, got %v", got)
	}
}

func TestConstructorsRequireProvider(t *testing.T) {
	if _, err := NewSettingsRepository(nil, "delivery_settings"); err == nil {
		t.Fatalf("expected settings repository to require provider")
	}
	if _, err := NewCatalogRepository(nil, "delivery_items"); err == nil {
		t.Fatalf("expected catalog repository to require provider")
	}
}
