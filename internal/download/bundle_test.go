package download

import (
	"bytes"
	"testing"

	"storybind/pkg/models"
)

func TestBuildBundle(t *testing.T) {
	bundle, err := buildBundle([]models.Artifact{
		{Data: []byte("epub bytes"), Filename: "story_1.epub"},
		{Data: []byte("%PDF bytes"), Filename: "story_1.pdf"},
	})
	if err != nil {
		t.Fatalf("buildBundle: %v", err)
	}

	entries := readZipEntries(t, bundle)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if !bytes.Equal(entries["story_1.epub"], []byte("epub bytes")) {
		t.Error("Expected epub entry to round-trip")
	}
	if !bytes.Equal(entries["story_1.pdf"], []byte("%PDF bytes")) {
		t.Error("Expected pdf entry to round-trip")
	}
}
