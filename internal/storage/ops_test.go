package storage

import (
	"os"
	"testing"
)

func TestArtStore(t *testing.T) {
	store, err := NewArtStore(t.TempDir() + "/art")
	if err != nil {
		t.Fatalf("NewArtStore failed: %v", err)
	}

	name := store.Filename(42)
	if name != "42.jpg" {
		t.Errorf("Expected 42.jpg, got %s", name)
	}

	if store.Exists(name) {
		t.Error("Expected file not to exist yet")
	}

	if err := store.Write(name, []byte("image data")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !store.Exists(name) {
		t.Error("Expected file to exist after write")
	}

	data, err := os.ReadFile(store.Path(name))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "image data" {
		t.Errorf("Unexpected contents %q", data)
	}

	if err := store.Remove(name); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if store.Exists(name) {
		t.Error("Expected file removed")
	}

	// Removing a missing file is a no-op.
	if err := store.Remove(name); err != nil {
		t.Errorf("Expected no error removing missing file, got %v", err)
	}
}
