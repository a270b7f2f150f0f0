package utm

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "links.db"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndGet(t *testing.T) {
	store := setupTestStore(t)

	link := &SavedLink{
		Label:       "Spring launch",
		Destination: "https://example.com/page",
		Platform:    "youtube",
		Params:      Params{Source: "youtube", Medium: "video", Campaign: "launch"},
		Link:        "https://example.com/page?utm_source=youtube&utm_medium=video&utm_campaign=launch",
	}
	if err := store.Save(link); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if link.ID == "" {
		t.Error("Save() did not assign an ID")
	}
	if link.CreatedAt.IsZero() {
		t.Error("Save() did not set CreatedAt")
	}

	got, err := store.Get(link.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil")
	}
	if got.Link != link.Link || got.Params.Source != "youtube" {
		t.Errorf("Get() = %+v", got)
	}

	missing, err := store.Get("nonexistent")
	if err != nil {
		t.Fatalf("Get(missing) error = %v", err)
	}
	if missing != nil {
		t.Error("Get(missing) should return nil")
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := setupTestStore(t)

	now := time.Now()
	for i, label := range []string{"oldest", "middle", "newest"} {
		link := &SavedLink{
			Label:     label,
			Link:      "https://example.com/?utm_source=s",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Save(link); err != nil {
			t.Fatalf("Save(%s) error = %v", label, err)
		}
	}

	links, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(links) != 3 {
		t.Fatalf("List() returned %d links, want 3", len(links))
	}
	if links[0].Label != "newest" || links[2].Label != "oldest" {
		t.Errorf("List() order: %s, %s, %s", links[0].Label, links[1].Label, links[2].Label)
	}
}

func TestStore_Delete(t *testing.T) {
	store := setupTestStore(t)

	link := &SavedLink{Link: "https://example.com/?utm_source=s"}
	if err := store.Save(link); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Delete(link.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, err := store.Get(link.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("link still present after Delete()")
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.db")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	link := &SavedLink{Label: "kept", Link: "https://example.com/?utm_source=s"}
	if err := store.Save(link); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	store.Close()

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore(reopen) error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(link.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Label != "kept" {
		t.Errorf("Get() after reopen = %+v", got)
	}
}

func TestQRPNG(t *testing.T) {
	png, err := QRPNG("https://example.com/page?utm_source=youtube", 256)
	if err != nil {
		t.Fatalf("QRPNG() error = %v", err)
	}
	if len(png) == 0 {
		t.Fatal("QRPNG() returned empty image")
	}
	// PNG magic bytes
	if string(png[1:4]) != "PNG" {
		t.Errorf("QRPNG() did not return a PNG")
	}

	if _, err := QRPNG("", 256); err == nil {
		t.Error("QRPNG(empty) should fail")
	}
}
