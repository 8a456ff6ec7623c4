package out_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	notifyout "focuskit/internal/modules/notify/adapter/out"
	"focuskit/internal/modules/notify/domain"
)

func TestFileManifestStoreLoadMissingReturnsEmpty(t *testing.T) {
	t.Parallel()
	store := notifyout.NewFileManifestStore(filepath.Join(t.TempDir(), "notifiers.json"))
	manifests, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load manifests: %v", err)
	}
	if len(manifests) != 0 {
		t.Fatalf("expected empty manifests, got %d", len(manifests))
	}
}

func TestFileManifestStoreResolvesRelativeBinary(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	raw := `[
  {
    "name": "desktop",
    "version": "1.0.0",
    "binary": "bin/desktop-notifier",
    "sha256": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
    "enabled": true,
    "kinds": ["completed", "error"]
  }
]`
	path := filepath.Join(base, "notifiers.json")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write notifiers.json: %v", err)
	}
	manifests, err := notifyout.NewFileManifestStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load manifests: %v", err)
	}
	if len(manifests) != 1 {
		t.Fatalf("expected one manifest, got %d", len(manifests))
	}
	if manifests[0].Binary != filepath.Join(base, "bin", "desktop-notifier") {
		t.Fatalf("expected binary resolved against manifest dir, got %s", manifests[0].Binary)
	}
	if len(manifests[0].Kinds) != 2 || manifests[0].Kinds[1] != domain.KindError {
		t.Fatalf("unexpected kinds %v", manifests[0].Kinds)
	}
}

func TestFileManifestStoreRejectsUnknownField(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "notifiers.json")
	raw := `[{"name": "desktop", "version": "1.0.0", "binary": "/tmp/n", "sha256": "", "capabilities": ["command"]}]`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write notifiers.json: %v", err)
	}
	if _, err := notifyout.NewFileManifestStore(path).Load(context.Background()); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
