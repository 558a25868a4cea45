package staging

import (
	"path/filepath"
	"testing"
)

func TestResolveIdentityExplicitBypassesManifest(t *testing.T) {
	// No filesystem access expected: the path does not exist.
	itemType, itemName, err := ResolveIdentity(filepath.Join(t.TempDir(), "nope"), "DataPipeline", "DP_Test")
	if err != nil {
		t.Fatalf("explicit identity must not touch the filesystem: %v", err)
	}
	if itemType != "DataPipeline" || itemName != "DP_Test" {
		t.Errorf("got (%s, %s)", itemType, itemName)
	}
}

func TestResolveIdentityFromManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, PlatformFile),
		`{"metadata": {"displayName": "DP_Test", "type": "DataPipeline"}}`)

	itemType, itemName, err := ResolveIdentity(dir, "", "")
	if err != nil {
		t.Fatalf("ResolveIdentity failed: %v", err)
	}
	if itemType != "DataPipeline" || itemName != "DP_Test" {
		t.Errorf("got (%s, %s), want (DataPipeline, DP_Test)", itemType, itemName)
	}
}

func TestResolveIdentityPartialExplicit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, PlatformFile),
		`{"metadata": {"displayName": "NB_Raw", "type": "Notebook"}}`)

	itemType, itemName, err := ResolveIdentity(dir, "", "Renamed")
	if err != nil {
		t.Fatal(err)
	}
	if itemType != "Notebook" || itemName != "Renamed" {
		t.Errorf("got (%s, %s), want (Notebook, Renamed)", itemType, itemName)
	}
}

func TestResolveIdentityMissingManifest(t *testing.T) {
	if _, _, err := ResolveIdentity(t.TempDir(), "", ""); err == nil {
		t.Fatal("expected error when manifest is absent and identity unspecified")
	}
}

func TestResolveIdentityEmptyManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, PlatformFile), `{"metadata": {}}`)

	if _, _, err := ResolveIdentity(dir, "", ""); err == nil {
		t.Fatal("expected error for manifest without type and displayName")
	}
}
