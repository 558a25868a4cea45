package staging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PlatformFile is the sidecar manifest exported alongside every item.
const PlatformFile = ".platform"

type platformManifest struct {
	Metadata struct {
		Type        string `json:"type"`
		DisplayName string `json:"displayName"`
	} `json:"metadata"`
}

// ResolveIdentity returns the item type and display name for a staged
// artifact. Explicitly supplied values are returned as-is without touching
// the filesystem; anything left unspecified is read from the .platform
// manifest at the staging root. A missing manifest when identity is not
// fully explicit is a hard error: the deployment cannot proceed without
// knowing what it is importing.
func ResolveIdentity(stagingPath, itemType, itemName string) (string, string, error) {
	if itemType != "" && itemName != "" {
		return itemType, itemName, nil
	}

	data, err := os.ReadFile(filepath.Join(stagingPath, PlatformFile))
	if err != nil {
		return "", "", fmt.Errorf("artifact identity unspecified and %s manifest unreadable: %w", PlatformFile, err)
	}

	var m platformManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return "", "", fmt.Errorf("parsing %s manifest: %w", PlatformFile, err)
	}

	if itemType == "" {
		itemType = m.Metadata.Type
	}
	if itemName == "" {
		itemName = m.Metadata.DisplayName
	}
	if itemType == "" || itemName == "" {
		return "", "", fmt.Errorf("manifest in %s declares no type or displayName", stagingPath)
	}

	return itemType, itemName, nil
}
