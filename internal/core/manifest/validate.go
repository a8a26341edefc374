package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/barysiuk/promptrow/internal/core/asset"
	"github.com/barysiuk/promptrow/internal/core/bundle"
)

// Validate loads the manifest from an extracted bundle tree and checks it
// against the descriptor the caller asked for. A tree without a manifest
// gets a synthesized one.
func Validate(dir string, d bundle.Descriptor) (*Manifest, error) {
	m, err := Load(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Synthesize(dir, d)
	}
	if err != nil {
		return nil, err
	}

	var missing []string
	if strings.TrimSpace(m.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(m.Version) == "" {
		missing = append(missing, "version")
	}
	if strings.TrimSpace(m.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required field(s): %s", ErrInvalid, strings.Join(missing, ", "))
	}

	if !MatchesID(m.ID, m.Version, d.ID) {
		return nil, fmt.Errorf("%w: manifest declares %q, requested %q", ErrIDMismatch, m.ID, d.ID)
	}
	if d.Version != bundle.VersionLatest && d.Version != "" && m.Version != d.Version {
		return nil, fmt.Errorf("%w: manifest declares %q, requested %q", ErrVersionMismatch, m.Version, d.Version)
	}
	return m, nil
}

// MatchesID reports whether a manifest id identifies the requested bundle.
// Source adapters build composite ids such as "owner-repo-collection-1.0.0",
// so besides an exact match the descriptor id may end in
// "-<id>-<version>", "-<id>-v<version>", or "-<id>".
func MatchesID(manifestID, manifestVersion, descriptorID string) bool {
	if manifestID == descriptorID {
		return true
	}
	if manifestID == "" {
		return false
	}
	if manifestVersion != "" {
		v := strings.TrimPrefix(manifestVersion, "v")
		if strings.HasSuffix(descriptorID, "-"+manifestID+"-"+v) ||
			strings.HasSuffix(descriptorID, "-"+manifestID+"-v"+v) {
			return true
		}
	}
	return strings.HasSuffix(descriptorID, "-"+manifestID)
}

// Synthesize builds a minimal manifest for a bundle that ships none. Items
// are discovered from the tree by naming convention.
func Synthesize(dir string, d bundle.Descriptor) (*Manifest, error) {
	name := d.Name
	if name == "" {
		name = d.ID
	}
	m := &Manifest{
		ID:          d.ID,
		Version:     d.Version,
		Name:        name,
		Description: d.Description,
		Author:      d.Author,
		Common: Common{
			Directories: []string{},
			Files:       []string{},
			Include:     []string{"**/*"},
			Exclude:     []string{},
		},
		BundleSettings: BundleSettings{
			Compression: "none",
			Naming:      "{collection}-{version}",
		},
		Metadata: Metadata{
			ManifestVersion: "1.0",
			Author:          d.Author,
			Description:     d.Description,
			LastUpdated:     time.Now().UTC().Format(time.RFC3339),
		},
	}

	found, err := asset.Discover(dir)
	if err != nil {
		return nil, fmt.Errorf("discovering items: %w", err)
	}
	seen := make(map[string]bool)
	for _, f := range found {
		key := string(f.Kind) + "/" + f.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		m.Prompts = append(m.Prompts, Item{
			ID:          f.ID,
			Name:        f.ID,
			Description: f.Description,
			File:        f.Path,
			Type:        f.Kind,
		})
	}
	return m, nil
}
