package asset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// Found is an item located in a bundle tree by naming convention.
type Found struct {
	ID          string
	Kind        Kind
	Path        string // slash-separated, relative to the tree root
	Description string
}

// Discover walks root and returns every item recognized by a registered
// handler. Skill directories are not descended into. Hidden directories
// other than .github and .agents are skipped.
func Discover(root string) ([]Found, error) {
	var found []Found
	skill, _ := Get(KindSkill)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") && name != ".github" && name != ".agents" {
				return filepath.SkipDir
			}
			if name == "node_modules" {
				return filepath.SkipDir
			}
			if skill == nil {
				return nil
			}
			if id, ok := skill.Match(path, true); ok {
				f := Found{ID: id, Kind: KindSkill, Path: rel}
				if s, err := ParseSkill(path); err == nil {
					f.Description = s.Description
				}
				found = append(found, f)
				return filepath.SkipDir
			}
			return nil
		}

		for _, k := range Kinds() {
			h := handlers[k]
			if h.IsDirectory() {
				continue
			}
			if id, ok := h.Match(rel, false); ok {
				found = append(found, Found{ID: id, Kind: k, Path: rel})
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return found, nil
}
