package lockfile

import (
	_ "crypto/sha256" // go-digest canonical algorithm
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
)

// checksumWorkers bounds concurrent file hashing.
const checksumWorkers = 8

// Drift describes a recorded file whose on-disk state no longer matches.
type Drift struct {
	BundleID string
	Path     string
	Expected string
	Actual   string // empty when the file is missing
}

// Missing reports whether the file no longer exists.
func (d Drift) Missing() bool { return d.Actual == "" }

// CollectFiles checksums the synced paths, which are relative to
// workspaceRoot; directories are walked. If synced is empty or any path
// cannot be read, the bundle cache copy at cacheDir is checksummed instead.
func CollectFiles(workspaceRoot string, synced []string, cacheDir string) ([]FileChecksum, error) {
	if len(synced) > 0 {
		files, err := expand(workspaceRoot, synced)
		if err == nil {
			sums, err := checksumAll(workspaceRoot, files, false)
			if err == nil {
				return sums, nil
			}
		}
	}
	if cacheDir == "" {
		return nil, nil
	}

	files, err := expand(cacheDir, []string{"."})
	if err != nil {
		return nil, fmt.Errorf("listing cache copy: %w", err)
	}
	return checksumAll(cacheDir, files, true)
}

// Verify rechecks every recorded workspace file. Cache-relative entries are
// not part of the repository tree and are skipped.
func (m *Manager) Verify() ([]Drift, error) {
	lf, err := m.Read()
	if err != nil || lf == nil {
		return nil, err
	}

	ids := make([]string, 0, len(lf.Bundles))
	for id := range lf.Bundles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var drifts []Drift
	for _, id := range ids {
		for _, f := range lf.Bundles[id].Files {
			if f.Cache {
				continue
			}
			actual, err := fileDigest(filepath.Join(m.root, filepath.FromSlash(f.Path)))
			switch {
			case os.IsNotExist(err):
				drifts = append(drifts, Drift{BundleID: id, Path: f.Path, Expected: f.Checksum})
			case err != nil:
				return drifts, fmt.Errorf("checking %s: %w", f.Path, err)
			case actual != f.Checksum:
				drifts = append(drifts, Drift{BundleID: id, Path: f.Path, Expected: f.Checksum, Actual: actual})
			}
		}
	}
	return drifts, nil
}

// expand resolves rels against root into a flat list of regular files,
// following a symlinked directory at the top level only.
func expand(root string, rels []string) ([]string, error) {
	var out []string
	for _, rel := range rels {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, abs)
			continue
		}
		walkRoot, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, err
		}
		err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			r, err := filepath.Rel(walkRoot, path)
			if err != nil {
				return err
			}
			out = append(out, filepath.Join(abs, r))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func checksumAll(root string, files []string, cache bool) ([]FileChecksum, error) {
	sums := make([]FileChecksum, len(files))

	var g errgroup.Group
	g.SetLimit(checksumWorkers)
	for i, file := range files {
		g.Go(func() error {
			d, err := fileDigest(file)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, file)
			if err != nil {
				return err
			}
			sums[i] = FileChecksum{Path: filepath.ToSlash(rel), Checksum: d, Cache: cache}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(sums, func(i, j int) bool { return sums[i].Path < sums[j].Path })
	return dedupe(sums), nil
}

func dedupe(sums []FileChecksum) []FileChecksum {
	out := sums[:0]
	for _, s := range sums {
		if len(out) > 0 && out[len(out)-1].Path == s.Path {
			continue
		}
		out = append(out, s)
	}
	return out
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d, err := digest.FromReader(f)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}
