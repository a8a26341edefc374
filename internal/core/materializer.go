package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/barysiuk/promptrow/internal/core/archive"
	"github.com/barysiuk/promptrow/internal/core/asset"
	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/fsutil"
	"github.com/barysiuk/promptrow/internal/core/manifest"
	"github.com/barysiuk/promptrow/internal/core/records"
)

// staged is a validated bundle tree ready to be installed.
type staged struct {
	desc     BundleDescriptor
	dir      string
	local    bool   // dir is the caller's file:// directory, used in place
	temp     string // extraction directory to remove after the operation
	manifest *manifest.Manifest
}

// stage extracts data, or locates the descriptor's file:// directory when
// data is nil, and validates the manifest against d.
func (o *Orchestrator) stage(d BundleDescriptor, data []byte) (*staged, error) {
	st := &staged{desc: d}

	if data == nil {
		dir, ok := d.LocalPath()
		if !ok {
			return nil, fmt.Errorf("bundle %s: no archive and no file:// location", d.ID)
		}
		if !fsutil.DirExists(dir) {
			return nil, fmt.Errorf("bundle %s: %s is not a directory", d.ID, dir)
		}
		st.dir, st.local = dir, true
	} else {
		if err := os.MkdirAll(o.layout.TempDir(), 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating temp dir: %v", ErrExtractionFailed, err)
		}
		dir, err := archive.Extract(data, o.layout.TempDir())
		if err != nil {
			return nil, err
		}
		st.dir, st.temp = dir, dir
	}
	o.log.Debug("bundle staged", "bundle", d.ID, "dir", st.dir, "local", st.local)

	m, err := manifest.Validate(st.dir, d)
	if err != nil {
		o.release(st)
		return nil, fmt.Errorf("validating bundle %s: %w", d.ID, err)
	}
	st.manifest = m
	return st, nil
}

// release removes the staged extraction directory, if any.
func (o *Orchestrator) release(st *staged) {
	if st != nil {
		o.cleanup(st.temp)
	}
}

// materialize populates installDir from the staged tree. External-skills
// bundles receive only their top-level skill folders.
func (o *Orchestrator) materialize(st *staged, installDir string) error {
	if fsutil.PathExists(installDir) {
		o.log.Debug("removing stale install directory", "path", installDir)
		if err := o.removeInstallDir(installDir); err != nil {
			return err
		}
	}

	if bundle.IsExternalSkills(st.desc.ID, st.desc.SourceType) {
		folders, err := fsutil.CopySkillFolders(st.dir, installDir)
		if err != nil {
			return fmt.Errorf("copying skill folders: %w", err)
		}
		o.log.Debug("skill folders copied", "bundle", st.desc.ID, "count", len(folders))
		return nil
	}
	if err := fsutil.CopyTree(st.dir, installDir); err != nil {
		return fmt.Errorf("copying bundle into %s: %w", installDir, err)
	}
	return nil
}

type skillPlacement struct {
	name   string
	source string
	target string
}

// planSkills resolves where every skill of a skills bundle goes under the
// scope's skills root and confirms each overwrite. Nothing is written, so a
// decline leaves the tree unchanged. Targets in owned belong to the
// installation being replaced and are not asked about.
func (o *Orchestrator) planSkills(st *staged, sc bundle.Scope, force bool, owned []string) ([]skillPlacement, error) {
	root, err := o.layout.SkillsDir(sc)
	if err != nil {
		return nil, err
	}

	var plan []skillPlacement
	for _, item := range st.manifest.ItemsOf(asset.KindSkill) {
		src := filepath.Join(st.dir, asset.SkillDir(item.File))
		if !fsutil.DirExists(src) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrSkillNotFound, item.ID, item.File)
		}
		name := skillDirName(item.ID)
		plan = append(plan, skillPlacement{name: name, source: src, target: filepath.Join(root, name)})
	}

	ours := make(map[string]bool, len(owned))
	for _, p := range owned {
		ours[filepath.Clean(p)] = true
	}

	for _, p := range plan {
		state, err := fsutil.Inspect(p.target)
		if err != nil {
			return nil, err
		}
		if !state.Exists || state.IsBroken {
			continue
		}
		if o.layout.IsNativeRoot(p.target) {
			return nil, fmt.Errorf("%w: %s", ErrNativeRoot, p.target)
		}
		if force || ours[filepath.Clean(p.target)] {
			continue
		}
		ok, err := o.confirmer.ConfirmOverwrite(p.name, p.target)
		if err != nil {
			return nil, fmt.Errorf("confirming overwrite of %s: %w", p.target, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: skill %s already exists at %s", ErrInstallationCancelled, p.name, p.target)
		}
	}
	return plan, nil
}

// placeSkills writes a confirmed plan. On failure the skills placed so far
// are removed again.
func (o *Orchestrator) placeSkills(st *staged, plan []skillPlacement) ([]string, error) {
	link := st.desc.SourceType == bundle.SourceTypeLocalSkills && st.local
	var placed []string
	for _, p := range plan {
		if err := o.placeSkill(p, link); err != nil {
			o.removeSkills(placed)
			return nil, fmt.Errorf("installing skill %s: %w", p.name, err)
		}
		placed = append(placed, p.target)
	}
	return placed, nil
}

// checkItems fails when a manifest item's file or skill directory is missing
// from the staged tree, before anything is synced.
func checkItems(st *staged, skipSkills bool) error {
	for _, item := range st.manifest.Prompts {
		h, ok := asset.Get(item.Kind())
		if !ok {
			continue
		}
		if h.IsDirectory() {
			if skipSkills {
				continue
			}
			if !present(filepath.Join(st.dir, asset.SkillDir(item.File))) {
				return fmt.Errorf("%w: %s (%s)", ErrSkillNotFound, item.ID, item.File)
			}
			continue
		}
		if !present(filepath.Join(st.dir, filepath.FromSlash(item.File))) {
			return fmt.Errorf("%w: %s (%s)", ErrItemNotFound, item.ID, item.File)
		}
	}
	return nil
}

func present(path string) bool {
	state, err := fsutil.Inspect(path)
	return err == nil && state.Exists && !state.IsBroken
}

func (o *Orchestrator) placeSkill(p skillPlacement, link bool) error {
	state, err := fsutil.Inspect(p.target)
	if err != nil {
		return err
	}
	if state.IsBroken {
		o.log.Debug("replacing broken skill symlink", "path", p.target)
	}
	if state.Exists {
		if err := fsutil.RemoveTree(p.target); err != nil {
			return fmt.Errorf("removing existing %s: %w", p.target, err)
		}
	}

	if link {
		linked, err := fsutil.LinkOrCopyDir(p.source, p.target)
		if err != nil {
			return err
		}
		if !linked {
			o.log.Warn("symlink unavailable, copied skill instead", "skill", p.name, "path", p.target)
		}
		return nil
	}
	return fsutil.CopyTree(p.source, p.target)
}

// removeSkills deletes skill directories a skills bundle placed. Links are
// unlinked, never followed.
func (o *Orchestrator) removeSkills(paths []string) []string {
	var removed []string
	for _, p := range paths {
		if o.layout.IsNativeRoot(p) {
			o.log.Warn("not removing shared directory", "path", p)
			continue
		}
		if !fsutil.PathExists(p) {
			continue
		}
		if err := fsutil.RemoveTree(p); err != nil {
			o.log.Warn("removing skill", "path", p, "error", err)
			continue
		}
		removed = append(removed, p)
		fsutil.CleanupEmptyDir(filepath.Dir(p))
	}
	return removed
}

// removeInstallDir deletes a bundle's install directory. A native root is
// never removed.
func (o *Orchestrator) removeInstallDir(path string) error {
	if o.layout.IsNativeRoot(path) {
		return fmt.Errorf("%w: %s", ErrNativeRoot, path)
	}
	if err := fsutil.RemoveTree(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	fsutil.CleanupEmptyDir(filepath.Dir(path))
	return nil
}

// removeInstallation removes the install directory recorded in rec. When the
// recorded path is a shared native root, the bundle's cache copy is removed
// instead.
func (o *Orchestrator) removeInstallation(rec records.Record) error {
	err := o.removeInstallDir(rec.InstallPath)
	if !errors.Is(err, ErrNativeRoot) {
		return err
	}
	o.log.Warn("install path is a shared directory, removing cache copy instead", "bundle", rec.BundleID, "path", rec.InstallPath)

	cache, rerr := o.layout.ResolveInstallDir(rec.BundleID, rec.Scope, "", "")
	if rerr != nil || filepath.Clean(cache) == filepath.Clean(rec.InstallPath) {
		return err
	}
	return o.removeInstallDir(cache)
}

// skillDirName keeps a skill id usable as a single path element.
func skillDirName(id string) string {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fsutil.SanitizeName(id)
	}
	return id
}
