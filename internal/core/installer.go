package core

import (
	"errors"
	"fmt"

	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/lockfile"
	"github.com/barysiuk/promptrow/internal/core/records"
	"github.com/barysiuk/promptrow/internal/core/scope"
)

// Install installs a bundle. data is the zip archive; when nil, the
// descriptor's file:// DownloadURL names a directory used as the bundle tree.
//
// Structural failures (extraction, validation, path resolution,
// materialization, sync, a declined overwrite) abort the install and roll
// back what was written. MCP server and lockfile problems only add warnings.
func (o *Orchestrator) Install(d BundleDescriptor, data []byte, opts InstallOptions) (*InstallResult, error) {
	d, opts, err := normalize(d, opts)
	if err != nil {
		return nil, err
	}

	st, err := o.stage(d, data)
	if err != nil {
		return nil, err
	}
	defer o.release(st)

	return o.install(st, opts)
}

func normalize(d BundleDescriptor, opts InstallOptions) (BundleDescriptor, InstallOptions, error) {
	if d.ID == "" {
		return d, opts, errors.New("bundle id is required")
	}
	if opts.Scope == "" {
		opts.Scope = bundle.ScopeUser
	}
	if _, err := bundle.ParseScope(string(opts.Scope)); err != nil {
		return d, opts, err
	}
	if opts.Version != "" {
		d.Version = opts.Version
	}
	if d.Version == "" {
		d.Version = bundle.VersionLatest
	}

	if opts.Scope == bundle.ScopeRepository {
		mode, err := bundle.ParseCommitMode(string(opts.CommitMode))
		if err != nil {
			return d, opts, err
		}
		opts.CommitMode = mode
	} else {
		opts.CommitMode = ""
	}
	return d, opts, nil
}

func (o *Orchestrator) install(st *staged, opts InstallOptions) (*InstallResult, error) {
	d, m := st.desc, st.manifest
	log := o.log.With("bundle", d.ID, "scope", opts.Scope)

	installDir, err := o.layout.ResolveInstallDir(d.ID, opts.Scope, d.SourceType, d.SourceName)
	if err != nil {
		return nil, fmt.Errorf("resolving install directory for %s: %w", d.ID, err)
	}

	res := &InstallResult{}

	prev, replacing, err := o.records.Get(opts.Scope, d.ID)
	if err != nil {
		return nil, err
	}

	// Everything that can refuse the install runs before a previous
	// installation is touched, so a decline or a bad target keeps it intact.
	var plan []skillPlacement
	if bundle.IsSkillsSource(d.SourceType) {
		var owned []string
		if replacing {
			owned = prev.Skills
		}
		if plan, err = o.planSkills(st, opts.Scope, opts.Force, owned); err != nil {
			return nil, err
		}
	}
	var syncer scope.Synchronizer
	if !bundle.IsExternalSkills(d.ID, d.SourceType) {
		if syncer, err = scope.New(opts.Scope, o.layout, o.log); err != nil {
			return nil, err
		}
		if err := checkItems(st, bundle.IsSkillsSource(d.SourceType)); err != nil {
			return nil, fmt.Errorf("installing %s: %w", d.ID, err)
		}
	}

	if replacing {
		log.Debug("bundle already installed, replacing", "version", prev.Version)
		un, err := o.uninstall(prev)
		if err != nil {
			return nil, fmt.Errorf("removing previous installation of %s: %w", d.ID, err)
		}
		res.Replaced = un
		res.Warnings = append(res.Warnings, un.Warnings...)
	}

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	if err := o.materialize(st, installDir); err != nil {
		_ = o.removeInstallDir(installDir)
		return nil, fmt.Errorf("installing %s: %w", d.ID, err)
	}
	undo = append(undo, func() {
		if err := o.removeInstallDir(installDir); err != nil {
			log.Warn("rolling back install directory", "error", err)
		}
	})
	log.Debug("bundle materialized", "dir", installDir)

	if plan != nil {
		skills, err := o.placeSkills(st, plan)
		if err != nil {
			rollback()
			return nil, err
		}
		res.Skills = skills
		undo = append(undo, func() { o.removeSkills(skills) })
	}

	res.MCP = o.mcp.Install(d.ID, m.Version, installDir, m, opts.Scope, opts.CommitMode)
	res.Warnings = append(res.Warnings, res.MCP.Warnings...)
	res.Warnings = append(res.Warnings, res.MCP.Errors...)
	if res.MCP.ServersInstalled > 0 {
		undo = append(undo, func() { o.mcp.Uninstall(d.ID, opts.Scope) })
	}

	if syncer != nil {
		sres, err := syncer.SyncBundle(d.ID, installDir, scope.SyncOptions{
			CommitMode: opts.CommitMode,
			SkipSkills: bundle.IsSkillsSource(d.SourceType),
		})
		if sres != nil {
			undo = append(undo, func() {
				if _, err := syncer.UnsyncBundle(d.ID); err != nil {
					log.Warn("rolling back sync", "error", err)
				}
			})
		}
		if err != nil {
			rollback()
			return nil, fmt.Errorf("syncing %s: %w", d.ID, err)
		}
		res.Synced = sres.Synced
		res.Conflicts = sres.Conflicts
		for _, c := range sres.Conflicts {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s already exists and is not managed by promptrow; left untouched", c))
		}
	}

	rec := records.Record{
		BundleID:    d.ID,
		Version:     m.Version,
		InstalledAt: o.now().UTC(),
		Scope:       opts.Scope,
		InstallPath: installDir,
		Manifest:    m,
		SourceID:    d.SourceID,
		SourceType:  d.SourceType,
		SourceName:  d.SourceName,
		CommitMode:  opts.CommitMode,
		ProfileID:   opts.ProfileID,
		Skills:      res.Skills,
		MCPServers:  res.MCP.ServerNames,
	}
	for _, t := range res.Synced {
		rec.SyncedFiles = append(rec.SyncedFiles, t.Path)
	}
	if err := o.records.Put(rec); err != nil {
		rollback()
		return nil, fmt.Errorf("recording installation of %s: %w", d.ID, err)
	}
	res.Record = rec

	if opts.Scope == bundle.ScopeRepository {
		if err := o.writeLockEntry(rec, syncer, st.desc); err != nil {
			log.Warn("updating lockfile", "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("lockfile not updated: %v", err))
		}
	}

	log.Info("bundle installed", "version", rec.Version, "synced", len(res.Synced), "skills", len(res.Skills), "mcpServers", res.MCP.ServersInstalled)
	return res, nil
}

// writeLockEntry records rec in the workspace lockfile, checksumming the
// files synced into the repository tree.
func (o *Orchestrator) writeLockEntry(rec records.Record, syncer scope.Synchronizer, d BundleDescriptor) error {
	lm, err := o.Lockfile()
	if err != nil {
		return err
	}

	paths := append(append([]string{}, rec.SyncedFiles...), rec.Skills...)
	var rel []string
	if rs, ok := syncer.(*scope.RepositoryScope); ok {
		rel = rs.Relative(paths)
	}
	files, err := lockfile.CollectFiles(lm.Root(), rel, rec.InstallPath)
	if err != nil {
		return err
	}

	sourceType := string(d.SourceType)
	if sourceType == "" {
		sourceType = string(bundle.SourceTypeLocal)
	}
	return lm.CreateOrUpdate(lockfile.Entry{
		BundleID:    rec.BundleID,
		Version:     rec.Version,
		SourceID:    rec.SourceID,
		SourceType:  rec.SourceType,
		CommitMode:  rec.CommitMode,
		InstalledAt: rec.InstalledAt,
		Source:      lockfile.Source{Type: sourceType, URL: firstNonEmpty(d.DownloadURL, d.ManifestURL)},
		Files:       files,
		MCPServers:  rec.MCPServers,
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
