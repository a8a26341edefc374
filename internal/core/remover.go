package core

import (
	"fmt"

	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/records"
	"github.com/barysiuk/promptrow/internal/core/scope"
)

// Uninstall removes a bundle: synced entries the engine created, skill
// directories, MCP servers, the install directory, the record and, at
// repository scope, the lockfile entry. An empty scope searches every scope.
func (o *Orchestrator) Uninstall(bundleID string, sc bundle.Scope) (*UninstallResult, error) {
	rec, ok, err := o.Installed(bundleID, sc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, bundleID)
	}
	return o.uninstall(rec)
}

func (o *Orchestrator) uninstall(rec records.Record) (*UninstallResult, error) {
	log := o.log.With("bundle", rec.BundleID, "scope", rec.Scope)
	res := &UninstallResult{Record: rec}

	if !bundle.IsExternalSkills(rec.BundleID, rec.SourceType) {
		if err := o.unsync(rec, res); err != nil {
			log.Warn("unsyncing bundle", "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("unsync incomplete: %v", err))
		}
	}

	res.Removed = append(res.Removed, o.removeSkills(rec.Skills)...)

	mres := o.mcp.Uninstall(rec.BundleID, rec.Scope)
	res.ServersRemoved = mres.ServersRemoved
	res.Warnings = append(res.Warnings, mres.Warnings...)
	res.Warnings = append(res.Warnings, mres.Errors...)

	if err := o.removeInstallation(rec); err != nil {
		return res, fmt.Errorf("uninstalling %s: %w", rec.BundleID, err)
	}
	if err := o.records.Delete(rec.Scope, rec.BundleID); err != nil {
		return res, fmt.Errorf("removing record of %s: %w", rec.BundleID, err)
	}

	if rec.Scope == bundle.ScopeRepository {
		if err := o.removeLockEntry(rec.BundleID); err != nil {
			log.Warn("updating lockfile", "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("lockfile not updated: %v", err))
		}
	}

	log.Info("bundle uninstalled", "version", rec.Version, "removed", len(res.Removed), "kept", len(res.Kept))
	return res, nil
}

func (o *Orchestrator) unsync(rec records.Record, res *UninstallResult) error {
	syncer, err := scope.New(rec.Scope, o.layout, o.log)
	if err != nil {
		return err
	}
	ures, err := syncer.UnsyncBundle(rec.BundleID)
	if ures != nil {
		res.Removed = append(res.Removed, ures.Removed...)
		res.Kept = append(res.Kept, ures.Kept...)
		for _, k := range ures.Kept {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s was modified and has been kept", k))
		}
	}
	return err
}

func (o *Orchestrator) removeLockEntry(bundleID string) error {
	lm, err := o.Lockfile()
	if err != nil {
		return err
	}
	return lm.Remove(bundleID)
}
