package core

import "fmt"

// Update replaces an installed bundle with the payload for d, keeping the
// scope, profile and commit mode of the existing installation. The new
// payload is validated, and skill overwrites confirmed, before the old
// installation is touched; a decline leaves it installed.
func (o *Orchestrator) Update(d BundleDescriptor, data []byte, uo UpdateOptions) (*UpdateResult, error) {
	prev, ok, err := o.Installed(d.ID, uo.Scope)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, d.ID)
	}

	if d.SourceType == "" {
		d.SourceType = prev.SourceType
	}
	if d.SourceID == "" {
		d.SourceID = prev.SourceID
	}
	if d.SourceName == "" {
		d.SourceName = prev.SourceName
	}
	opts := InstallOptions{
		Scope:      prev.Scope,
		ProfileID:  prev.ProfileID,
		CommitMode: prev.CommitMode,
		Force:      uo.Force,
	}
	d, opts, err = normalize(d, opts)
	if err != nil {
		return nil, err
	}

	st, err := o.stage(d, data)
	if err != nil {
		return nil, err
	}
	defer o.release(st)

	res := &UpdateResult{FromVersion: prev.Version, ToVersion: st.manifest.Version}

	res.Install, err = o.install(st, opts)
	if err != nil {
		return res, fmt.Errorf("installing %s@%s: %w", d.ID, st.manifest.Version, err)
	}
	res.Uninstall = res.Install.Replaced
	if res.Uninstall == nil {
		res.Uninstall = &UninstallResult{Record: prev}
	}
	o.log.Info("bundle updated", "bundle", d.ID, "from", res.FromVersion, "to", res.ToVersion)
	return res, nil
}
