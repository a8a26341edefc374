package core

import (
	"log/slog"
	"os"
	"time"

	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/layout"
	"github.com/barysiuk/promptrow/internal/core/lockfile"
	"github.com/barysiuk/promptrow/internal/core/mcp"
	"github.com/barysiuk/promptrow/internal/core/records"
	"github.com/barysiuk/promptrow/internal/logging"
)

// Orchestrator runs the install, uninstall and update pipelines over one
// layout. Operations are sequential; callers serialize work on the same
// bundle id.
type Orchestrator struct {
	layout    *layout.Layout
	log       *slog.Logger
	confirmer Confirmer
	lockfiles *lockfile.Registry
	records   *records.Store
	mcp       *mcp.Installer
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards output.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithConfirmer sets who is asked before overwriting existing skills.
// Without one every overwrite is declined unless InstallOptions.Force is set.
func WithConfirmer(c Confirmer) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.confirmer = c
		}
	}
}

// WithLockfiles shares a lockfile registry between orchestrators.
func WithLockfiles(r *lockfile.Registry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.lockfiles = r
		}
	}
}

// WithClock overrides the time source for install timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator creates an Orchestrator for l.
func NewOrchestrator(l *layout.Layout, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		layout:    l,
		log:       logging.Discard(),
		confirmer: declineAll{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.lockfiles == nil {
		o.lockfiles = lockfile.NewRegistry(o.log)
	}
	o.lockfiles.SetClock(o.now)
	o.records = records.NewStore(l)
	o.mcp = mcp.NewInstaller(l, o.log)
	return o
}

// Layout returns the layout the orchestrator installs into.
func (o *Orchestrator) Layout() *layout.Layout { return o.layout }

// Records returns the installed-bundle record store.
func (o *Orchestrator) Records() *records.Store { return o.records }

// Lockfile returns the workspace lockfile manager.
func (o *Orchestrator) Lockfile() (*lockfile.Manager, error) {
	dir, err := o.layout.LockfileDir()
	if err != nil {
		return nil, err
	}
	return o.lockfiles.For(dir), nil
}

// Installed returns the record of bundleID, searching every scope when sc
// is empty.
func (o *Orchestrator) Installed(bundleID string, sc bundle.Scope) (records.Record, bool, error) {
	if sc == "" {
		return o.records.Find(bundleID)
	}
	return o.records.Get(sc, bundleID)
}

// cleanup removes a temporary directory. Failures are logged only.
func (o *Orchestrator) cleanup(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		o.log.Warn("removing temporary directory", "path", dir, "error", err)
	}
}
