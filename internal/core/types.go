// Package core is the bundle installation and synchronization engine. It has
// zero UI dependencies and is independently testable.
package core

import (
	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/mcp"
	"github.com/barysiuk/promptrow/internal/core/records"
	"github.com/barysiuk/promptrow/internal/core/scope"
)

// BundleDescriptor is the identity of the bundle an operation acts on.
type BundleDescriptor = bundle.Descriptor

// InstallOptions configures an installation.
type InstallOptions struct {
	Scope      bundle.Scope
	ProfileID  string
	Version    string // overrides the descriptor version when set
	CommitMode bundle.CommitMode
	Force      bool // overwrite existing skill directories without asking
}

// InstallResult is the outcome of a successful install. Warnings collects
// what degraded without failing the install.
type InstallResult struct {
	Record    records.Record
	Synced    []scope.Target
	Skills    []string // skill directories placed by a skills bundle
	Conflicts []string
	MCP       mcp.Result
	Warnings  []string

	// Replaced is the teardown of the installation this one replaced, if any.
	Replaced *UninstallResult
}

// UninstallResult is the outcome of an uninstall.
type UninstallResult struct {
	Record         records.Record
	Removed        []string
	Kept           []string // synced copies left in place because they were edited
	ServersRemoved int
	Warnings       []string
}

// UpdateOptions controls how an update runs. An empty Scope searches every
// scope for the installed bundle.
type UpdateOptions struct {
	Scope bundle.Scope
	Force bool
}

// UpdateResult is the outcome of an update.
type UpdateResult struct {
	FromVersion string
	ToVersion   string
	Uninstall   *UninstallResult
	Install     *InstallResult
}
