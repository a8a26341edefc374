package core

import (
	"errors"

	"github.com/barysiuk/promptrow/internal/core/archive"
	"github.com/barysiuk/promptrow/internal/core/layout"
	"github.com/barysiuk/promptrow/internal/core/manifest"
	"github.com/barysiuk/promptrow/internal/core/scope"
)

// Errors returned by the engine. Sub-package sentinels are re-exported so
// callers can match every failure kind against this package with errors.Is.
var (
	ErrExtractionFailed      = archive.ErrExtractionFailed
	ErrInvalidManifest       = manifest.ErrInvalid
	ErrBundleIDMismatch      = manifest.ErrIDMismatch
	ErrBundleVersionMismatch = manifest.ErrVersionMismatch
	ErrNoWorkspace           = layout.ErrNoWorkspace
	ErrNoWorkspaceStorage    = layout.ErrNoWorkspaceStorage
	ErrSkillNotFound         = scope.ErrSkillNotFound
	ErrItemNotFound          = scope.ErrItemNotFound

	ErrInstallationCancelled = errors.New("installation cancelled")
	ErrNotInstalled          = errors.New("bundle is not installed")
	ErrAlreadyInstalled      = errors.New("bundle is already installed")
	ErrNativeRoot            = errors.New("refusing to remove a shared native directory")
)
