package core

//go:generate mockgen -source=confirm.go -destination=mocks/mock_confirm.go -package=mocks

// Confirmer asks the user before the engine overwrites something it does
// not own.
type Confirmer interface {
	// ConfirmOverwrite reports whether the existing entry at path, which a
	// skills bundle wants to install the skill name into, may be replaced.
	ConfirmOverwrite(name, path string) (bool, error)
}

// declineAll is used when no Confirmer is configured.
type declineAll struct{}

func (declineAll) ConfirmOverwrite(string, string) (bool, error) { return false, nil }
