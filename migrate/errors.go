package migrate

import "errors"

var (
	// ErrSourceRequired is returned when an importer has no source storage.
	ErrSourceRequired = errors.New("source storage required")

	// ErrTargetRequired is returned when an importer has no target store.
	ErrTargetRequired = errors.New("target store required")
)
