package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrDuplicateJob is returned when creating a job whose id already exists.
	ErrDuplicateJob = errors.New("job already exists")
)
