package repositories

import "errors"

// ErrNotFound is returned when a requested project doesn't exist.
var ErrNotFound = errors.New("not found")
