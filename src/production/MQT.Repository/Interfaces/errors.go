package interfaces

import "errors"

var (
	ErrVersionConflict = errors.New("site was modified concurrently")
	ErrDuplicateSite   = errors.New("site already exists")
	ErrLockHeld        = errors.New("site is locked by another writer")
	ErrDraftNotFound   = errors.New("draft not found")
)
