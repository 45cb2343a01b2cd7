package storage

import "gorm.io/gorm"

// errRecordNotFound is gorm's sentinel, aliased so repositories don't each
// import gorm just to compare against it.
var errRecordNotFound = gorm.ErrRecordNotFound

// ErrNotFound is the exported form callers outside this package compare
// against with errors.Is.
var ErrNotFound = gorm.ErrRecordNotFound
