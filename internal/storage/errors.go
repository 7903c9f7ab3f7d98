package storage

import "errors"

var (
	ErrPatternNotFound = errors.New("pattern not found")
	ErrPatternExists   = errors.New("pattern already exists")
	ErrClientClosed    = errors.New("storage client is closed")
)
