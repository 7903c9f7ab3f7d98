package intromatch

import (
	"errors"

	"github.com/himanishpuri/IntroMatch/internal/storage"
)

var (
	ErrInvalidTiming   = errors.New("invalid reference timing")
	ErrPatternTooShort = errors.New("reference segment shorter than one frame")
	ErrInvalidPattern  = errors.New("invalid pattern")
	ErrNoSource        = errors.New("item has neither data nor url")

	ErrPatternNotFound = storage.ErrPatternNotFound
	ErrPatternExists   = storage.ErrPatternExists
)
