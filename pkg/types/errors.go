package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyPath             = errors.New("file path cannot be empty")
	ErrNegativeSize          = errors.New("file size cannot be negative")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
)
