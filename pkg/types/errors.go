package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	ErrInvalidRank   = errors.New("rank must be >= 1")
	ErrEmptyContent  = errors.New("content cannot be empty")
	ErrEmptyQuery    = errors.New("query cannot be empty")
	ErrMissingColumn = errors.New("missing required column")
)

// DataLoadError reports a corpus source that is missing, unreadable or malformed.
// It is fatal at startup.
type DataLoadError struct {
	Source string
	Err    error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load drug data from %s: %v", e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// IndexBuildError reports a failed dense or sparse index construction.
// It is fatal at startup.
type IndexBuildError struct {
	Index string
	Err   error
}

func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("build %s index: %v", e.Index, e.Err)
}

func (e *IndexBuildError) Unwrap() error {
	return e.Err
}

// UpstreamServiceError wraps a failure of the embedding or language-model service.
// It is recoverable; retry policy belongs to the caller.
type UpstreamServiceError struct {
	Service string // "embedding" or "llm"
	Op      string
	Err     error
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("%s service %s: %v", e.Service, e.Op, e.Err)
}

func (e *UpstreamServiceError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err was caused by an external service failure
func IsUpstream(err error) bool {
	var ue *UpstreamServiceError
	return errors.As(err, &ue)
}
