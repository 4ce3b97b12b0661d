package cache

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes read failures.
type ErrorCode string

const (
	// ErrCodeRecordNotFound indicates no record matches and none was computed.
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"

	// ErrCodeAmbiguousMatch indicates several records match the query.
	ErrCodeAmbiguousMatch ErrorCode = "AMBIGUOUS_MATCH"

	// ErrCodeArtifactMissing indicates the matching record lacks the quantity.
	ErrCodeArtifactMissing ErrorCode = "ARTIFACT_MISSING"
)

// Error is a cache read failure.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Store is the store root.
	Store string

	// Quantity is the requested quantity, if any.
	Quantity string

	// RecordID identifies the record for ARTIFACT_MISSING.
	RecordID string

	// Candidates lists the matching record ids for AMBIGUOUS_MATCH.
	Candidates []string

	// Err is the underlying cause. ARTIFACT_MISSING wraps fs.ErrNotExist.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.RecordID != "" {
		fmt.Fprintf(&b, " (record=%s)", e.RecordID)
	}
	if len(e.Candidates) > 0 {
		fmt.Fprintf(&b, " (candidates=%s)", strings.Join(e.Candidates, ","))
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsRecordNotFound returns true if no record matched and none was computed.
// Uses errors.As to handle wrapped errors.
func IsRecordNotFound(err error) bool {
	return hasCode(err, ErrCodeRecordNotFound)
}

// IsAmbiguous returns true if several records matched.
// Uses errors.As to handle wrapped errors.
func IsAmbiguous(err error) bool {
	return hasCode(err, ErrCodeAmbiguousMatch)
}

// IsArtifactMissing returns true if the record exists but lacks the quantity.
// Uses errors.As to handle wrapped errors.
func IsArtifactMissing(err error) bool {
	return hasCode(err, ErrCodeArtifactMissing)
}
