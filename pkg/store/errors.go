package store

import "errors"

// Sentinel errors for the annotation engine. Callers match them with
// errors.Is; the concrete cause is wrapped alongside.
var (
	// ErrConstraintViolation marks a malformed triple or an annotation
	// write that would corrupt the version chain (e.g. a parent that would
	// form a cycle). The transaction is aborted with no partial effect.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidTransition marks an approval-stage change that is not
	// strictly forward in llm_extracted < llm_approved < user_approved.
	ErrInvalidTransition = errors.New("invalid approval stage transition")

	// ErrVersionConflict marks a lost race between concurrent CreateVersion
	// calls for the same annotation group. Retryable by the caller.
	ErrVersionConflict = errors.New("annotation version conflict")

	// ErrNotFound marks a reference to a missing group, version, guideline
	// or document.
	ErrNotFound = errors.New("not found")
)
