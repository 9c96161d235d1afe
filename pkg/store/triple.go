package store

import (
	"fmt"

	"github.com/ethicase/backend/pkg/common"
)

// ValidateTriple enforces the structural contract of the triple store:
// subject and predicate are always required; object may be empty only for
// literal triples (an empty-string literal is a valid fact).
func ValidateTriple(t common.Triple) error {
	if t.Subject == "" {
		return fmt.Errorf("%w: triple subject is empty", ErrConstraintViolation)
	}
	if t.Predicate == "" {
		return fmt.Errorf("%w: triple predicate is empty", ErrConstraintViolation)
	}
	if t.Object == "" && !t.IsLiteral {
		return fmt.Errorf("%w: non-literal triple object is empty", ErrConstraintViolation)
	}
	if t.OwnerType == "" || t.OwnerID == 0 {
		return fmt.Errorf("%w: triple owner is not set", ErrConstraintViolation)
	}
	return nil
}

// ChunkRange invokes fn over [start,end) windows of at most chunkSize until
// total is covered.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}
