package consolidate

import (
	"fmt"
	"strings"
)

// RowFailure records one row the job could not process. The row's
// transaction was rolled back; all other rows are unaffected.
type RowFailure struct {
	RowID int64  `json:"row_id"`
	Err   string `json:"error"`
}

// PassResult summarises one consolidation pass.
type PassResult struct {
	Name     string       `json:"name"`
	Examined int          `json:"examined"`
	Removed  int          `json:"removed"`
	Failures []RowFailure `json:"failures,omitempty"`
}

// Summary is the outcome of a full consolidation run.
type Summary struct {
	Passes []PassResult `json:"passes"`
}

// TotalRemoved sums removed rows across all passes.
func (s Summary) TotalRemoved() int {
	n := 0
	for _, p := range s.Passes {
		n += p.Removed
	}
	return n
}

// TotalFailed sums failed rows across all passes.
func (s Summary) TotalFailed() int {
	n := 0
	for _, p := range s.Passes {
		n += len(p.Failures)
	}
	return n
}

// PartialFailureError reports a run that completed but could not process
// every row. The summary still counts the successful work; rerunning the job
// retries only what is still broken.
type PartialFailureError struct {
	Summary Summary
}

func (e *PartialFailureError) Error() string {
	var parts []string
	for _, p := range e.Summary.Passes {
		if len(p.Failures) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d failed", p.Name, len(p.Failures)))
		}
	}
	return fmt.Sprintf("consolidation finished with partial failures (%s)", strings.Join(parts, ", "))
}
