package batch

import (
	"fmt"
	"strings"

	"github.com/predman/projsim/internal/constants"
)

// Failure is one instance that produced no pair.
type Failure struct {
	Index int
	Err   error
}

// BatchError reports every failed instance of a batch.
type BatchError struct {
	Split     constants.Split
	Requested int
	Failures  []Failure
}

func (e *BatchError) Error() string {
	indices := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		indices[i] = fmt.Sprint(f.Index)
	}
	msg := fmt.Sprintf("%s batch: %d of %d instances failed [%s]",
		e.Split, len(e.Failures), e.Requested, strings.Join(indices, " "))
	if len(e.Failures) > 0 {
		msg += fmt.Sprintf(": first error: %v", e.Failures[0].Err)
	}
	return msg
}

// Unwrap exposes every instance error to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Indices returns the failed instance indices in ascending order.
func (e *BatchError) Indices() []int {
	out := make([]int, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Index
	}
	return out
}
