package vecadd

import (
	"errors"
	"fmt"
)

// Package errors. Stage-level failure kinds (device unavailable, compile
// failure, out of memory, execution fault) are the backend package
// sentinels; these cover the pipeline object itself.
var (
	// ErrClosed is returned when operating on a closed pipeline.
	ErrClosed = errors.New("vecadd: pipeline closed")

	// ErrNotPrepared is returned when dispatching or verifying before
	// PrepareData has allocated the buffers.
	ErrNotPrepared = errors.New("vecadd: buffers not prepared")
)

// VerifyError reports the first output element that does not equal the sum
// of its input elements. It is an unrecoverable correctness defect: the
// kernel and the verifier perform the identical addition on identical
// operands, so any discrepancy is a real bug, not rounding drift.
type VerifyError struct {
	// Index is the offending element index.
	Index int

	// Got is the value found in the result buffer.
	Got float32

	// A and B are the input operands at Index; the expected value is A+B.
	A, B float32
}

// Error implements the error interface.
func (e *VerifyError) Error() string {
	return fmt.Sprintf("vecadd: verification failed at index %d: result=%g, want %g (a=%g, b=%g)",
		e.Index, e.Got, e.A+e.B, e.A, e.B)
}
