package kernel

import "fmt"

// FailureCode identifies a fatal caller/protocol violation. A fatal failure
// aborts the batch at the offending event with zero state mutation from that
// event; mutations from earlier events in the batch stand.
type FailureCode string

const (
	FailureTemporalRegression     FailureCode = "TEMPORAL_REGRESSION"
	FailureAuthorityIDReuse       FailureCode = "AUTHORITY_ID_REUSE"
	FailureAAVReservedBitSet      FailureCode = "AAV_RESERVED_BIT_SET"
	FailurePriorAuthorityNotFound FailureCode = "PRIOR_AUTHORITY_NOT_FOUND"
)

// FailureError is the hard-error surface of the kernel. It wraps a
// FailureCode with the event index at which the batch stopped.
type FailureError struct {
	Code       FailureCode
	EventIndex int
	Message    string
}

// Error implements the error interface.
func (e *FailureError) Error() string {
	return fmt.Sprintf("%s at event index %d: %s", e.Code, e.EventIndex, e.Message)
}

func fatalf(code FailureCode, index int, format string, args ...any) *FailureError {
	return &FailureError{
		Code:       code,
		EventIndex: index,
		Message:    fmt.Sprintf(format, args...),
	}
}
