package clierror

import (
	"encoding/json"
	"fmt"
)

// Exit codes for axioctl commands.
const (
	ExitSuccess    = 0 // Operation completed successfully
	ExitGeneral    = 1 // Unknown/unhandled error
	ExitConfig     = 2 // Constitution or scenario rejected
	ExitKernel     = 3 // Kernel construction failure (fatal event)
	ExitNotFound   = 4 // Journal or file doesn't exist
	ExitDivergence = 5 // Replay hash stream diverged from the journal
)

// Error codes (strings) for programmatic error handling
const (
	CodeConstitutionInvalid = "CONSTITUTION_INVALID"
	CodeScenarioInvalid     = "SCENARIO_INVALID"
	CodeJournalNotFound     = "JOURNAL_NOT_FOUND"
	CodeReplayDiverged      = "REPLAY_DIVERGED"
	CodeKernelFailure       = "KERNEL_FAILURE"
	CodeInternalError       = "INTERNAL_ERROR"
)

// CLIError represents a structured error for CLI output.
type CLIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	Retryable bool   `json:"retryable"`
	ExitCode  int    `json:"-"` // Not serialized, used for os.Exit
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// ConstitutionInvalid creates an error for a rejected constitution file.
func ConstitutionInvalid(path string, err error) *CLIError {
	return &CLIError{
		Code:      CodeConstitutionInvalid,
		Message:   fmt.Sprintf("constitution '%s' rejected: %s", path, err),
		Hint:      "Check transformation bits and governance names in the constitution file",
		Retryable: false,
		ExitCode:  ExitConfig,
	}
}

// ScenarioInvalid creates an error for a rejected scenario file.
func ScenarioInvalid(path string, err error) *CLIError {
	return &CLIError{
		Code:      CodeScenarioInvalid,
		Message:   fmt.Sprintf("scenario '%s' rejected: %s", path, err),
		Hint:      "Every event needs exactly one kind and transformation names must exist in the constitution",
		Retryable: false,
		ExitCode:  ExitConfig,
	}
}

// JournalNotFound creates an error when a journal database doesn't exist.
func JournalNotFound(path string) *CLIError {
	return &CLIError{
		Code:      CodeJournalNotFound,
		Message:   fmt.Sprintf("journal '%s' not found", path),
		Hint:      "Run a scenario with 'axioctl run' to create a journal first",
		Retryable: false,
		ExitCode:  ExitNotFound,
	}
}

// ReplayDiverged creates an error when replay verification fails.
func ReplayDiverged(batchID string, eventIndex int) *CLIError {
	return &CLIError{
		Code:      CodeReplayDiverged,
		Message:   fmt.Sprintf("replay diverged from journal at batch '%s' event index %d", batchID, eventIndex),
		Hint:      "Verify the constitution file matches the one the journaled run started from",
		Retryable: false,
		ExitCode:  ExitDivergence,
	}
}

// KernelFailure creates an error for a fatal kernel failure.
func KernelFailure(err error) *CLIError {
	return &CLIError{
		Code:      CodeKernelFailure,
		Message:   fmt.Sprintf("kernel failure: %s", err),
		Hint:      "Fatal events indicate malformed input; fix the offending event in the scenario",
		Retryable: false,
		ExitCode:  ExitKernel,
	}
}

// InternalError creates an error for unexpected internal errors.
func InternalError(err error) *CLIError {
	msg := "an unexpected internal error occurred"
	if err != nil {
		msg = fmt.Sprintf("internal error: %s", err.Error())
	}
	return &CLIError{
		Code:      CodeInternalError,
		Message:   msg,
		Retryable: false,
		ExitCode:  ExitGeneral,
	}
}

// FormatError returns the error formatted for the given output format.
// Supported formats: "json" for JSON output, anything else for human-readable output.
func FormatError(err *CLIError, outputFormat string) string {
	if outputFormat == "json" {
		data, jsonErr := json.MarshalIndent(err, "", "  ")
		if jsonErr != nil {
			return fmt.Sprintf(`{"code":"%s","message":"%s"}`, err.Code, err.Message)
		}
		return string(data)
	}

	output := fmt.Sprintf("Error [%s]: %s", err.Code, err.Message)
	if err.Hint != "" {
		output += fmt.Sprintf("\nHint: %s", err.Hint)
	}
	return output
}
