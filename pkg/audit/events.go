// Package audit is the downstream telemetry sink for kernel output streams.
// It maps kernel outputs to severity-tagged audit events and fans them out to
// pluggable backends. The kernel never blocks on it: emit errors are logged
// and dropped, never propagated back into batch processing.
package audit

import (
	"fmt"
	"sort"
	"time"

	"github.com/macterra/Axio-sub003/pkg/kernel"
)

// Severity represents syslog severity levels per RFC 5424.
type Severity int

const (
	SeverityWarning Severity = 4
	SeverityNotice  Severity = 5
	SeverityInfo    Severity = 6
)

// String returns the human-readable name for a severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityNotice:
		return "NOTICE"
	case SeverityWarning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// severityMap maps each kernel output type to its syslog severity.
var severityMap = map[kernel.OutputType]Severity{
	kernel.OutputActionExecuted:     SeverityInfo,    // 6
	kernel.OutputAuthorityRenewed:   SeverityNotice,  // 5
	kernel.OutputAuthorityCreated:   SeverityNotice,  // 5
	kernel.OutputAuthorityExpired:   SeverityNotice,  // 5
	kernel.OutputAuthorityDestroyed: SeverityWarning, // 4
	kernel.OutputActionRefused:      SeverityWarning, // 4
	kernel.OutputDeadlockDeclared:   SeverityWarning, // 4
	kernel.OutputDeadlockPersisted:  SeverityNotice,  // 5
}

// SeverityFor returns the syslog severity for a kernel output type.
// Unknown types return SeverityWarning (fail-secure: treat unknowns as concerning).
func SeverityFor(t kernel.OutputType) Severity {
	if s, ok := severityMap[t]; ok {
		return s
	}
	return SeverityWarning
}

// Event is one audit record derived from a kernel output.
type Event struct {
	Type       kernel.OutputType
	Severity   Severity
	Timestamp  time.Time
	BatchID    string
	EventIndex int
	StateHash  string
	Details    map[string]string
}

// FromOutput converts a kernel output into an audit event. Detail values are
// stringified; map ordering is irrelevant here because backends sort keys
// when rendering.
func FromOutput(batchID string, out kernel.Output) Event {
	details := make(map[string]string, len(out.Details))
	for k, v := range out.Details {
		details[k] = fmt.Sprint(v)
	}
	return Event{
		Type:       out.Type,
		Severity:   SeverityFor(out.Type),
		Timestamp:  time.Now(),
		BatchID:    batchID,
		EventIndex: out.EventIndex,
		StateHash:  out.StateHash,
		Details:    details,
	}
}

// sortedDetailKeys returns the detail keys in ascending order for stable rendering.
func sortedDetailKeys(details map[string]string) []string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
