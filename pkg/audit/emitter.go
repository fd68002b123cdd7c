package audit

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/macterra/Axio-sub003/pkg/kernel"
)

// EventEmitter accepts structured audit events for recording.
type EventEmitter interface {
	Emit(Event) error
}

// NopEmitter discards all events. Use when no audit backend is configured.
type NopEmitter struct{}

// Emit discards the event.
func (NopEmitter) Emit(Event) error { return nil }

// SlogEmitter renders audit events through a structured logger.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter creates an emitter backed by logger, or slog.Default() if nil.
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

// Emit writes the event as one structured log line.
func (e *SlogEmitter) Emit(ev Event) error {
	attrs := []any{
		"severity", ev.Severity.String(),
		"batch_id", ev.BatchID,
		"event_index", ev.EventIndex,
		"state_hash", ev.StateHash,
	}
	for _, k := range sortedDetailKeys(ev.Details) {
		attrs = append(attrs, k, ev.Details[k])
	}
	e.logger.Info(string(ev.Type), attrs...)
	return nil
}

// LineEmitter writes one RFC 5424 message per event to an io.Writer.
// Safe for concurrent use.
type LineEmitter struct {
	mu  sync.Mutex
	w   io.Writer
	cfg LineConfig
}

// LineConfig holds configuration for the line-oriented writer.
type LineConfig struct {
	Hostname string   // Default: "-"
	AppName  string   // Default: "axio-kernel"
	Facility Facility // Default: FacLocal0
}

// NewLineEmitter creates a LineEmitter writing RFC 5424 messages to w.
func NewLineEmitter(w io.Writer, cfg LineConfig) *LineEmitter {
	if cfg.Hostname == "" {
		cfg.Hostname = "-"
	}
	if cfg.AppName == "" {
		cfg.AppName = "axio-kernel"
	}
	if cfg.Facility == 0 {
		cfg.Facility = FacLocal0
	}
	return &LineEmitter{w: w, cfg: cfg}
}

// Emit serializes the event and writes it followed by a newline.
func (e *LineEmitter) Emit(ev Event) error {
	msg := FormatMessage(messageFor(ev, e.cfg))
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(append(msg, '\n')); err != nil {
		return fmt.Errorf("audit line write: %w", err)
	}
	return nil
}

// StreamEmitter bridges kernel batch results to one or more audit backends.
// Emit failures are logged but never propagate; the output stream must keep
// flowing even when a backend is down.
type StreamEmitter struct {
	backends []EventEmitter
	logger   *slog.Logger
}

// NewStreamEmitter creates an emitter that forwards kernel outputs to the
// given backends. If logger is nil, slog.Default() is used for error reporting.
func NewStreamEmitter(logger *slog.Logger, backends ...EventEmitter) *StreamEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamEmitter{backends: backends, logger: logger}
}

// EmitBatch forwards every output of a batch result to all backends.
func (e *StreamEmitter) EmitBatch(batchID string, res *kernel.BatchResult) {
	for _, out := range res.Outputs {
		ev := FromOutput(batchID, out)
		for _, b := range e.backends {
			if err := b.Emit(ev); err != nil {
				e.logger.Error("audit emit failed",
					"output_type", string(out.Type),
					"event_index", out.EventIndex,
					"error", err)
			}
		}
	}
}
