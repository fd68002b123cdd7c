package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Facility represents RFC 5424 syslog facility codes.
type Facility int

// FacLocal0 is the default facility for kernel audit output.
const FacLocal0 Facility = 16

// SDParam is a single key-value parameter within a structured data element.
type SDParam struct {
	Name  string
	Value string
}

// SDElement is a structured data element with an ID and parameters.
type SDElement struct {
	ID     string
	Params []SDParam
}

// Message represents an RFC 5424 syslog message.
type Message struct {
	Facility  Facility
	Severity  Severity
	Timestamp time.Time
	Hostname  string
	AppName   string
	MessageID string // The kernel output type: "ACTION_REFUSED", etc.
	SD        []SDElement
	Text      string
}

// timestampFormat fixes 3-digit milliseconds so rendered output is stable.
const timestampFormat = "2006-01-02T15:04:05.000Z"

// messageFor builds the syslog message for one audit event. Kernel fields go
// into an "axio" structured data element with detail params sorted by name.
func messageFor(ev Event, cfg LineConfig) Message {
	params := []SDParam{
		{Name: "batch_id", Value: ev.BatchID},
		{Name: "event_index", Value: strconv.Itoa(ev.EventIndex)},
		{Name: "state_hash", Value: ev.StateHash},
	}
	for _, k := range sortedDetailKeys(ev.Details) {
		params = append(params, SDParam{Name: k, Value: ev.Details[k]})
	}
	return Message{
		Facility:  cfg.Facility,
		Severity:  ev.Severity,
		Timestamp: ev.Timestamp,
		Hostname:  cfg.Hostname,
		AppName:   cfg.AppName,
		MessageID: string(ev.Type),
		SD:        []SDElement{{ID: "axio", Params: params}},
		Text:      fmt.Sprintf("%s event_index=%d", ev.Type, ev.EventIndex),
	}
}

// FormatMessage serializes a Message to RFC 5424 wire format.
// Does not append a newline.
func FormatMessage(m Message) []byte {
	var b strings.Builder
	b.Grow(384)

	// PRI and VERSION
	fmt.Fprintf(&b, "<%d>1", int(m.Facility)*8+int(m.Severity))

	// TIMESTAMP
	b.WriteByte(' ')
	if m.Timestamp.IsZero() {
		b.WriteByte('-')
	} else {
		b.WriteString(m.Timestamp.UTC().Format(timestampFormat))
	}

	// HOSTNAME, APP-NAME, PROCID, MSGID
	writeField(&b, m.Hostname, 255)
	writeField(&b, m.AppName, 48)
	writeField(&b, "", 128) // PROCID is NILVALUE: one kernel, one process
	writeField(&b, m.MessageID, 32)

	// STRUCTURED-DATA
	b.WriteByte(' ')
	if len(m.SD) == 0 {
		b.WriteByte('-')
	} else {
		for _, elem := range m.SD {
			b.WriteByte('[')
			b.WriteString(elem.ID)
			for _, p := range elem.Params {
				b.WriteByte(' ')
				b.WriteString(p.Name)
				b.WriteString(`="`)
				escapeSDParamValue(&b, p.Value)
				b.WriteByte('"')
			}
			b.WriteByte(']')
		}
	}

	if m.Text != "" {
		b.WriteByte(' ')
		b.WriteString(m.Text)
	}
	return []byte(b.String())
}

// writeField writes a space then the field value, truncated to maxLen,
// or the RFC 5424 NILVALUE "-" when empty.
func writeField(b *strings.Builder, value string, maxLen int) {
	b.WriteByte(' ')
	if value == "" {
		b.WriteByte('-')
		return
	}
	if len(value) > maxLen {
		value = value[:maxLen]
	}
	b.WriteString(value)
}

// escapeSDParamValue escapes the three characters RFC 5424 requires inside
// SD-PARAM values: '\', '"', and ']'.
func escapeSDParamValue(b *strings.Builder, v string) {
	for i := 0; i < len(v); i++ {
		switch c := v[i]; c {
		case '\\', '"', ']':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
}
