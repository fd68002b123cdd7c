package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestShortHash(t *testing.T) {
	long := "a3f6c9e2b1d4a3f6c9e2b1d4a3f6c9e2"
	if got := shortHash(long); got != "a3f6c9e2b1d4" {
		t.Errorf("shortHash(long) = %q", got)
	}
	if got := shortHash("abc"); got != "abc" {
		t.Errorf("shortHash(short) = %q", got)
	}
}

func TestFormatOutputJSON(t *testing.T) {
	original := outputFormat
	defer func() { outputFormat = original }()
	outputFormat = "json"

	var buf bytes.Buffer
	err := formatOutput(&buf, map[string]string{"state": "abc"})
	if err != nil {
		t.Fatalf("formatOutput: %v", err)
	}
	if !strings.Contains(buf.String(), `"state": "abc"`) {
		t.Errorf("unexpected JSON output: %q", buf.String())
	}
}

func TestFormatOutputYAML(t *testing.T) {
	original := outputFormat
	defer func() { outputFormat = original }()
	outputFormat = "yaml"

	var buf bytes.Buffer
	err := formatOutput(&buf, map[string]string{"state": "abc"})
	if err != nil {
		t.Fatalf("formatOutput: %v", err)
	}
	if !strings.Contains(buf.String(), "state: abc") {
		t.Errorf("unexpected YAML output: %q", buf.String())
	}
}

func TestFormatOutputTableIsCommandOwned(t *testing.T) {
	original := outputFormat
	defer func() { outputFormat = original }()
	outputFormat = "table"

	var buf bytes.Buffer
	if err := formatOutput(&buf, map[string]string{"state": "abc"}); err != nil {
		t.Fatalf("formatOutput: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("table format should write nothing, got %q", buf.String())
	}
}
