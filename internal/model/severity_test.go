package model

import (
	"encoding/json"
	"testing"
)

// TestSeverityString tests the String method of Severity.
func TestSeverityString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		expected string
	}{
		{SeveritySuccess, "SUCCESS"},
		{SeverityInfo, "INFO"},
		{SeverityWarning, "WARNING"},
		{SeverityError, "ERROR"},
		{Severity(999), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.severity.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.severity.String(), tc.expected)
			}
		})
	}
}

// TestSeverityOrdering tests that severity levels are ordered correctly.
// Success < Info < Warning < Error
func TestSeverityOrdering(t *testing.T) {
	t.Parallel()

	if !(SeveritySuccess < SeverityInfo && SeverityInfo < SeverityWarning && SeverityWarning < SeverityError) {
		t.Error("severity levels are not ordered")
	}
}

// TestParseSeverity tests parsing severity names.
func TestParseSeverity(t *testing.T) {
	t.Parallel()

	t.Run("parses names case-insensitively", func(t *testing.T) {
		t.Parallel()
		got, err := ParseSeverity(" warning ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != SeverityWarning {
			t.Errorf("got %v, expected %v", got, SeverityWarning)
		}
	})

	t.Run("rejects unknown names", func(t *testing.T) {
		t.Parallel()
		if _, err := ParseSeverity("critical"); err == nil {
			t.Error("expected error for unknown severity")
		}
	})
}

// TestSeverityJSON tests that severities serialize as lower-case names.
func TestSeverityJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Issue{Category: "x", Severity: SeverityError})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["severity"] != "error" {
		t.Errorf("expected severity \"error\", got %v", decoded["severity"])
	}

	var issue Issue
	if err := json.Unmarshal(data, &issue); err != nil {
		t.Fatalf("unmarshal into Issue failed: %v", err)
	}
	if issue.Severity != SeverityError {
		t.Errorf("got %v, expected %v", issue.Severity, SeverityError)
	}
}

// TestDetermineSeverity tests picking the worst issue severity.
func TestDetermineSeverity(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		issues   []Issue
		expected Severity
	}{
		{"no issues is success", nil, SeveritySuccess},
		{"single success", []Issue{{Severity: SeveritySuccess}}, SeveritySuccess},
		{"warning only", []Issue{{Severity: SeverityWarning}}, SeverityWarning},
		{"error wins over warning", []Issue{{Severity: SeverityWarning}, {Severity: SeverityError}}, SeverityError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := DetermineSeverity(tc.issues); got != tc.expected {
				t.Errorf("got %v, expected %v", got, tc.expected)
			}
		})
	}
}
