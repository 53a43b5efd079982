package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestIsSecretField(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		expected bool
	}{
		{"cookie", "cookie", true},
		{"csrf header", "x-csrfcode", true},
		{"csrf token", "CSRFToken", true},
		{"password", "password", true},
		{"gate secret", "gate_secret", true},
		{"jwt", "jwt", true},
		{"private key", "private_key", true},
		{"account id", "account_id", false},
		{"username", "username", false},
		{"region", "region", false},
		{"instance id", "InstanceId", false},
		{"token field", "refresh_token", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsSecretField(tt.field)
			if got != tt.expected {
				t.Errorf("IsSecretField(%q) = %v, want %v", tt.field, got, tt.expected)
			}
		})
	}
}

func TestRedactValue(t *testing.T) {
	result := RedactValue("uin=o100038461096; skey=@abcdefgh")
	if !strings.HasPrefix(result, "[REDACTED:sha256:") {
		t.Errorf("Expected [REDACTED:sha256:...], got %s", result)
	}
	if !strings.HasSuffix(result, "]") {
		t.Errorf("Expected trailing ], got %s", result)
	}

	// Same input should produce same hash
	result2 := RedactValue("uin=o100038461096; skey=@abcdefgh")
	if result != result2 {
		t.Error("Same input should produce same redacted value")
	}

	// Different input should produce different hash
	result3 := RedactValue("differentSecret")
	if result == result3 {
		t.Error("Different inputs should produce different redacted values")
	}
}

func TestRedactEmptyValue(t *testing.T) {
	result := RedactValue("")
	if result != "" {
		t.Errorf("Empty input should return empty, got %q", result)
	}
}

func TestRedactingWriterMasksProtectedValues(t *testing.T) {
	var buf bytes.Buffer
	rw := NewRedactingWriter(&buf)
	rw.Protect("csrf-1234567", "ab")

	n, err := rw.Write([]byte(`{"level":"info","msg":"token csrf-1234567 used by ab"}`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(`{"level":"info","msg":"token csrf-1234567 used by ab"}`) {
		t.Errorf("expected full length reported, got %d", n)
	}

	out := buf.String()
	if strings.Contains(out, "csrf-1234567") {
		t.Errorf("expected protected value to be redacted, got %s", out)
	}
	if !strings.Contains(out, RedactValue("csrf-1234567")) {
		t.Errorf("expected redacted placeholder, got %s", out)
	}
	if !strings.Contains(out, "used by ab") {
		t.Errorf("expected short values to be left alone, got %s", out)
	}
}

func TestJSONLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", NewRedactor(FormatJSON, &buf))
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected info line to be filtered, got %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, `"component":"cvmbatch"`) {
		t.Errorf("expected warn line with component, got %s", out)
	}
}

func TestConsoleRedactorIsNotJSON(t *testing.T) {
	var buf bytes.Buffer
	rw := NewRedactor("", &buf)
	rw.Protect("cookie-value-123")
	logger := NewLogger("info", rw)
	logger.Info().Str("cookie", "cookie-value-123").Msg("calling")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("expected console output, got %s", out)
	}
	if !strings.Contains(out, "calling") {
		t.Errorf("expected message in output, got %s", out)
	}
	if strings.Contains(out, "cookie-value-123") {
		t.Errorf("expected secret to be redacted, got %s", out)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := ParseLevel("loud"); got.String() != "info" {
		t.Errorf("expected info, got %s", got)
	}
	if got := ParseLevel("DEBUG"); got.String() != "debug" {
		t.Errorf("expected debug, got %s", got)
	}
}
