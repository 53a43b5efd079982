// Package logging provides structured logging with redaction of session secrets.
package logging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Known secret field names that must be redacted in all log output.
var secretFieldNames = []string{
	"cookie",
	"csrf",
	"x-csrfcode",
	"jwt",
	"token",
	"password",
	"secret",
	"private_key",
	"privatekey",
	"credentials",
	"access_token",
	"accesstoken",
	"refresh_token",
	"refreshtoken",
}

// RedactingWriter wraps an io.Writer and replaces registered secret values
// with their redacted form before the bytes reach the sink.
type RedactingWriter struct {
	inner   io.Writer
	mu      sync.RWMutex
	secrets map[string][]byte
}

// NewRedactingWriter creates a writer that redacts registered secret values from log output.
func NewRedactingWriter(inner io.Writer) *RedactingWriter {
	return &RedactingWriter{inner: inner, secrets: make(map[string][]byte)}
}

// Protect registers values that must never appear in log output.
// Values shorter than four bytes are ignored, they would mangle unrelated text.
func (rw *RedactingWriter) Protect(values ...string) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	for _, v := range values {
		if len(v) < 4 {
			continue
		}
		rw.secrets[v] = []byte(RedactValue(v))
	}
}

func (rw *RedactingWriter) Write(p []byte) (n int, err error) {
	rw.mu.RLock()
	out := p
	for secret, replacement := range rw.secrets {
		if bytes.Contains(out, []byte(secret)) {
			out = bytes.ReplaceAll(out, []byte(secret), replacement)
		}
	}
	rw.mu.RUnlock()

	if _, err := rw.inner.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Log output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// NewLogger creates a logger writing through redactor. Pass a shared redactor (see NewRedactor)
// to be able to Protect values after construction; nil gets a private console one on stderr.
func NewLogger(level string, redactor *RedactingWriter) zerolog.Logger {
	if redactor == nil {
		redactor = NewRedactor(FormatConsole, os.Stderr)
	}

	return zerolog.New(redactor).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("component", "cvmbatch").
		Logger()
}

// NewRedactor returns a redactor on w. FormatJSON passes zerolog's JSON lines through
// for machine consumption; anything else renders them for a human console.
func NewRedactor(format string, w io.Writer) *RedactingWriter {
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		return NewRedactingWriter(w)
	}
	return NewRedactingWriter(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    w != os.Stderr,
	})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// IsSecretField checks if a field name is a known secret field that should be redacted.
func IsSecretField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, secret := range secretFieldNames {
		if strings.Contains(lower, secret) {
			return true
		}
	}
	return false
}

// RedactValue replaces a secret value with a safe placeholder containing a hash prefix.
func RedactValue(value string) string {
	if value == "" {
		return ""
	}
	h := sha256.Sum256([]byte(value))
	return "[REDACTED:sha256:" + hex.EncodeToString(h[:])[:8] + "]"
}
