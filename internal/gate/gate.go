// Package gate implements the access gate that must approve destructive runs.
// The gate compares a user-supplied secret against the stored secret of a single
// configured principal.
package gate

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiansir-zhe/cloud-tool/internal/audit"
)

// Authorizer decides whether a secret grants access to destructive operations.
type Authorizer interface {
	Authorize(secret string) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(secret string) bool

func (f AuthorizerFunc) Authorize(secret string) bool { return f(secret) }

// DenyAll rejects every secret.
var DenyAll Authorizer = AuthorizerFunc(func(string) bool { return false })

// ErrWrongSecret is returned by Rotate when the current secret does not match.
var ErrWrongSecret = errors.New("current secret does not match")

// Store is the SQLite-backed Authorizer.
type Store struct {
	db       *sql.DB
	username string
	audit    *audit.Logger
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStore returns a gate for username backed by the gate_users table.
// al may be nil, in which case decisions are only logged.
func NewStore(db *sql.DB, username string, al *audit.Logger, logger zerolog.Logger) *Store {
	return &Store{
		db:       db,
		username: username,
		audit:    al,
		logger:   logger.With().Str("subsystem", "gate").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Username is the principal this gate authorizes.
func (s *Store) Username() string { return s.username }

// Seed stores secret for the principal unless a row already exists.
// It reports whether a row was inserted.
func (s *Store) Seed(secret string) (bool, error) {
	hash, err := HashSecret(secret)
	if err != nil {
		return false, err
	}

	ts := s.now().Format(time.RFC3339Nano)
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO gate_users (username, secret_hash, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		s.username, hash, ts, ts,
	)
	if err != nil {
		return false, fmt.Errorf("seeding gate user: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	s.record(audit.EventGateSeeded, map[string]string{"username": s.username})
	s.logger.Info().Str("username", s.username).Msg("access gate seeded")
	return true, nil
}

// Authorize reports whether secret matches the stored secret. Lookup failures deny.
func (s *Store) Authorize(secret string) bool {
	hash, err := s.lookup()
	if err != nil {
		s.logger.Error().Err(err).Msg("gate lookup failed")
		s.record(audit.EventGateDenied, map[string]string{"reason": "lookup failed"})
		return false
	}

	ok := VerifySecret(hash, secret)
	if ok {
		s.record(audit.EventGateAuthorized, nil)
	} else {
		s.logger.Warn().Str("username", s.username).Msg("access gate denied")
		s.record(audit.EventGateDenied, map[string]string{"reason": "secret mismatch"})
	}
	return ok
}

// Rotate replaces the stored secret after checking the current one.
func (s *Store) Rotate(current, next string) error {
	if next == "" {
		return errors.New("new secret must not be empty")
	}
	if !s.Authorize(current) {
		return ErrWrongSecret
	}

	hash, err := HashSecret(next)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`UPDATE gate_users SET secret_hash = ?, updated_at = ? WHERE username = ?`,
		hash, s.now().Format(time.RFC3339Nano), s.username,
	)
	if err != nil {
		return fmt.Errorf("rotating gate secret: %w", err)
	}

	s.record(audit.EventSecretRotated, map[string]string{"username": s.username})
	return nil
}

func (s *Store) lookup() (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT secret_hash FROM gate_users WHERE username = ?`, s.username).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("gate user %q not seeded", s.username)
	}
	if err != nil {
		return "", fmt.Errorf("querying gate user: %w", err)
	}
	return hash, nil
}

// record writes an audit event. A failed write is logged and never changes a decision.
func (s *Store) record(event audit.EventType, detail any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(event, s.username, "", detail); err != nil {
		s.logger.Error().Err(err).Str("event", string(event)).Msg("audit write failed")
	}
}
