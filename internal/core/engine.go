// engine.go provides the Engine that wires the persistent subsystems of a cvmbatch state directory.
package core

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/xiansir-zhe/cloud-tool/internal/artifact"
	"github.com/xiansir-zhe/cloud-tool/internal/audit"
	"github.com/xiansir-zhe/cloud-tool/internal/db"
	"github.com/xiansir-zhe/cloud-tool/internal/gate"
	"github.com/xiansir-zhe/cloud-tool/internal/logging"
)

// EngineOptions locate the state and select the gate principal.
type EngineOptions struct {
	StateDir     string
	ReportsDir   string
	LogLevel     string
	LogFormat    string
	GateUsername string
	// GateSeed is stored for GateUsername when no row exists yet. Empty skips seeding.
	GateSeed string
	// Redactor receives log output; nil gets a LogFormat redactor on stderr.
	Redactor *logging.RedactingWriter
}

// Engine holds the open databases and stores shared by every run.
type Engine struct {
	StateDB     *sql.DB
	AuditDB     *sql.DB
	AuditLogger *audit.Logger
	Gate        *gate.Store
	Artifacts   *artifact.Store
	Redactor    *logging.RedactingWriter
	Logger      zerolog.Logger
}

// Open prepares the state directory, opens both databases and seeds the gate.
func Open(opts EngineOptions) (*Engine, error) {
	if opts.StateDir == "" || opts.ReportsDir == "" {
		return nil, fmt.Errorf("state and reports directories are required")
	}
	if err := db.EnsureStateDir(opts.StateDir, opts.ReportsDir); err != nil {
		return nil, err
	}

	redactor := opts.Redactor
	if redactor == nil {
		redactor = logging.NewRedactor(opts.LogFormat, os.Stderr)
	}
	logger := logging.NewLogger(opts.LogLevel, redactor)

	stateDB, err := db.OpenStateDB(opts.StateDir)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	auditDB, err := db.OpenAuditDB(opts.StateDir)
	if err != nil {
		stateDB.Close()
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	al, err := audit.NewLogger(auditDB)
	if err != nil {
		stateDB.Close()
		auditDB.Close()
		return nil, fmt.Errorf("creating audit logger: %w", err)
	}

	g := gate.NewStore(stateDB, opts.GateUsername, al, logger)
	if opts.GateSeed != "" {
		if _, err := g.Seed(opts.GateSeed); err != nil {
			stateDB.Close()
			auditDB.Close()
			return nil, fmt.Errorf("seeding access gate: %w", err)
		}
	}

	return &Engine{
		StateDB:     stateDB,
		AuditDB:     auditDB,
		AuditLogger: al,
		Gate:        g,
		Artifacts:   artifact.NewStore(opts.ReportsDir),
		Redactor:    redactor,
		Logger:      logger,
	}, nil
}

// Close releases both databases.
func (e *Engine) Close() error {
	var firstErr error
	if e.StateDB != nil {
		if err := e.StateDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.AuditDB != nil {
		if err := e.AuditDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
