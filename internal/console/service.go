// service.go implements the console service layer.
// The CLI, the gRPC handler and the HTTP routes all run batches through it.
package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiansir-zhe/cloud-tool/internal/artifact"
	"github.com/xiansir-zhe/cloud-tool/internal/audit"
	"github.com/xiansir-zhe/cloud-tool/internal/batch"
	"github.com/xiansir-zhe/cloud-tool/internal/config"
	"github.com/xiansir-zhe/cloud-tool/internal/core"
	"github.com/xiansir-zhe/cloud-tool/internal/credentials"
	"github.com/xiansir-zhe/cloud-tool/internal/input"
	"github.com/xiansir-zhe/cloud-tool/internal/logging"
	"github.com/xiansir-zhe/cloud-tool/internal/report"
	"github.com/xiansir-zhe/cloud-tool/internal/responselog"
	"github.com/xiansir-zhe/cloud-tool/internal/scope"
	"github.com/xiansir-zhe/cloud-tool/internal/tencent"
)

// Service is the unified console service backing the CLI, gRPC and HTTP surfaces.
type Service struct {
	engine   *core.Engine
	cfg      config.Config
	exec     batch.Executor
	exporter *report.Exporter
	logger   zerolog.Logger
}

// NewService creates a console service. Vendor calls go through a tencent.Client
// configured from cfg unless SetExecutor replaces it.
func NewService(engine *core.Engine, cfg config.Config) *Service {
	logger := engine.Logger.With().Str("subsystem", "console").Logger()

	var sheet report.SpreadsheetWriter
	if cfg.Spreadsheet {
		sheet = report.ExcelWriter{}
	}

	return &Service{
		engine: engine,
		cfg:    cfg,
		exec: tencent.NewClient(tencent.Options{
			ComputeBaseURL:      cfg.ComputeBaseURL,
			BlockStorageBaseURL: cfg.BlockStorageBaseURL,
			Timeout:             cfg.RequestTimeout(),
			RetryMax:            cfg.RetryMax,
			MinInterval:         cfg.MinInterval(),
			Logger:              engine.Logger,
		}),
		exporter: report.NewExporter(engine.Artifacts, sheet, logger),
		logger:   logger,
	}
}

// SetExecutor replaces the vendor executor.
func (s *Service) SetExecutor(exec batch.Executor) {
	s.exec = exec
}

// --- Credentials ---

// CredentialInfo reports which credentials were found, with redacted previews.
type CredentialInfo struct {
	HasCookie        bool   `json:"has_cookie"`
	HasCSRFToken     bool   `json:"has_csrf_token"`
	CookiePreview    string `json:"cookie_preview,omitempty"`
	CSRFTokenPreview string `json:"csrf_token_preview,omitempty"`
	Complete         bool   `json:"complete"`
}

// ExtractCredentials inspects a pasted request. Raw values are never returned.
func (s *Service) ExtractCredentials(text string) CredentialInfo {
	creds := credentials.Extract(text)
	info := CredentialInfo{
		HasCookie:    creds.HasCookie,
		HasCSRFToken: creds.HasCSRFToken,
		Complete:     creds.Complete(),
	}
	if creds.HasCookie {
		info.CookiePreview = logging.RedactValue(creds.Cookie)
	}
	if creds.HasCSRFToken {
		info.CSRFTokenPreview = logging.RedactValue(creds.CSRFToken)
	}
	return info
}

// --- Batch runs ---

// BatchRequest is one batch run submitted through a console surface.
type BatchRequest struct {
	Operation   string `json:"operation"`
	RequestText string `json:"request_text"`
	AccountID   string `json:"account_id,omitempty"`
	Region      string `json:"region,omitempty"`
	Secret      string `json:"secret,omitempty"`
	CSV         []byte `json:"csv"`
	Workers     int    `json:"workers,omitempty"`
	Operator    string `json:"operator,omitempty"`
}

// BatchResult is what a run produced.
type BatchResult struct {
	RunID     string               `json:"run_id"`
	Operation core.Operation       `json:"operation"`
	Summary   report.Summary       `json:"summary"`
	Records   []core.Record        `json:"records"`
	Mappings  []core.Mapping       `json:"mappings,omitempty"`
	Artifacts []artifact.Record    `json:"artifacts"`
	Warnings  []string             `json:"warnings,omitempty"`
	Conflicts []input.NameConflict `json:"name_conflicts,omitempty"`
	Duration  string               `json:"duration"`
}

// RunBatch loads the targets from the CSV, runs the operation and exports the reports.
// Validation problems are returned before any vendor call and satisfy IsInvalid.
func (s *Service) RunBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	op, err := core.ParseOperation(req.Operation)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", batch.ErrUnknownOperation, req.Operation)
	}

	ids, groups, conflicts, err := input.Targets(op, bytes.NewReader(req.CSV))
	if err != nil {
		return nil, err
	}

	creds := credentials.Extract(req.RequestText)
	s.engine.Redactor.Protect(creds.Cookie, creds.CSRFToken, req.Secret)
	if !creds.Complete() {
		s.logger.Warn().
			Bool("cookie", creds.HasCookie).
			Bool("csrf", creds.HasCSRFToken).
			Msg("request text is missing credentials, the vendor will likely reject the calls")
	}

	accountID := req.AccountID
	if accountID == "" {
		accountID = s.cfg.AccountID
	}
	region := req.Region
	if region == "" && op.Plane() == core.PlaneCompute {
		region = s.cfg.Region
	}
	workers := req.Workers
	if workers == 0 {
		workers = s.cfg.Workers
	}
	operator := req.Operator
	if operator == "" {
		operator = "console"
	}

	var rawLog bytes.Buffer
	sink := responselog.NewWriter(&rawLog)
	runner := batch.NewRunner(s.exec, batch.Options{
		Workers:  workers,
		RegionID: s.cfg.BlockStorageRegionID,
		Gate:     s.engine.Gate,
		Scope:    scope.NewChecker(s.cfg.Scope),
		Sink:     sink,
		Logger:   s.logger,
	})

	run, err := runner.Run(ctx, op, batch.Request{
		Credentials: creds,
		AccountID:   accountID,
		Region:      region,
		Secret:      req.Secret,
	}, batch.Targets{IDs: ids, ImageGroups: groups})
	if err != nil {
		s.auditRejection(op, operator, accountID, err)
		return nil, err
	}

	if op.Destructive() {
		s.audit(audit.EventDestructiveRun, operator, run.ID, map[string]any{
			"operation": op,
			"account":   accountID,
			"targets":   len(run.Records),
		})
	}

	bundle, err := s.exporter.Export(run)
	if err != nil {
		return nil, fmt.Errorf("exporting run %s: %w", run.ID, err)
	}
	if err := sink.Err(); err != nil {
		bundle.Warnings = append(bundle.Warnings, fmt.Sprintf("response log incomplete: %v", err))
	}
	if err := s.exporter.StoreResponseLog(bundle, &rawLog); err != nil {
		return nil, fmt.Errorf("storing response log: %w", err)
	}

	for _, c := range conflicts {
		bundle.Warnings = append(bundle.Warnings,
			fmt.Sprintf("instance %s: name %q ignored, using %q", c.InstanceID, c.Ignored, c.Kept))
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Str("operation", string(op)).
		Int("total", bundle.Summary.Total).
		Int("success", bundle.Summary.Success).
		Msg("batch finished")

	return &BatchResult{
		RunID:     run.ID,
		Operation: op,
		Summary:   bundle.Summary,
		Records:   run.Records,
		Mappings:  run.Mappings,
		Artifacts: bundle.Artifacts,
		Warnings:  bundle.Warnings,
		Conflicts: conflicts,
		Duration:  run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
	}, nil
}

func (s *Service) auditRejection(op core.Operation, operator, accountID string, err error) {
	var violation *scope.ScopeViolation
	if errors.As(err, &violation) {
		s.audit(audit.EventScopeViolation, operator, "", map[string]any{
			"operation": op,
			"account":   accountID,
			"reason":    violation.Error(),
		})
	}
}

func (s *Service) audit(event audit.EventType, operator, runID string, detail any) {
	if s.engine.AuditLogger == nil {
		return
	}
	if err := s.engine.AuditLogger.Log(event, operator, runID, detail); err != nil {
		s.logger.Error().Err(err).Str("event", string(event)).Msg("audit write failed")
	}
}

// IsInvalid reports whether err is a request problem rather than a server fault.
func IsInvalid(err error) bool {
	switch {
	case errors.Is(err, batch.ErrUnknownOperation),
		errors.Is(err, batch.ErrAccountRequired),
		errors.Is(err, batch.ErrRegionRequired),
		errors.Is(err, input.ErrMissingColumn),
		scope.IsScopeViolation(err):
		return true
	}
	return false
}

// --- Artifacts ---

// ListArtifacts returns the manifest of a run.
func (s *Service) ListArtifacts(runID string) ([]artifact.Record, error) {
	return s.engine.Artifacts.List(runID)
}

// ArtifactPath resolves a stored artifact to its file path.
func (s *Service) ArtifactPath(runID, name string) (string, error) {
	return s.engine.Artifacts.Path(runID, name)
}

// --- Audit ---

// AuditStatus is the result of verifying the audit hash chain.
type AuditStatus struct {
	Valid bool `json:"valid"`
	Count int  `json:"count"`
}

func (s *Service) VerifyAudit() (*AuditStatus, error) {
	valid, count, err := audit.Verify(s.engine.AuditDB)
	if err != nil {
		return nil, err
	}
	return &AuditStatus{Valid: valid, Count: count}, nil
}
