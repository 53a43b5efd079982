package console

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiansir-zhe/cloud-tool/internal/audit"
	"github.com/xiansir-zhe/cloud-tool/internal/batch"
	"github.com/xiansir-zhe/cloud-tool/internal/config"
	"github.com/xiansir-zhe/cloud-tool/internal/core"
	"github.com/xiansir-zhe/cloud-tool/internal/input"
	"github.com/xiansir-zhe/cloud-tool/internal/logging"
	"github.com/xiansir-zhe/cloud-tool/internal/report"
	"github.com/xiansir-zhe/cloud-tool/internal/tencent"
)

const (
	testSecret  = "gate-secret"
	testRequest = "curl 'https://workbench.cloud.tencent.com/cgi/capi' -H 'cookie: uin=o100; skey=abcdef' -H 'x-csrfcode: 12345678'"
)

// stubExecutor succeeds for every target except those listed in fail.
type stubExecutor struct {
	mu    sync.Mutex
	calls int
	fail  map[string]string
}

func (s *stubExecutor) Call(_ context.Context, env tencent.Envelope, _ core.CredentialBundle, _ string, _ string) (tencent.Reply, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	target := ""
	for _, k := range []string{"InstanceId", "DiskId"} {
		if v, ok := env.Data[k].(string); ok {
			target = v
		}
	}
	for _, k := range []string{"InstanceIds", "ImageIds", "SnapshotIds"} {
		if v, ok := env.Data[k].([]string); ok && len(v) > 0 {
			target = v[0]
		}
	}

	if msg, ok := s.fail[target]; ok {
		return tencent.Reply{"data": map[string]any{"Response": map[string]any{
			"Error":     map[string]any{"Code": "InvalidParameter", "Message": msg},
			"RequestId": "req-" + target,
		}}}, nil
	}
	resp := map[string]any{"RequestId": "req-" + target}
	switch env.Action {
	case core.OpCreateImage.Action():
		resp["ImageId"] = "img-" + target
	case core.OpCreateSnapshot.Action():
		resp["SnapshotId"] = "snap-" + target
	}
	return tencent.Reply{"data": map[string]any{"Response": resp}}, nil
}

func (s *stubExecutor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func setupService(t *testing.T, mutate func(*config.Config)) (*Service, *stubExecutor, *core.Engine) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.ReportsDir = filepath.Join(dir, "reports")
	cfg.AccountID = "100000000001"
	cfg.Region = "ap-guangzhou"
	cfg.LogLevel = "error"
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := core.Open(core.EngineOptions{
		StateDir:     cfg.StateDir,
		ReportsDir:   cfg.ReportsDir,
		LogLevel:     cfg.LogLevel,
		GateUsername: cfg.GateUsername(),
		GateSeed:     testSecret,
		Redactor:     logging.NewRedactingWriter(io.Discard),
	})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	exec := &stubExecutor{fail: map[string]string{}}
	svc := NewService(engine, cfg)
	svc.SetExecutor(exec)
	return svc, exec, engine
}

func artifactNames(res *BatchResult) []string {
	var names []string
	for _, a := range res.Artifacts {
		names = append(names, a.Name)
	}
	return names
}

func TestExtractCredentials(t *testing.T) {
	svc, _, _ := setupService(t, nil)

	info := svc.ExtractCredentials(testRequest)
	assert.True(t, info.Complete)
	assert.True(t, info.HasCookie)
	assert.True(t, info.HasCSRFToken)
	assert.NotContains(t, info.CookiePreview, "skey=abcdef")
	assert.True(t, strings.HasPrefix(info.CookiePreview, "[REDACTED:"))

	empty := svc.ExtractCredentials("nothing here")
	assert.False(t, empty.Complete)
	assert.Empty(t, empty.CookiePreview)
}

func TestRunBatchStopInstances(t *testing.T) {
	svc, exec, _ := setupService(t, nil)
	exec.fail["ins-2"] = "instance state does not allow stop"

	res, err := svc.RunBatch(context.Background(), BatchRequest{
		Operation:   "stop",
		RequestText: testRequest,
		CSV:         []byte("ID_cvm\nins-1\nins-2\nins-3\nins-1\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, exec.count(), "duplicate ids are called once")
	require.Len(t, res.Records, 3)
	assert.Equal(t, "ins-1", res.Records[0].TargetID)
	assert.Equal(t, core.StatusFailure, res.Records[1].Status)
	assert.Equal(t, "instance state does not allow stop", res.Records[1].ErrorMessage)
	assert.Equal(t, report.Summary{
		Total: 3, Success: 2, Failure: 1,
		Errors: []report.ErrorCount{{Message: "instance state does not allow stop", Count: 1}},
	}, res.Summary)

	names := artifactNames(res)
	assert.Contains(t, names, report.ResultsFile)
	assert.Contains(t, names, report.StatisticsFile)
	assert.Contains(t, names, report.SpreadsheetFile)
	assert.Contains(t, names, report.ResponseLogFile)
	assert.NotContains(t, names, report.ImageMappingFile)

	listed, err := svc.ListArtifacts(res.RunID)
	require.NoError(t, err)
	assert.Len(t, listed, len(res.Artifacts))

	path, err := svc.ArtifactPath(res.RunID, report.ResultsFile)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, filepath.Base(filepath.Dir(path)))
}

func TestRunBatchCreateSnapshotsWritesMapping(t *testing.T) {
	svc, _, _ := setupService(t, func(c *config.Config) { c.Spreadsheet = false })

	res, err := svc.RunBatch(context.Background(), BatchRequest{
		Operation:   "create-snapshot",
		RequestText: testRequest,
		CSV:         []byte("ID\ndisk-a\ndisk-b\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, []core.Mapping{
		{SourceID: "disk-a", CreatedID: "snap-disk-a"},
		{SourceID: "disk-b", CreatedID: "snap-disk-b"},
	}, res.Mappings)
	assert.Contains(t, artifactNames(res), report.SnapshotMappingFile)
	assert.NotContains(t, artifactNames(res), report.SpreadsheetFile)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "spreadsheet")
}

func TestRunBatchCreateImageReportsNameConflicts(t *testing.T) {
	svc, exec, _ := setupService(t, nil)

	csv := "ID_cvm,cvm_name,ID_dataDisk\nins-1,web,disk-a\nins-1,web-2,disk-b\nins-2,db,\n"
	res, err := svc.RunBatch(context.Background(), BatchRequest{
		Operation:   "create-image",
		RequestText: testRequest,
		CSV:         []byte(csv),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, exec.count())
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, input.NameConflict{InstanceID: "ins-1", Kept: "web", Ignored: "web-2"}, res.Conflicts[0])
	assert.Contains(t, artifactNames(res), report.ImageMappingFile)
}

func TestRunBatchDeleteRequiresSecret(t *testing.T) {
	svc, exec, engine := setupService(t, nil)
	req := BatchRequest{
		Operation:   "delete-image",
		RequestText: testRequest,
		Secret:      "wrong",
		CSV:         []byte("ImageId\nimg-1\n"),
	}

	_, err := svc.RunBatch(context.Background(), req)
	require.ErrorIs(t, err, batch.ErrUnauthorized)
	assert.Zero(t, exec.count())

	req.Secret = testSecret
	res, err := svc.RunBatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Success)

	entries, err := audit.Recent(engine.AuditDB, 10)
	require.NoError(t, err)
	var destructive int
	for _, e := range entries {
		if e.EventType == audit.EventDestructiveRun {
			destructive++
			assert.Equal(t, res.RunID, e.RunID)
		}
	}
	assert.Equal(t, 1, destructive)
}

func TestRunBatchValidation(t *testing.T) {
	svc, exec, _ := setupService(t, func(c *config.Config) {
		c.Scope = core.Scope{AccountIDs: []string{"100000000001"}}
	})

	tests := []struct {
		name string
		req  BatchRequest
	}{
		{"unknown operation", BatchRequest{Operation: "reboot", CSV: []byte("ID_cvm\nins-1\n")}},
		{"missing column", BatchRequest{Operation: "stop", CSV: []byte("InstanceId\nins-1\n")}},
		{"out of scope account", BatchRequest{Operation: "stop", AccountID: "999", CSV: []byte("ID_cvm\nins-1\n")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RunBatch(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, IsInvalid(err), "expected a validation error, got %v", err)
		})
	}
	assert.Zero(t, exec.count())
}

func TestIsInvalid(t *testing.T) {
	assert.False(t, IsInvalid(errors.New("disk full")))
	assert.False(t, IsInvalid(batch.ErrUnauthorized))
	assert.True(t, IsInvalid(batch.ErrRegionRequired))
}

func TestVerifyAudit(t *testing.T) {
	svc, _, _ := setupService(t, nil)

	status, err := svc.VerifyAudit()
	require.NoError(t, err)
	assert.True(t, status.Valid)
	assert.GreaterOrEqual(t, status.Count, 1, "gate seeding is audited")
}
