package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/xiansir-zhe/cloud-tool/internal/config"
)

// runCLI executes args against a fresh root carrying the commands added by register.
func runCLI(t *testing.T, register func(*cobra.Command), args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "cvmbatch", SilenceUsage: true, SilenceErrors: true}
	register(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// isolateConfig points the config home at a temp dir and returns it.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvHome, dir)
	t.Setenv(config.EnvStateDir, "")
	t.Setenv(config.EnvReportsDir, "")
	t.Setenv(config.EnvLogLevel, "error")
	return dir
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}
