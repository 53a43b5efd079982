package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/xiansir-zhe/cloud-tool/internal/config"
	"github.com/xiansir-zhe/cloud-tool/internal/core"
)

// loadConfig returns the effective configuration after validation.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadEffective()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openEngine opens the state directory named by cfg and seeds the access gate.
func openEngine(cfg config.Config) (*core.Engine, error) {
	engine, err := core.Open(core.EngineOptions{
		StateDir:     cfg.StateDir,
		ReportsDir:   cfg.ReportsDir,
		LogLevel:     cfg.LogLevel,
		LogFormat:    cfg.LogFormat,
		GateUsername: cfg.GateUsername(),
		GateSeed:     cfg.GateSeedSecret(),
	})
	if err != nil {
		return nil, fmt.Errorf("opening state: %w", err)
	}
	return engine, nil
}

// loadEngine combines loadConfig and openEngine.
func loadEngine() (config.Config, *core.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	engine, err := openEngine(cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, engine, nil
}

// readText reads a file, or stdin when path is "-".
func readText(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// promptSecret reads a secret from the terminal without echo.
func promptSecret(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("%s: stdin is not a terminal, pass the value as a flag", strings.TrimSuffix(prompt, ": "))
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return string(b), nil
}
