package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/inletd/inlet/internal/config"
	"github.com/inletd/inlet/internal/security"
	"github.com/inletd/inlet/internal/summary"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inlet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func loadConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return cfg
}

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "inlet")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "inlet.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")

	// Also ensure there's no inlet.yaml in the current directory.
	origDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	_, err := ResolveConfigPath()
	if err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestRun_InvalidConfigPath(t *testing.T) {
	err := Run(RunParams{ConfigPath: "/nonexistent/config.yaml"})
	if err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestRun_InvalidConfigContent(t *testing.T) {
	path := writeConfig(t, "not: valid: yaml: [")

	err := Run(RunParams{ConfigPath: path})
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestRun_ValidationFailure(t *testing.T) {
	// No version and no forward target.
	path := writeConfig(t, "queue:\n  mode: collect")

	err := Run(RunParams{ConfigPath: path})
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestBuildPipeline_Full(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
version: "1"
server:
  listen: "127.0.0.1:0"
  admin_token: "test-admin-token"
forward:
  base_url: "http://127.0.0.1:9000"
  token: "fwd-token"
journal:
  path: "`+filepath.Join(dir, "journal.db")+`"
hooks:
  audit_log: "`+filepath.Join(dir, "audit.jsonl")+`"
reload:
  watch: false
`)
	cfg := loadConfig(t, path)

	p, err := buildPipeline(context.Background(), cfg, path, RunParams{Version: "test"})
	if err != nil {
		t.Fatalf("buildPipeline: %v", err)
	}
	defer p.Close()

	if p.controller == nil || p.gateway == nil || p.scheduler == nil || p.applier == nil {
		t.Fatal("core components missing")
	}
	if p.journal == nil {
		t.Error("journal not opened")
	}
	if p.auditFile == nil {
		t.Error("audit file not opened")
	}
	if p.watcher != nil {
		t.Error("watcher created despite watch: false")
	}
	// Journal on three types, audit handler on two, event stream on three.
	if got := p.hooks.Registered(); got != 8 {
		t.Errorf("registered handlers = %d, want 8", got)
	}
}

func TestBuildPipeline_Minimal(t *testing.T) {
	path := writeConfig(t, `
version: "1"
server:
  listen: "127.0.0.1:0"
forward:
  base_url: "http://127.0.0.1:9000"
`)
	cfg := loadConfig(t, path)

	p, err := buildPipeline(context.Background(), cfg, path, RunParams{})
	if err != nil {
		t.Fatalf("buildPipeline: %v", err)
	}
	defer p.Close()

	if p.journal != nil {
		t.Error("journal opened without a path")
	}
	if p.auditFile != nil {
		t.Error("audit file opened without a path")
	}
	if p.watcher == nil {
		t.Error("watcher missing: watching defaults to on")
	}
	// Only the gateway event stream is registered.
	if got := p.hooks.Registered(); got != 3 {
		t.Errorf("registered handlers = %d, want 3", got)
	}
}

func TestPipeline_StartStop(t *testing.T) {
	path := writeConfig(t, `
version: "1"
server:
  listen: "127.0.0.1:0"
forward:
  base_url: "http://127.0.0.1:9000"
reload:
  watch: false
`)
	cfg := loadConfig(t, path)

	p, err := buildPipeline(context.Background(), cfg, path, RunParams{LogLevel: slog.LevelError})
	if err != nil {
		t.Fatalf("buildPipeline: %v", err)
	}

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		p.Stop(ctx)
		t.Fatalf("Start: %v", err)
	}
	p.Stop(ctx)
}

func TestRegisterSecrets(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.AdminToken = "admin-secret-1"
	cfg.Server.InboundSecrets = map[string]string{"telegram": "tg-secret-2"}
	cfg.Forward.Token = "fwd-secret-3"
	cfg.Summary.APIKey = "sum-secret-4"

	r := security.NewRedactor()
	registerSecrets(r, cfg)

	for _, secret := range []string{"admin-secret-1", "tg-secret-2", "fwd-secret-3", "sum-secret-4"} {
		got := r.Redact("value is " + secret)
		if got != "value is "+security.RedactPlaceholder {
			t.Errorf("secret %q not redacted: %q", secret, got)
		}
	}
}

func TestBuildSummarizer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	s := buildSummarizer(config.SummaryConfig{Provider: "truncate", MaxChars: 100}, logger)
	if _, ok := s.(*summary.Truncator); !ok {
		t.Errorf("truncate provider = %T, want *summary.Truncator", s)
	}

	s = buildSummarizer(config.SummaryConfig{Provider: "anthropic", APIKey: "sk-test"}, logger)
	if _, ok := s.(*summary.Anthropic); !ok {
		t.Errorf("anthropic provider = %T, want *summary.Anthropic", s)
	}
}
