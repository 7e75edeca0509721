package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starexec/jobview/internal/config"
)

func TestConfigInitShowValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	answers := "https://example.org/starexec/\nsecret-key-123456\n42\n\n"

	out, err := executeCLI(t, answers, "--config", path, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "https://example.org/starexec" || cfg.APIKey != "secret-key-123456" || cfg.JobID != 42 || cfg.ProxyMode != "no-proxy" {
		t.Errorf("saved config = %+v", cfg.Redacted())
	}

	out, err = executeCLI(t, "", "--config", path, "config", "init")
	if err != nil || !strings.Contains(out, "already exists") {
		t.Errorf("second init should refuse to overwrite: %v\n%s", err, out)
	}

	out, err = executeCLI(t, "", "--config", path, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "secret-key-123456") {
		t.Error("config show printed the API key")
	}
	if !strings.Contains(out, "secr...3456") || !strings.Contains(out, "Job:     42") {
		t.Errorf("config show output:\n%s", out)
	}

	if out, err := executeCLI(t, "", "--config", path, "config", "validate"); err != nil {
		t.Errorf("config validate: %v\n%s", err, out)
	}
}

func TestConfigInitGivesUpWithoutKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	if _, err := executeCLI(t, "\n", "--config", path, "config", "init"); err == nil {
		t.Fatal("expected an error without an API key")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("config written without an API key")
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	content := "[server]\nurl = https://example.org\napi_key = k\n\n[view]\npage_size = 3\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := executeCLI(t, "", "--config", path, "config", "validate")
	if err == nil || !strings.Contains(err.Error(), "page_size") {
		t.Fatalf("err = %v, want page size error", err)
	}
}

func TestTokenFileSuppliesKey(t *testing.T) {
	dir := t.TempDir()
	token := filepath.Join(dir, "token")
	if err := os.WriteFile(token, []byte("from-file-key\n"), 0600); err != nil {
		t.Fatal(err)
	}
	out, err := executeCLI(t, "", "--config", filepath.Join(dir, "config"), "--token-file", token, "config", "show", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "from...-key") {
		t.Errorf("token file key not used:\n%s", out)
	}
}

func TestConfigPathCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	out, err := executeCLI(t, "", "--config", path, "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, path) || !strings.Contains(out, "config init") {
		t.Errorf("config path output:\n%s", out)
	}
}
