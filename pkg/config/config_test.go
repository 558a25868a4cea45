package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const minimalYAML = `
workspace:
  name: SalesSense
connection:
  name: SalesSense - DEV
  parameters:
    connectionDetails.type: HttpServer
lakehouse:
  name: LH_STORE_RAW
  enable_schemas: true
artifacts:
  src_root: src
  pipeline: DP_INGST_CopyCSV.DataPipeline
  notebook: NB_TRNSF_Raw.Notebook
  semantic_model: SM_SalesSense.SemanticModel
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fabdeploy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvClientID, EnvClientSecret, EnvTenantID, EnvCapacity, EnvAdminUPNs} {
		t.Setenv(key, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Staging.Root != "_stg" {
		t.Errorf("Staging.Root = %q, want _stg", cfg.Staging.Root)
	}
	if len(cfg.Staging.IgnorePatterns) != 1 || cfg.Staging.IgnorePatterns[0] != "*.abf" {
		t.Errorf("IgnorePatterns = %v", cfg.Staging.IgnorePatterns)
	}
	if cfg.Artifacts.ReportsGlob != "*.Report" {
		t.Errorf("ReportsGlob = %q", cfg.Artifacts.ReportsGlob)
	}
	if cfg.Poll.Attempts != 3 {
		t.Errorf("Poll.Attempts = %d, want 3", cfg.Poll.Attempts)
	}
	if cfg.Poll.Interval.Duration() != 30*time.Second {
		t.Errorf("Poll.Interval = %v, want 30s", cfg.Poll.Interval.Duration())
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvCapacity, "cap-dev")
	t.Setenv(EnvAdminUPNs, "a@example.com, b@example.com, ,")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Workspace.Capacity != "cap-dev" {
		t.Errorf("Capacity = %q", cfg.Workspace.Capacity)
	}
	want := []string{"a@example.com", "b@example.com"}
	if len(cfg.Workspace.AdminUPNs) != len(want) {
		t.Fatalf("AdminUPNs = %v, want %v", cfg.Workspace.AdminUPNs, want)
	}
	for i := range want {
		if cfg.Workspace.AdminUPNs[i] != want[i] {
			t.Errorf("AdminUPNs[%d] = %q, want %q", i, cfg.Workspace.AdminUPNs[i], want[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty config")
	}
}

func TestValidateSPNRequiresCredentials(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Auth.SPN = true

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when SPN auth is enabled without credentials")
	}

	cfg.Auth.ClientID = "client"
	cfg.Auth.ClientSecret = "secret"
	cfg.Auth.TenantID = "tenant"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed with credentials set: %v", err)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var p PollConfig
	if err := yaml.Unmarshal([]byte("attempts: 5\ninterval: 45s\n"), &p); err != nil {
		t.Fatal(err)
	}
	if p.Interval.Duration() != 45*time.Second {
		t.Errorf("Interval = %v, want 45s", p.Interval.Duration())
	}

	if err := yaml.Unmarshal([]byte("interval: not-a-duration\n"), &p); err == nil {
		t.Error("expected error for malformed duration")
	}
}
