package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("default backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Recall.Budget != 500*time.Millisecond {
		t.Errorf("recall budget = %v, want 500ms", cfg.Recall.Budget)
	}
	if cfg.Recall.SamplesPerCategory != 3 {
		t.Errorf("samples per category = %d, want 3", cfg.Recall.SamplesPerCategory)
	}
	if cfg.Curation.PromotionImportance != 7 {
		t.Errorf("promotion importance = %d, want 7", cfg.Curation.PromotionImportance)
	}
	if w := cfg.Curation.TitleWeight + cfg.Curation.ContentWeight + cfg.Curation.TagWeight; w < 0.99 || w > 1.01 {
		t.Errorf("similarity weights sum = %v, want 1", w)
	}
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("backend = %q", cfg.Store.Backend)
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
store:
  backend: sqlite
  path: /tmp/test-worklog.db
  network_shared: true
hooks:
  session_start: aggressive
curation:
  promotion_importance: 8
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Store.Path != "/tmp/test-worklog.db" {
		t.Errorf("path = %q", cfg.Store.Path)
	}
	if !cfg.Store.NetworkShared {
		t.Error("network_shared not loaded")
	}
	if cfg.Hooks.SessionStart != AutomationAggressive {
		t.Errorf("session_start = %q", cfg.Hooks.SessionStart)
	}
	if cfg.Curation.PromotionImportance != 8 {
		t.Errorf("promotion_importance = %d", cfg.Curation.PromotionImportance)
	}
	// Untouched sections keep their defaults.
	if cfg.Hooks.SessionEnd != AutomationLight {
		t.Errorf("session_end = %q, want default", cfg.Hooks.SessionEnd)
	}
}

func TestLoadFromBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("malformed YAML accepted")
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  path: /tmp/from-yaml.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WORKLOG_DB_PATH", "/tmp/from-env.db")
	t.Setenv("WORKLOG_AUTOMATION", "full")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Path != "/tmp/from-env.db" {
		t.Errorf("path = %q, env must win over YAML", cfg.Store.Path)
	}
	if cfg.Hooks.SessionStart != AutomationFull || cfg.Hooks.PostToolUse != AutomationFull {
		t.Error("WORKLOG_AUTOMATION not applied to every hook")
	}
}

func TestDatabaseURLImpliesPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://worklog:secret@db:5432/worklog")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Backend != BackendPostgres {
		t.Errorf("backend = %q, want postgres", cfg.Store.Backend)
	}
	if cfg.Store.DSN == "" {
		t.Error("DSN not taken from DATABASE_URL")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cases := []string{
		"store:\n  backend: oracle\n",
		"store:\n  backend: postgres\n", // postgres without DSN
		"hooks:\n  session_start: everything\n",
	}
	for _, body := range cases {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFrom(path); err == nil {
			t.Errorf("config accepted: %s", body)
		}
	}
}

func TestValidAutomationLevel(t *testing.T) {
	for _, level := range []AutomationLevel{AutomationOff, AutomationRemind, AutomationLight, AutomationFull, AutomationAggressive} {
		if !ValidAutomationLevel(level) {
			t.Errorf("level %q rejected", level)
		}
	}
	if ValidAutomationLevel("max") {
		t.Error("invalid level accepted")
	}
}
