// Package config provides hierarchical configuration loading for worklog.
// Precedence: defaults < YAML file < environment variables.
//
// Every component receives its knobs through an explicit Config value at
// construction time; nothing reads the environment ad hoc after Load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend selects the database engine behind the store.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// AutomationLevel controls how much a hook does on its own.
type AutomationLevel string

const (
	AutomationOff        AutomationLevel = "off"
	AutomationRemind     AutomationLevel = "remind"
	AutomationLight      AutomationLevel = "light"
	AutomationFull       AutomationLevel = "full"
	AutomationAggressive AutomationLevel = "aggressive"
)

// ValidAutomationLevel reports whether s is a recognized automation level.
func ValidAutomationLevel(s AutomationLevel) bool {
	switch s {
	case AutomationOff, AutomationRemind, AutomationLight, AutomationFull, AutomationAggressive:
		return true
	}
	return false
}

// Config holds all runtime configuration for the worklog core.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Hooks    HooksConfig    `yaml:"hooks"`
	Recall   RecallConfig   `yaml:"recall"`
	Curation CurationConfig `yaml:"curation"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
}

// StoreConfig selects and parameterizes the database backend.
type StoreConfig struct {
	Backend Backend `yaml:"backend"`
	// Path is the SQLite database file. Ignored for postgres.
	Path string `yaml:"path"`
	// DSN is the postgres connection string. Ignored for sqlite.
	DSN string `yaml:"dsn"`
	// NetworkShared disables WAL journaling for SQLite databases that live
	// on network filesystems where POSIX locking is unreliable.
	NetworkShared bool `yaml:"network_shared"`
	// System identifies this installation in the shared database.
	System string `yaml:"system"`
	// RetryAttempts bounds lock-contention retries on writes.
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBaseWait time.Duration `yaml:"retry_base_wait"`
}

// HooksConfig sets per-hook automation levels and PostToolUse capture filters.
type HooksConfig struct {
	SessionStart AutomationLevel `yaml:"session_start"`
	SessionEnd   AutomationLevel `yaml:"session_end"`
	PostToolUse  AutomationLevel `yaml:"post_tool_use"`
	// CaptureInclude/CaptureExclude are file globs limiting what
	// PostToolUse may turn into staging memories.
	CaptureInclude []string `yaml:"capture_include"`
	CaptureExclude []string `yaml:"capture_exclude"`
}

// RecallConfig bounds the context index built at session start.
type RecallConfig struct {
	// Budget is the hard wall-clock limit for one index build; past it the
	// result degrades to a reminder instead of blocking the session.
	Budget time.Duration `yaml:"budget"`
	// SamplesPerCategory caps title samples in the index (spec: 3).
	SamplesPerCategory int `yaml:"samples_per_category"`
	// AvgRecordTokens drives the estimated token cost per category.
	AvgRecordTokens int `yaml:"avg_record_tokens"`
	// RecentDays is the lookback window for recent work entries.
	RecentDays int `yaml:"recent_days"`
}

// CurationConfig holds the policy knobs of the curation engine. The defaults
// (0.3/0.5/0.2 weights, importance 7, 0.7 similarity) are starting points,
// not proven constants, so all of them live here.
type CurationConfig struct {
	PromotionImportance int           `yaml:"promotion_importance"`
	PromotionDelay      time.Duration `yaml:"promotion_delay"`
	ArchivalImportance  int           `yaml:"archival_importance"`
	ArchivalAge         time.Duration `yaml:"archival_age"`
	SimilarityFloor     float64       `yaml:"similarity_floor"`
	ConfidenceFloor     float64       `yaml:"confidence_floor"`
	TitleWeight         float64       `yaml:"title_weight"`
	ContentWeight       float64       `yaml:"content_weight"`
	TagWeight           float64       `yaml:"tag_weight"`
	// MaxItemsPerPhase timeboxes each phase so a long run can be
	// interrupted and resumed.
	MaxItemsPerPhase int `yaml:"max_items_per_phase"`
}

// OpenAIConfig configures the classifier/summarizer capability.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Store: StoreConfig{
			Backend:       BackendSQLite,
			Path:          filepath.Join(home, ".worklog", "worklog.db"),
			System:        hostnameOr("local"),
			RetryAttempts: 3,
			RetryBaseWait: 5 * time.Second,
		},
		Hooks: HooksConfig{
			SessionStart:   AutomationLight,
			SessionEnd:     AutomationLight,
			PostToolUse:    AutomationOff,
			CaptureExclude: []string{"*.lock", "node_modules/*", ".git/*"},
		},
		Recall: RecallConfig{
			Budget:             500 * time.Millisecond,
			SamplesPerCategory: 3,
			AvgRecordTokens:    120,
			RecentDays:         7,
		},
		Curation: CurationConfig{
			PromotionImportance: 7,
			PromotionDelay:      24 * time.Hour,
			ArchivalImportance:  4,
			ArchivalAge:         30 * 24 * time.Hour,
			SimilarityFloor:     0.7,
			ConfidenceFloor:     0.5,
			TitleWeight:         0.3,
			ContentWeight:       0.5,
			TagWeight:           0.2,
			MaxItemsPerPhase:    200,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
	}
}

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (Config, error) {
	path := os.Getenv("WORKLOG_CONFIG")
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".worklog", "config.yaml")
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from the given YAML path with env overlay.
func LoadFrom(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// loadEnv overlays environment variables onto cfg. Only non-empty values
// override the current config.
func loadEnv(cfg *Config) {
	// DATABASE_URL implies postgres, mirroring the backend auto-detection
	// of the original deployment.
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Store.Backend = BackendPostgres
		cfg.Store.DSN = dsn
	}
	if v := os.Getenv("WORKLOG_BACKEND"); v != "" {
		cfg.Store.Backend = Backend(strings.ToLower(v))
	}
	setString(&cfg.Store.Path, "WORKLOG_DB_PATH")
	setString(&cfg.Store.System, "WORKLOG_SYSTEM")
	setBool(&cfg.Store.NetworkShared, "WORKLOG_NETWORK_SHARED")
	if v := os.Getenv("WORKLOG_AUTOMATION"); v != "" {
		level := AutomationLevel(strings.ToLower(v))
		cfg.Hooks.SessionStart = level
		cfg.Hooks.SessionEnd = level
		cfg.Hooks.PostToolUse = level
	}
	setDuration(&cfg.Recall.Budget, "WORKLOG_RECALL_BUDGET")
	setInt(&cfg.Curation.MaxItemsPerPhase, "WORKLOG_CURATION_MAX_ITEMS")
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.Model, "WORKLOG_OPENAI_MODEL")
}

func validate(cfg *Config) error {
	switch cfg.Store.Backend {
	case BackendSQLite:
		if cfg.Store.Path == "" {
			return fmt.Errorf("sqlite backend requires store.path")
		}
	case BackendPostgres:
		if cfg.Store.DSN == "" {
			return fmt.Errorf("postgres backend requires store.dsn or DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown backend %q", cfg.Store.Backend)
	}

	for _, level := range []AutomationLevel{cfg.Hooks.SessionStart, cfg.Hooks.SessionEnd, cfg.Hooks.PostToolUse} {
		if !ValidAutomationLevel(level) {
			return fmt.Errorf("invalid automation level %q", level)
		}
	}

	if cfg.Curation.SimilarityFloor < 0 || cfg.Curation.SimilarityFloor > 1 {
		return fmt.Errorf("similarity_floor must be in [0,1], got %v", cfg.Curation.SimilarityFloor)
	}
	if cfg.Curation.ConfidenceFloor < 0 || cfg.Curation.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence_floor must be in [0,1], got %v", cfg.Curation.ConfidenceFloor)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func hostnameOr(fallback string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fallback
	}
	return h
}
