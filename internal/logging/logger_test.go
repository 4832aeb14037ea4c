package logging

import (
	"os"
	"path/filepath"
	"testing"
)

// resetState clears package globals between tests.
func resetState() {
	CloseAll()
	logsDir = ""
	workspace = ""
	config = loggingConfig{}
	logLevel = LevelInfo
}

func TestInitializeWithoutConfigIsSilent(t *testing.T) {
	defer resetState()

	ws := t.TempDir()
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if IsDebugMode() {
		t.Error("debug mode should default to off without config")
	}

	// No logs directory should be created in production mode
	if _, err := os.Stat(filepath.Join(ws, ".finsight", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not exist without debug mode")
	}

	// Logging must be a safe no-op
	Intent("should not panic")
	Get(CategoryPolicy).Error("also a no-op")
}

func TestInitializeDebugModeWritesFiles(t *testing.T) {
	defer resetState()

	ws := t.TempDir()
	cfgDir := filepath.Join(ws, ".finsight")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	cfg := `{"logging": {"debug_mode": true, "level": "debug"}}`
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("debug mode should be enabled")
	}

	Executor("ran action %s", "filter_invoices")

	entries, err := os.ReadDir(filepath.Join(ws, ".finsight", "logs"))
	if err != nil {
		t.Fatalf("logs dir: %v", err)
	}
	if len(entries) == 0 {
		t.Error("expected at least one log file")
	}
}

func TestCategoryFiltering(t *testing.T) {
	defer resetState()

	ws := t.TempDir()
	cfgDir := filepath.Join(ws, ".finsight")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	cfg := `{"logging": {"debug_mode": true, "level": "info", "categories": {"intent": false}}}`
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if IsCategoryEnabled(CategoryIntent) {
		t.Error("intent category should be disabled")
	}
	if !IsCategoryEnabled(CategoryPolicy) {
		t.Error("unlisted categories should default to enabled")
	}
}

func TestConfigureOverridesLevelAndFormat(t *testing.T) {
	defer resetState()

	Configure("error", "json")
	if logLevel != LevelError {
		t.Errorf("logLevel = %d, want %d", logLevel, LevelError)
	}
	if !config.JSONFormat {
		t.Error("json format should be enabled")
	}

	// Empty values leave settings untouched.
	Configure("", "")
	if logLevel != LevelError {
		t.Errorf("empty level must not reset logLevel, got %d", logLevel)
	}
	if !config.JSONFormat {
		t.Error("empty format must not reset JSONFormat")
	}

	Configure("debug", "text")
	if logLevel != LevelDebug {
		t.Errorf("logLevel = %d, want %d", logLevel, LevelDebug)
	}
	if config.JSONFormat {
		t.Error("text format should disable JSON output")
	}
}

func TestTimerStop(t *testing.T) {
	defer resetState()

	timer := StartTimer(CategoryExecutor, "filter")
	if d := timer.Stop(); d < 0 {
		t.Errorf("Stop() returned negative duration %v", d)
	}
}
