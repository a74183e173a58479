package startup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	base := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(base, "data"))
	t.Setenv("SCRATCH_DIR", filepath.Join(base, "scratch"))
	t.Setenv("DATABASE_DIR", filepath.Join(base, "db"))
	t.Setenv("PORT", "9000")
	t.Setenv("PIPELINE_QUEUE_SIZE", "16")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.QueueSize != 16 {
		t.Errorf("QueueSize = %d, want 16", cfg.QueueSize)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want default 8", cfg.Workers)
	}
	if cfg.DatabasePath != filepath.Join(cfg.DatabaseDir, "catalog.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if !filepath.IsAbs(cfg.DataDir) {
		t.Errorf("DataDir should be absolute, got %q", cfg.DataDir)
	}

	// All three directories must exist afterward.
	for _, dir := range []string{cfg.DataDir, cfg.ScratchDir, cfg.DatabaseDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
}

func TestLoadConfigRejectsFileAsDirectory(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "db")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DATA_DIR", filepath.Join(base, "data"))
	t.Setenv("SCRATCH_DIR", filepath.Join(base, "scratch"))
	t.Setenv("DATABASE_DIR", blocker)

	if _, err := LoadConfig(); err == nil {
		t.Error("a file at the database directory path should fail config load")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("STARTUP_TEST_BOOL", "definitely")
	if got := getEnvBool("STARTUP_TEST_BOOL", true); got != true {
		t.Error("invalid boolean should fall back")
	}

	t.Setenv("STARTUP_TEST_INT", "-3")
	if got := getEnvInt("STARTUP_TEST_INT", 7); got != 7 {
		t.Errorf("negative int should fall back, got %d", got)
	}

	os.Unsetenv("STARTUP_TEST_MISSING")
	if got := getEnv("STARTUP_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv = %q", got)
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version == "" || info.GoVersion == "" {
		t.Errorf("build info incomplete: %+v", info)
	}
}
