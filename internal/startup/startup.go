package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"media-catalog/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	DataDir     string
	ScratchDir  string
	DatabaseDir string
	Port        string

	Workers   int
	QueueSize int

	MetricsEnabled  bool
	LogHealthChecks bool

	// Derived paths
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment
// variables. A .env file in the working directory is merged in first.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := getEnv("DATA_DIR", "/data")
	scratchDir := getEnv("SCRATCH_DIR", "/data/scratch")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	workers := getEnvInt("PIPELINE_WORKERS_LIMIT", 8)
	queueSize := getEnvInt("PIPELINE_QUEUE_SIZE", 64)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)

	logging.Info("  DATA_DIR:              %s", dataDir)
	logging.Info("  SCRATCH_DIR:           %s", scratchDir)
	logging.Info("  DATABASE_DIR:          %s", databaseDir)
	logging.Info("  PORT:                  %s", port)
	logging.Info("  PIPELINE_WORKERS_LIMIT: %d", workers)
	logging.Info("  PIPELINE_QUEUE_SIZE:   %d", queueSize)
	logging.Info("  METRICS_ENABLED:       %v", metricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:     %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	dataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	scratchDir, err = filepath.Abs(scratchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch directory path: %w", err)
	}
	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}

	// Data, scratch and database directories are all hard requirements.
	for _, dir := range []struct{ path, name string }{
		{dataDir, "data"},
		{scratchDir, "scratch"},
		{databaseDir, "database"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable: %s", dir.name, dir.path)
	}

	config := &Config{
		DataDir:         dataDir,
		ScratchDir:      scratchDir,
		DatabaseDir:     databaseDir,
		Port:            port,
		Workers:         workers,
		QueueSize:       queueSize,
		MetricsEnabled:  metricsEnabled,
		LogHealthChecks: logHealthChecks,
		DatabasePath:    filepath.Join(databaseDir, "catalog.db"),
	}

	return config, nil
}

// LogToolAvailability reports whether the external tools are reachable.
// A missing tool is a warning: derivatives degrade per-variant.
func LogToolAvailability() {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("EXTERNAL TOOLS")
	logging.Info("------------------------------------------------------------")

	for _, tool := range []string{"ffmpeg", "ffprobe", "sha256sum"} {
		if _, err := exec.LookPath(tool); err != nil {
			logging.Warn("  %s not found in PATH, dependent stages will fall back or fail per-variant", tool)
		} else {
			logging.Info("  [OK] %s is available", tool)
		}
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogDispatcherInit logs processing dispatcher startup parameters.
func LogDispatcherInit(workerCount, queueSize int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PROCESSING DISPATCHER")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Workers: %d, queue: %d", workerCount, queueSize)
}

// LogServerStarted logs successful server start
func LogServerStarted(port string, startupDuration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:  %v", startupDuration)
	logging.Info("  Application:   http://localhost:%s", port)
	logging.Info("  Metrics:       http://localhost:%s/metrics", port)
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___        ______      __        __
   /  |/  /__  ____/ (_)___ _ / ____/___ _/ /_____ _/ /___  ____ _
  / /|_/ / _ \/ __  / / __ '// /   / __ '/ __/ __ '/ / __ \/ __ '/
 / /  / /  __/ /_/ / / /_/ // /___/ /_/ / /_/ /_/ / / /_/ / /_/ /
/_/  /_/\___/\__,_/_/\__,_/ \____/\__,_/\__/\__,_/_/\____/\__, /
                                                         /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Date: %s", BuildDate)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Write access was confirmed regardless
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("  Invalid boolean for %s: %q, using %v", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		logging.Warn("  Invalid value for %s: %q, using %d", key, value, fallback)
		return fallback
	}
	return parsed
}
