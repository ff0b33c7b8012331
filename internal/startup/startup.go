package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gorilla/mux"

	"audioserve/internal/logging"
	"audioserve/internal/transcode"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	BaseDirs        []string
	CollectionNames []string
	ClientDir       string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool

	PoolWorkers     int
	QueueLimit      int
	MaxTranscodings int

	IconSize          int
	IconFastScaling   bool
	IconCacheDisabled bool

	Cors            bool
	AllowSymlinks   bool
	LogHealthChecks bool

	AuthMode         string // "none", "token", "shared-secret"
	AccessToken      string
	SharedSecretFile string

	DatabaseDir string
	CacheDir    string

	IndexInterval time.Duration

	Presets transcode.Presets

	// Derived paths
	DatabasePath string
	IconCacheDir string
}

// fileConfig is the optional TOML config file shape. Values from the file
// are defaults; environment variables still win.
type fileConfig struct {
	BaseDirs        []string `toml:"base_dirs"`
	CollectionNames []string `toml:"collection_names"`
	Port            string   `toml:"port"`
	MaxTranscodings int      `toml:"max_transcodings"`
	QueueLimit      int      `toml:"queue_limit"`
	Presets         *struct {
		Low    *transcode.Quality `toml:"low"`
		Medium *transcode.Quality `toml:"medium"`
		High   *transcode.Quality `toml:"high"`
	} `toml:"transcoding"`
}

// LoadConfig loads and validates configuration from the optional TOML file
// named by CONFIG_FILE plus environment variables.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	var fc fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		logging.Info("  Config file:         %s", path)
	}

	baseDirs := getEnvList("BASE_DIRS", fc.BaseDirs)
	if len(baseDirs) == 0 {
		baseDirs = []string{"/audiobooks"}
	}
	collectionNames := getEnvList("COLLECTION_NAMES", fc.CollectionNames)
	clientDir := getEnv("CLIENT_DIR", "/client")
	port := getEnv("PORT", firstNonEmpty(fc.Port, "3000"))
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	poolWorkers := getEnvInt("POOL_WORKERS", 0)
	queueLimit := getEnvInt("QUEUE_LIMIT", firstPositive(fc.QueueLimit, 100))
	maxTranscodings := getEnvInt("MAX_TRANSCODINGS", firstPositive(fc.MaxTranscodings, runtime.NumCPU()/2))
	iconSize := getEnvInt("ICON_SIZE", 128)
	iconFastScaling := getEnvBool("ICON_FAST_SCALING", false)
	iconCacheDisabled := getEnvBool("ICON_CACHE_DISABLED", false)
	cors := getEnvBool("CORS", false)
	allowSymlinks := getEnvBool("ALLOW_SYMLINKS", false)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)
	authMode := getEnv("AUTH_MODE", "none")
	accessToken := getEnv("ACCESS_TOKEN", "")
	sharedSecretFile := getEnv("SHARED_SECRET_FILE", "")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	cacheDir := getEnv("CACHE_DIR", "/cache")
	indexIntervalStr := getEnv("INDEX_INTERVAL", "30m")

	if maxTranscodings < 1 {
		maxTranscodings = 1
	}

	logging.Info("  BASE_DIRS:           %s", strings.Join(baseDirs, ", "))
	logging.Info("  CLIENT_DIR:          %s", clientDir)
	logging.Info("  PORT:                %s", port)
	logging.Info("  METRICS_PORT:        %s", metricsPort)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  QUEUE_LIMIT:         %d", queueLimit)
	logging.Info("  MAX_TRANSCODINGS:    %d", maxTranscodings)
	logging.Info("  ICON_SIZE:           %d", iconSize)
	logging.Info("  ICON_FAST_SCALING:   %v", iconFastScaling)
	logging.Info("  CORS:                %v", cors)
	logging.Info("  ALLOW_SYMLINKS:      %v", allowSymlinks)
	logging.Info("  AUTH_MODE:           %s", authMode)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  CACHE_DIR:           %s", cacheDir)
	logging.Info("  INDEX_INTERVAL:      %s", indexIntervalStr)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	indexInterval, err := time.ParseDuration(indexIntervalStr)
	if err != nil {
		logging.Warn("  Invalid INDEX_INTERVAL, using default: 30m")
		indexInterval = 30 * time.Minute
	}

	switch authMode {
	case "none", "token", "shared-secret":
	default:
		return nil, fmt.Errorf("invalid AUTH_MODE %q (want none, token or shared-secret)", authMode)
	}
	if authMode == "token" && accessToken == "" {
		return nil, fmt.Errorf("AUTH_MODE=token requires ACCESS_TOKEN")
	}
	if authMode == "shared-secret" && sharedSecretFile == "" {
		return nil, fmt.Errorf("AUTH_MODE=shared-secret requires SHARED_SECRET_FILE")
	}

	presets := transcode.DefaultPresets()
	if fc.Presets != nil {
		if fc.Presets.Low != nil {
			presets.Low = *fc.Presets.Low
		}
		if fc.Presets.Medium != nil {
			presets.Medium = *fc.Presets.Medium
		}
		if fc.Presets.High != nil {
			presets.High = *fc.Presets.High
		}
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	for i, dir := range baseDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve collection directory %s: %w", dir, err)
		}
		baseDirs[i] = abs
		if err := checkCollectionDir(abs, i); err != nil {
			logging.Warn("  Collection %d issue: %v", i, err)
		}
	}

	// Collection names default to the directory base names.
	if len(collectionNames) != len(baseDirs) {
		collectionNames = make([]string, len(baseDirs))
		for i, dir := range baseDirs {
			collectionNames[i] = filepath.Base(dir)
		}
	}

	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cacheDir, err = filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}

	config := &Config{
		BaseDirs:          baseDirs,
		CollectionNames:   collectionNames,
		ClientDir:         clientDir,
		Port:              port,
		MetricsPort:       metricsPort,
		MetricsEnabled:    metricsEnabled,
		PoolWorkers:       poolWorkers,
		QueueLimit:        queueLimit,
		MaxTranscodings:   maxTranscodings,
		IconSize:          iconSize,
		IconFastScaling:   iconFastScaling,
		IconCacheDisabled: iconCacheDisabled,
		Cors:              cors,
		AllowSymlinks:     allowSymlinks,
		LogHealthChecks:   logHealthChecks,
		AuthMode:          authMode,
		AccessToken:       accessToken,
		SharedSecretFile:  sharedSecretFile,
		DatabaseDir:       databaseDir,
		CacheDir:          cacheDir,
		IndexInterval:     indexInterval,
		Presets:           presets,
		DatabasePath:      filepath.Join(databaseDir, "audioserve.db"),
		IconCacheDir:      filepath.Join(cacheDir, "icons"),
	}

	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    ENABLED (required)")
	logging.Info("    Icon cache:  %s", enabledString(!config.IconCacheDisabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs collection database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogTranscoderInit logs transcoder initialization and checks FFmpeg
func LogTranscoderInit(maxTranscodings int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Concurrency limit: %d", maxTranscodings)

	if err := checkFFmpeg(); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Audio transcoding will not work")
	} else {
		logging.Info("  [OK] FFmpeg is available")
	}
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(interval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Index interval: %v", interval)
	logging.Info("  Starting indexer...")
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started")
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })

		logging.Debug("  Registered routes (%d total):", len(routes))
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
		logging.Debug("")
	}

	logging.Info("  HTTP logging enabled")
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
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

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
                   ___
  _______  ______/ (_)___  ________  ______   _____
 / __ '/ / / / __  / / __ \/ ___/ _ \/ ___/ | / / _ \
/ /_/ / /_/ / /_/ / / /_/ (__  )  __/ /   | |/ /  __/
\__,_/\__,_/\__,_/_/\____/____/\___/_/    |___/\___/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
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

func checkCollectionDir(path string, col int) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat collection directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("collection path %s is not a directory", path)
	}
	logging.Info("  Collection %d: %s", col, path)
	return nil
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
	}
	return nil
}

func checkFFmpeg() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH")
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffmpeg", "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(lines[0]))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvList parses a colon-separated list from the environment, falling
// back to the given default.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ":") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
