package startup

import (
	"os"
	"path/filepath"
	"testing"

	"audioserve/internal/transcode"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BASE_DIRS", t.TempDir())
	t.Setenv("DATABASE_DIR", t.TempDir())
	t.Setenv("CACHE_DIR", t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AUTH_MODE", "")
	t.Setenv("ACCESS_TOKEN", "")
	t.Setenv("MAX_TRANSCODINGS", "")
	t.Setenv("COLLECTION_NAMES", "")
	t.Setenv("PORT", "")
}

func TestLoadConfigDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.AuthMode != "none" {
		t.Errorf("AuthMode = %q, want none", cfg.AuthMode)
	}
	if cfg.MaxTranscodings < 1 {
		t.Errorf("MaxTranscodings = %d, want >= 1", cfg.MaxTranscodings)
	}
	if len(cfg.BaseDirs) != 1 {
		t.Fatalf("BaseDirs = %v", cfg.BaseDirs)
	}
	if len(cfg.CollectionNames) != 1 || cfg.CollectionNames[0] != filepath.Base(cfg.BaseDirs[0]) {
		t.Errorf("collection names should default to directory names, got %v", cfg.CollectionNames)
	}
	if cfg.DatabasePath != filepath.Join(cfg.DatabaseDir, "audioserve.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if got := cfg.Presets.Get(transcode.Low).Bitrate; got != 32 {
		t.Errorf("default low bitrate = %d, want 32", got)
	}
}

func TestLoadConfigMultipleCollections(t *testing.T) {
	setMinimalEnv(t)
	dirs := []string{t.TempDir(), t.TempDir(), t.TempDir()}
	t.Setenv("BASE_DIRS", dirs[0]+":"+dirs[1]+":"+dirs[2])

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.BaseDirs) != 3 {
		t.Fatalf("BaseDirs = %v", cfg.BaseDirs)
	}
	if len(cfg.CollectionNames) != 3 {
		t.Errorf("CollectionNames = %v", cfg.CollectionNames)
	}
}

func TestLoadConfigAuthValidation(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("AUTH_MODE", "token")

	if _, err := LoadConfig(); err == nil {
		t.Error("AUTH_MODE=token without ACCESS_TOKEN should fail")
	}

	t.Setenv("ACCESS_TOKEN", "abc")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AuthMode != "token" || cfg.AccessToken != "abc" {
		t.Errorf("auth config wrong: %q %q", cfg.AuthMode, cfg.AccessToken)
	}

	t.Setenv("AUTH_MODE", "bogus")
	if _, err := LoadConfig(); err == nil {
		t.Error("invalid AUTH_MODE should fail")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	setMinimalEnv(t)

	content := `
base_dirs = ["` + t.TempDir() + `"]
port = "8123"
max_transcodings = 7

[transcoding.medium]
bitrate = 56
codec = "libopus"
compression_level = 9
`
	path := filepath.Join(t.TempDir(), "audioserve.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("BASE_DIRS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8123" {
		t.Errorf("Port = %q, want value from file", cfg.Port)
	}
	if cfg.MaxTranscodings != 7 {
		t.Errorf("MaxTranscodings = %d, want 7", cfg.MaxTranscodings)
	}
	medium := cfg.Presets.Get(transcode.Medium)
	if medium.Bitrate != 56 || medium.CompressionLevel != 9 {
		t.Errorf("medium preset not taken from file: %+v", medium)
	}
	// Untouched presets keep their defaults.
	if cfg.Presets.Get(transcode.High).Bitrate != 64 {
		t.Errorf("high preset changed unexpectedly")
	}

	// Environment still wins over the file.
	t.Setenv("PORT", "9999")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9999" {
		t.Errorf("env PORT should override file, got %q", cfg.Port)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("X_STR", "hello")
	if getEnv("X_STR", "d") != "hello" || getEnv("X_MISSING", "d") != "d" {
		t.Error("getEnv failed")
	}

	t.Setenv("X_BOOL", "true")
	if !getEnvBool("X_BOOL", false) || getEnvBool("X_MISSING", true) != true {
		t.Error("getEnvBool failed")
	}
	t.Setenv("X_BOOL", "junk")
	if getEnvBool("X_BOOL", true) != true {
		t.Error("invalid bool should keep default")
	}

	t.Setenv("X_INT", "42")
	if getEnvInt("X_INT", 1) != 42 || getEnvInt("X_MISSING", 7) != 7 {
		t.Error("getEnvInt failed")
	}

	t.Setenv("X_LIST", "/a:/b : /c:")
	got := getEnvList("X_LIST", nil)
	if len(got) != 3 || got[0] != "/a" || got[1] != "/b" || got[2] != "/c" {
		t.Errorf("getEnvList = %v", got)
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version == "" || info.GoVersion == "" || info.OS == "" {
		t.Errorf("incomplete build info: %+v", info)
	}
}
