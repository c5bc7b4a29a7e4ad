package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "PREDICTOR_") {
			os.Unsetenv(key)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected default addr :8000, got %q", cfg.Server.Addr)
	}
	if cfg.Engine.ModelDir != "models" {
		t.Errorf("expected default model dir 'models', got %q", cfg.Engine.ModelDir)
	}
	if !cfg.Batch.Enabled {
		t.Error("expected batch enabled by default")
	}
	if len(cfg.Output.Targets) != 1 || cfg.Output.Targets[0] != "csv" {
		t.Errorf("expected default outputs [csv], got %v", cfg.Output.Targets)
	}
	if cfg.Output.ResultsPath != "datas/euro_predicted_results.csv" {
		t.Errorf("unexpected results path %q", cfg.Output.ResultsPath)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("expected default cache TTL 10m, got %v", cfg.Cache.TTL)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected default ShutdownTimeout=10s, got %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("PREDICTOR_ADDR", ":9090")
	os.Setenv("PREDICTOR_OUTPUTS", "csv, stdout,,webhook")
	os.Setenv("PREDICTOR_BATCH", "false")
	os.Setenv("PREDICTOR_CACHE_TTL", "30s")
	os.Setenv("PREDICTOR_REDIS_DB", "3")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	want := []string{"csv", "stdout", "webhook"}
	if strings.Join(cfg.Output.Targets, ",") != strings.Join(want, ",") {
		t.Errorf("Targets = %v, want %v", cfg.Output.Targets, want)
	}
	if cfg.Batch.Enabled {
		t.Error("expected batch disabled")
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("TTL = %v", cfg.Cache.TTL)
	}
	if cfg.Cache.RedisDB != 3 {
		t.Errorf("RedisDB = %d", cfg.Cache.RedisDB)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "predictor.yaml")
	content := `server:
  addr: ":7000"
  shutdown_timeout: 3s
engine:
  model_dir: /srv/models
  backend: onnx
output:
  targets: [stdout, postgres]
store:
  postgres_dsn: postgres://localhost/predictor
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("PREDICTOR_CONFIG", path)
	os.Setenv("PREDICTOR_MODEL_DIR", "/opt/models")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Addr = %q, want :7000 from file", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Engine.ModelDir != "/opt/models" {
		t.Errorf("ModelDir = %q, env should win over file", cfg.Engine.ModelDir)
	}
	if cfg.Engine.Backend != "onnx" {
		t.Errorf("Backend = %q", cfg.Engine.Backend)
	}
	if !cfg.HasOutput("postgres") || cfg.HasOutput("csv") {
		t.Errorf("Targets = %v", cfg.Output.Targets)
	}
	// Unset keys keep their defaults.
	if cfg.Engine.DataDir != "datas" {
		t.Errorf("DataDir = %q", cfg.Engine.DataDir)
	}
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("server: [unclosed"), 0o644)
	os.Setenv("PREDICTOR_CONFIG", path)
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

// --- Validate tests ---

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := Default()
	cfg.Engine.ModelDir = t.TempDir()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected nil error for valid config, got: %v", err)
	}
}

func TestValidate_MissingModelDir(t *testing.T) {
	cfg := validConfig(t)
	cfg.Engine.ModelDir = "/nonexistent/models"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing model directory")
	}
	if !strings.Contains(err.Error(), "model") {
		t.Fatalf("expected error to mention 'model', got: %v", err)
	}
}

func TestValidate_BadBackend(t *testing.T) {
	cfg := validConfig(t)
	cfg.Engine.Backend = "pickle"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "backend") {
		t.Fatalf("expected backend error, got: %v", err)
	}
}

func TestValidate_OutputRequirements(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"file", "PREDICTOR_OUTPUT_FILE"},
		{"webhook", "PREDICTOR_WEBHOOK_URL"},
		{"postgres", "PREDICTOR_POSTGRES_DSN"},
		{"kafka", "unknown output"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.Output.Targets = []string{tt.target}
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Server.Addr = ""
	cfg.Engine.Backend = "torch"
	cfg.Cache.TTL = -time.Second
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for multiple bad fields")
	}
	msg := err.Error()
	for _, want := range []string{"address", "backend", "TTL"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error to mention %q, got: %v", want, msg)
		}
	}
}

// --- getenv helper tests ---

func TestGetenvInt(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		set      bool
		fallback int
		want     int
	}{
		{"empty uses fallback", "", false, 1000, 1000},
		{"valid int", "500", true, 1000, 500},
		{"zero", "0", true, 1000, 0},
		{"invalid falls back", "abc", true, 1000, 1000},
		{"negative", "-1", true, 1000, -1},
	}

	const key = "PREDICTOR_TEST_GETENVINT"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				os.Setenv(key, tt.envVal)
				defer os.Unsetenv(key)
			} else {
				os.Unsetenv(key)
			}
			got := getenvInt(key, tt.fallback)
			if got != tt.want {
				t.Errorf("getenvInt(%q, %d) = %d, want %d", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetenvBoolInvalidFallsBack(t *testing.T) {
	const key = "PREDICTOR_TEST_GETENVBOOL"
	os.Setenv(key, "maybe")
	defer os.Unsetenv(key)
	if !getenvBool(key, true) {
		t.Error("expected fallback true for unparsable value")
	}
}

func TestVersion_IsSet(t *testing.T) {
	if Version == "" {
		t.Fatal("expected non-empty Version constant")
	}
}
