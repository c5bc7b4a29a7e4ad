package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the service release, reported by /health and -version.
const Version = "0.3.0"

// Config holds all predictor service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Batch  BatchConfig  `yaml:"batch"`
	Output OutputConfig `yaml:"output"`
	Store  StoreConfig  `yaml:"store"`
	Cache  CacheConfig  `yaml:"cache"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
}

// EngineConfig locates the trained artifacts.
type EngineConfig struct {
	ModelDir    string `yaml:"model_dir"`
	DataDir     string `yaml:"data_dir"`     // category lists (all_teams.csv, ...)
	Backend     string `yaml:"backend"`      // "" uses the manifest's backend
	ONNXLibrary string `yaml:"onnx_library"` // libonnxruntime path for the onnx backend
}

// BatchConfig controls the startup fixture run.
type BatchConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Fixtures string `yaml:"fixtures"` // file path or http(s) URL
	APIKey   string `yaml:"api_key"`  // bearer token for remote fixture lists
}

// OutputConfig holds batch result destinations.
type OutputConfig struct {
	Targets     []string          `yaml:"targets"` // csv, stdout, file, webhook, postgres
	ResultsPath string            `yaml:"results_path"`
	Pretty      bool              `yaml:"pretty"`
	FilePath    string            `yaml:"file_path"`
	FileMaxSize int64             `yaml:"file_max_size"`
	WebhookURL  string            `yaml:"webhook_url"`
	Headers     map[string]string `yaml:"webhook_headers"`
	BatchSize   int               `yaml:"webhook_batch_size"`
	Async       bool              `yaml:"async"`
	BufferSize  int               `yaml:"async_buffer"`
}

// StoreConfig holds Postgres settings. An empty DSN disables the store.
type StoreConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// CacheConfig holds prediction cache settings. An empty RedisAddr keeps
// the cache process-local.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
			ReadTimeout:     15 * time.Second,
		},
		Engine: EngineConfig{
			ModelDir: "models",
			DataDir:  "datas",
		},
		Batch: BatchConfig{
			Enabled:  true,
			Fixtures: "datas/data_import.csv",
		},
		Output: OutputConfig{
			Targets:     []string{"csv"},
			ResultsPath: "datas/euro_predicted_results.csv",
			BatchSize:   50,
			BufferSize:  1024,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// PREDICTOR_CONFIG (if any), then PREDICTOR_* environment variables.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("PREDICTOR_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getenv("PREDICTOR_ADDR", c.Server.Addr)
	c.Server.ShutdownTimeout = getenvDuration("PREDICTOR_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.ReadTimeout = getenvDuration("PREDICTOR_READ_TIMEOUT", c.Server.ReadTimeout)

	c.Engine.ModelDir = getenv("PREDICTOR_MODEL_DIR", c.Engine.ModelDir)
	c.Engine.DataDir = getenv("PREDICTOR_DATA_DIR", c.Engine.DataDir)
	c.Engine.Backend = getenv("PREDICTOR_BACKEND", c.Engine.Backend)
	c.Engine.ONNXLibrary = getenv("PREDICTOR_ONNX_LIBRARY", c.Engine.ONNXLibrary)

	c.Batch.Enabled = getenvBool("PREDICTOR_BATCH", c.Batch.Enabled)
	c.Batch.Fixtures = getenv("PREDICTOR_FIXTURES", c.Batch.Fixtures)
	c.Batch.APIKey = getenv("PREDICTOR_FIXTURES_API_KEY", c.Batch.APIKey)

	c.Output.Targets = getenvList("PREDICTOR_OUTPUTS", c.Output.Targets)
	c.Output.ResultsPath = getenv("PREDICTOR_RESULTS_PATH", c.Output.ResultsPath)
	c.Output.Pretty = getenvBool("PREDICTOR_OUTPUT_PRETTY", c.Output.Pretty)
	c.Output.FilePath = getenv("PREDICTOR_OUTPUT_FILE", c.Output.FilePath)
	c.Output.FileMaxSize = int64(getenvInt("PREDICTOR_OUTPUT_FILE_MAX_SIZE", int(c.Output.FileMaxSize)))
	c.Output.WebhookURL = getenv("PREDICTOR_WEBHOOK_URL", c.Output.WebhookURL)
	c.Output.Async = getenvBool("PREDICTOR_OUTPUT_ASYNC", c.Output.Async)

	c.Store.PostgresDSN = getenv("PREDICTOR_POSTGRES_DSN", c.Store.PostgresDSN)

	c.Cache.Enabled = getenvBool("PREDICTOR_CACHE", c.Cache.Enabled)
	c.Cache.TTL = getenvDuration("PREDICTOR_CACHE_TTL", c.Cache.TTL)
	c.Cache.RedisAddr = getenv("PREDICTOR_REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getenv("PREDICTOR_REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = getenvInt("PREDICTOR_REDIS_DB", c.Cache.RedisDB)

	c.Log.Level = getenv("PREDICTOR_LOG_LEVEL", c.Log.Level)
}

// HasOutput reports whether target is among the configured outputs.
func (c Config) HasOutput(target string) bool {
	for _, t := range c.Output.Targets {
		if t == target {
			return true
		}
	}
	return false
}

var knownOutputs = map[string]bool{"csv": true, "stdout": true, "file": true, "webhook": true, "postgres": true}

// Validate checks the loaded configuration and returns every problem found.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address must not be empty"))
	}
	if c.Engine.ModelDir == "" {
		errs = append(errs, errors.New("model directory must not be empty"))
	} else if info, err := os.Stat(c.Engine.ModelDir); err != nil || !info.IsDir() {
		errs = append(errs, fmt.Errorf("model directory not found: %s", c.Engine.ModelDir))
	}
	switch c.Engine.Backend {
	case "", "linear", "onnx":
	default:
		errs = append(errs, fmt.Errorf("invalid backend %q (must be linear or onnx)", c.Engine.Backend))
	}
	if c.Batch.Enabled && c.Batch.Fixtures == "" {
		errs = append(errs, errors.New("batch is enabled but no fixture list is set"))
	}
	for _, t := range c.Output.Targets {
		if !knownOutputs[t] {
			errs = append(errs, fmt.Errorf("unknown output %q", t))
		}
	}
	if c.HasOutput("csv") && c.Output.ResultsPath == "" {
		errs = append(errs, errors.New("csv output needs a results path"))
	}
	if c.HasOutput("file") && c.Output.FilePath == "" {
		errs = append(errs, errors.New("file output needs PREDICTOR_OUTPUT_FILE"))
	}
	if c.HasOutput("webhook") && c.Output.WebhookURL == "" {
		errs = append(errs, errors.New("webhook output needs PREDICTOR_WEBHOOK_URL"))
	}
	if c.HasOutput("postgres") && c.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("postgres output needs PREDICTOR_POSTGRES_DSN"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache TTL must be >= 0, got %v", c.Cache.TTL))
	}

	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// getenvList reads a comma-separated list, dropping empty items.
func getenvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
