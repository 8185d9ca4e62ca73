package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the postmesh service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Fusion     FusionConfig     `yaml:"fusion"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Search     SearchConfig     `yaml:"search"`
	Cache      CacheConfig      `yaml:"cache"`
	Auth       AuthConfig       `yaml:"auth"`
	Index      IndexConfig      `yaml:"index"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxRetries int    `yaml:"max_retries"`
	CacheTTLHr int    `yaml:"cache_ttl_hours"`
}

// FusionConfig holds Reciprocal Rank Fusion tuning. K and the source
// weights materially change ranking behavior and are a primary tuning
// lever, so they are always configurable.
type FusionConfig struct {
	K              *int     `yaml:"k"` // pointer: 0 is a valid (degenerate) value
	SemanticWeight *float64 `yaml:"semantic_weight"`
	LexicalWeight  *float64 `yaml:"lexical_weight"`
}

// ClusteringConfig holds cluster assignment settings.
type ClusteringConfig struct {
	JoinThreshold    *float64 `yaml:"join_threshold"`
	CandidateLimit   int      `yaml:"candidate_limit"` // hard cap on the candidate pool
	MaxKeywords      int      `yaml:"max_keywords"`
	QuietWindowSec   int      `yaml:"quiet_window_sec"`
	SweepIntervalMin int      `yaml:"sweep_interval_min"`
}

// SearchConfig holds query path settings.
type SearchConfig struct {
	AdapterTimeoutMS int `yaml:"adapter_timeout_ms"`
	DefaultLimit     int `yaml:"default_limit"`
	MaxLimit         int `yaml:"max_limit"`
}

// CacheConfig holds fused result cache settings.
type CacheConfig struct {
	TTLMin int `yaml:"ttl_min"`
}

// IndexConfig holds HNSW index settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR} and ${VAR:-default}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 5
	}
	if c.Embedding.MaxRetries < 0 {
		c.Embedding.MaxRetries = 0
	} else if c.Embedding.MaxRetries == 0 {
		c.Embedding.MaxRetries = 2
	}
	if c.Embedding.CacheTTLHr <= 0 {
		c.Embedding.CacheTTLHr = 24 * 30
	}
	if c.Fusion.K == nil {
		k := 60
		c.Fusion.K = &k
	}
	if c.Fusion.SemanticWeight == nil {
		w := 0.7
		c.Fusion.SemanticWeight = &w
	}
	if c.Fusion.LexicalWeight == nil {
		w := 0.3
		c.Fusion.LexicalWeight = &w
	}
	if c.Clustering.JoinThreshold == nil {
		t := 0.5
		c.Clustering.JoinThreshold = &t
	}
	if c.Clustering.CandidateLimit <= 0 {
		c.Clustering.CandidateLimit = 200
	}
	if c.Clustering.MaxKeywords <= 0 {
		c.Clustering.MaxKeywords = 10
	}
	if c.Clustering.QuietWindowSec <= 0 {
		c.Clustering.QuietWindowSec = 5
	}
	if c.Clustering.SweepIntervalMin <= 0 {
		c.Clustering.SweepIntervalMin = 60
	}
	if c.Search.AdapterTimeoutMS <= 0 {
		c.Search.AdapterTimeoutMS = 2000
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Cache.TTLMin <= 0 {
		c.Cache.TTLMin = 60
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions is required")
	}
	if *c.Fusion.K < 0 {
		return fmt.Errorf("fusion.k must be >= 0, got %d", *c.Fusion.K)
	}
	if *c.Fusion.SemanticWeight < 0 || *c.Fusion.LexicalWeight < 0 {
		return fmt.Errorf("fusion weights must be >= 0")
	}
	if *c.Fusion.SemanticWeight == 0 && *c.Fusion.LexicalWeight == 0 {
		return fmt.Errorf("at least one fusion weight must be positive")
	}
	if t := *c.Clustering.JoinThreshold; t < 0 || t > 1 {
		return fmt.Errorf("clustering.join_threshold must be in [0, 1], got %g", t)
	}
	if c.Cache.TTLMin > 360 {
		return fmt.Errorf("cache.ttl_min must be at most 360 (6 hours), got %d", c.Cache.TTLMin)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
