package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the pairfecto API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Location  LocationConfig  `yaml:"location"`
	Maps      MapsConfig      `yaml:"maps"`
	Auth      AuthConfig      `yaml:"auth"`
	Vector    VectorConfig    `yaml:"vector"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Logging   LoggingConfig   `yaml:"logging"`

	// DevMode enables deterministic fallbacks without warnings and relaxes auth.
	DevMode bool `yaml:"dev_mode"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	// PublicURL prefixes photo proxy links handed to clients.
	PublicURL   string   `yaml:"public_url"`
	CORSOrigins []string `yaml:"cors_origins"`
	// QueryRatePerMin caps POST /query calls per caller; 0 applies the default.
	QueryRatePerMin int `yaml:"query_rate_per_min"`
}

// DatabaseConfig holds Valkey connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// MongoConfig holds the document store connection.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// Embedding backends.
const (
	EmbeddingOpenAI  = "openai"
	EmbeddingGemini  = "gemini"
	EmbeddingOffline = "offline"
)

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Backend    string `yaml:"backend"` // openai, gemini, offline
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// CacheTTLHours bounds how long cached vectors live; 0 keeps them forever.
	CacheTTLHours int  `yaml:"cache_ttl_hours"`
	CacheDisabled bool `yaml:"cache_disabled"`
}

// Ranking backends.
const (
	RankingGemini    = "gemini"
	RankingHeuristic = "heuristic"
)

// RankingConfig configures the generative ranking model.
type RankingConfig struct {
	Backend         string  `yaml:"backend"` // gemini, heuristic
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
	RequestsPerMin  int     `yaml:"requests_per_minute"`
	// BreakerFailures consecutive failures open the circuit.
	BreakerFailures int `yaml:"breaker_failures"`
	BreakerOpenSec  int `yaml:"breaker_open_sec"`
}

// LocationConfig configures place extraction and geocoding.
type LocationConfig struct {
	NERURL        string `yaml:"ner_url"`
	NERToken      string `yaml:"ner_token"`
	MapboxToken   string `yaml:"mapbox_token"`
	MapboxBaseURL string `yaml:"mapbox_base_url"`
}

// MapsConfig configures the live maps pipeline.
type MapsConfig struct {
	APIKey         string `yaml:"api_key"`
	RadiusMeters   int    `yaml:"radius_meters"`
	MaxPlaces      int    `yaml:"max_places"`
	DetailsTTLMin  int    `yaml:"details_ttl_min"`
	PhotoMaxWidth  int    `yaml:"photo_max_width"`
	DefaultCity    string `yaml:"default_city"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

// Auth modes.
const (
	AuthHeader = "header"
	AuthGoogle = "google"
)

// AuthConfig selects how callers are identified.
type AuthConfig struct {
	Mode      string   `yaml:"mode"` // header, google
	ClientIDs []string `yaml:"client_ids"`
	Issuers   []string `yaml:"issuers"`
	JWKSURL   string   `yaml:"jwks_url"`
}

// VectorConfig holds restaurant index settings.
type VectorConfig struct {
	IndexName       string `yaml:"index_name"`
	KeyPrefix       string `yaml:"key_prefix"`
	TopK            int    `yaml:"top_k"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// TimeoutsConfig bounds external calls.
type TimeoutsConfig struct {
	ExternalCallSec int `yaml:"external_call_sec"`
	RankingSec      int `yaml:"ranking_sec"`
}

// ExternalCall returns the per-call timeout for extractors, geocoders and embedders.
func (t TimeoutsConfig) ExternalCall() time.Duration {
	return time.Duration(t.ExternalCallSec) * time.Second
}

// Ranking returns the timeout for a generative model call.
func (t TimeoutsConfig) Ranking() time.Duration {
	return time.Duration(t.RankingSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, when present, seeds the process environment first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references in data, decodes it and applies defaults and validation.
func Parse(data []byte) (Config, error) {
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
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"*"}
	}
	if c.HTTP.QueryRatePerMin <= 0 {
		c.HTTP.QueryRatePerMin = 30
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "pairfecto"
	}

	if c.Embedding.Backend == "" {
		c.Embedding.Backend = EmbeddingOpenAI
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.Model == "" {
		switch c.Embedding.Backend {
		case EmbeddingGemini:
			c.Embedding.Model = "text-embedding-004"
		default:
			c.Embedding.Model = "all-MiniLM-L6-v2"
		}
	}

	if c.Ranking.Backend == "" {
		c.Ranking.Backend = RankingGemini
	}
	if c.Ranking.Model == "" {
		c.Ranking.Model = "gemini-1.5-flash"
	}
	if c.Ranking.Temperature <= 0 {
		c.Ranking.Temperature = 0.5
	}
	if c.Ranking.MaxOutputTokens <= 0 {
		c.Ranking.MaxOutputTokens = 1024
	}
	if c.Ranking.RequestsPerMin <= 0 {
		c.Ranking.RequestsPerMin = 60
	}
	if c.Ranking.BreakerFailures <= 0 {
		c.Ranking.BreakerFailures = 5
	}
	if c.Ranking.BreakerOpenSec <= 0 {
		c.Ranking.BreakerOpenSec = 30
	}

	if c.Location.MapboxBaseURL == "" {
		c.Location.MapboxBaseURL = "https://api.mapbox.com"
	}

	if c.Maps.RadiusMeters <= 0 {
		c.Maps.RadiusMeters = 20000
	}
	if c.Maps.MaxPlaces <= 0 {
		c.Maps.MaxPlaces = 40
	}
	if c.Maps.DetailsTTLMin <= 0 {
		c.Maps.DetailsTTLMin = 24 * 60
	}
	if c.Maps.PhotoMaxWidth <= 0 {
		c.Maps.PhotoMaxWidth = 800
	}
	if c.Maps.DefaultCity == "" {
		c.Maps.DefaultCity = "San Francisco"
	}
	if c.Maps.MaxConcurrency <= 0 {
		c.Maps.MaxConcurrency = 8
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthHeader
	}
	if c.Auth.JWKSURL == "" {
		c.Auth.JWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	}

	if c.Vector.IndexName == "" {
		c.Vector.IndexName = "pairfecto:restaurants:idx"
	}
	if c.Vector.KeyPrefix == "" {
		c.Vector.KeyPrefix = "pairfecto:restaurant:"
	}
	if c.Vector.TopK <= 0 {
		c.Vector.TopK = 15
	}
	if c.Vector.HNSWM <= 0 {
		c.Vector.HNSWM = 16
	}
	if c.Vector.HNSWEFConstruct <= 0 {
		c.Vector.HNSWEFConstruct = 200
	}

	if c.Timeouts.ExternalCallSec <= 0 {
		c.Timeouts.ExternalCallSec = 5
	}
	if c.Timeouts.RankingSec <= 0 {
		c.Timeouts.RankingSec = 8
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
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}

	if !slices.Contains([]string{EmbeddingOpenAI, EmbeddingGemini, EmbeddingOffline}, c.Embedding.Backend) {
		return fmt.Errorf("embedding.backend must be one of openai, gemini, offline, got %q", c.Embedding.Backend)
	}
	if c.Embedding.Backend == EmbeddingOpenAI && c.Embedding.BaseURL == "" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.base_url or embedding.api_key is required for the openai backend")
	}

	if !slices.Contains([]string{RankingGemini, RankingHeuristic}, c.Ranking.Backend) {
		return fmt.Errorf("ranking.backend must be gemini or heuristic, got %q", c.Ranking.Backend)
	}

	switch c.Auth.Mode {
	case AuthHeader:
	case AuthGoogle:
		if len(c.Auth.ClientIDs) == 0 && !c.DevMode {
			return fmt.Errorf("auth.client_ids is required in google mode")
		}
	default:
		return fmt.Errorf("auth.mode must be \"header\" or \"google\", got %q", c.Auth.Mode)
	}

	if c.Ranking.Temperature > 2 {
		return fmt.Errorf("ranking.temperature must be in (0, 2], got %v", c.Ranking.Temperature)
	}
	return nil
}

// AllowedClientIDs drops blank entries, which appear when optional env vars are unset.
func (a AuthConfig) AllowedClientIDs() []string {
	out := make([]string, 0, len(a.ClientIDs))
	for _, id := range a.ClientIDs {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

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
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
