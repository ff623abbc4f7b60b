package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const DefaultShareLinkTemplate = `{{base_url}}/chat/{{chat_id}}`

type Config struct {
	API    APIConfig    `toml:"api"`
	Store  StoreConfig  `toml:"store"`
	Chat   ChatConfig   `toml:"chat"`
	Models ModelsConfig `toml:"models"`
	Share  ShareConfig  `toml:"share"`
	Log    LogConfig    `toml:"log"`
}

type APIConfig struct {
	BaseURL string   `toml:"base_url" validate:"required,url"`
	Token   string   `toml:"token"`
	Timeout Duration `toml:"timeout"` // model list and share endpoints only
}

type StoreConfig struct {
	Backend       string   `toml:"backend" validate:"oneof=sqlite file memory redis"`
	Path          string   `toml:"path"`
	RedisURL      string   `toml:"redis_url" validate:"required_if=Backend redis"`
	RedisPrefix   string   `toml:"redis_prefix"`
	RetryAttempts int      `toml:"retry_attempts" validate:"gte=0,lte=10"`
	RetryBackoff  Duration `toml:"retry_backoff"`
}

type ChatConfig struct {
	DefaultModel string `toml:"default_model"`
	// When true, auto titles from the first message replace manual renames
	AutoTitleOverridesRename bool `toml:"auto_title_overrides_rename"`
	TitleMaxLen              int  `toml:"title_max_len" validate:"gte=0"`
}

type ModelsConfig struct {
	CacheTTL Duration `toml:"cache_ttl"`
}

type ShareConfig struct {
	LinkTemplate string `toml:"link_template"`
	BaseURL      string `toml:"base_url"`
}

type LogConfig struct {
	File    string `toml:"file"`
	Verbose bool   `toml:"verbose"`
}

// Duration decodes TOML strings like "30s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Dir returns ~/.config/ragchat
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "~"
	}
	return filepath.Join(home, ".config", "ragchat")
}

// Default returns the configuration used when no file exists
func Default() *Config {
	dir := Dir()
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: Duration{15 * time.Second},
		},
		Store: StoreConfig{
			Backend:      "sqlite",
			Path:         filepath.Join(dir, "sessions.db"),
			RedisPrefix:  "ragchat:",
			RetryBackoff: Duration{100 * time.Millisecond},
		},
		Chat: ChatConfig{
			TitleMaxLen: 40,
		},
		Models: ModelsConfig{
			CacheTTL: Duration{5 * time.Minute},
		},
		Share: ShareConfig{
			LinkTemplate: DefaultShareLinkTemplate,
			BaseURL:      "http://localhost:5173",
		},
		Log: LogConfig{
			File: filepath.Join(dir, "ragchat.log"),
		},
	}
}

// Load reads config from ~/.config/ragchat/config.toml
func Load() (*Config, error) {
	return LoadFile(filepath.Join(Dir(), "config.toml"))
}

// LoadFile reads the given TOML file (missing file means defaults), then
// applies .env and RAGCHAT_* environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.API.BaseURL = getEnv("RAGCHAT_API_URL", cfg.API.BaseURL)
	cfg.API.Token = getEnv("RAGCHAT_API_TOKEN", cfg.API.Token)
	cfg.Store.Backend = getEnv("RAGCHAT_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = getEnv("RAGCHAT_STORE_PATH", cfg.Store.Path)
	cfg.Store.RedisURL = getEnv("RAGCHAT_REDIS_URL", cfg.Store.RedisURL)
	cfg.Store.RetryAttempts = getEnvAsInt("RAGCHAT_STORE_RETRY_ATTEMPTS", cfg.Store.RetryAttempts)
	cfg.Chat.DefaultModel = getEnv("RAGCHAT_DEFAULT_MODEL", cfg.Chat.DefaultModel)
	cfg.Log.File = getEnv("RAGCHAT_LOG_FILE", cfg.Log.File)
	if v, ok := os.LookupEnv("RAGCHAT_VERBOSE"); ok {
		cfg.Log.Verbose = v == "1" || strings.EqualFold(v, "true")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
