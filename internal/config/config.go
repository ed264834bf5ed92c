package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	Trello   TrelloConfig   `yaml:"trello"`
	AI       AIConfig       `yaml:"ai"`
	Firebase FirebaseConfig `yaml:"firebase"`
	Server   ServerConfig   `yaml:"server"`

	Palette    []string `yaml:"palette"`
	Categories []string `yaml:"categories"`

	// AllowedEmails is a comma-separated allowlist of users who may edit
	AllowedEmails string `yaml:"allowed_emails"`
	IDToken       string `yaml:"-"`
}

type TrelloConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Token   string `yaml:"token"`
	BoardID string `yaml:"board_id"`
}

type AIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

type FirebaseConfig struct {
	APIKey    string `yaml:"api_key"`
	ProjectID string `yaml:"project_id"`
	AuthURL   string `yaml:"auth_url"`
	CertsURL  string `yaml:"certs_url"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Trello: TrelloConfig{
			BaseURL: "https://api.trello.com/1",
		},
		AI: AIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   256,
			Timeout:     60 * time.Second,
			CacheTTL:    7 * 24 * time.Hour,
		},
		Firebase: FirebaseConfig{
			AuthURL:  "https://identitytoolkit.googleapis.com/v1",
			CertsURL: "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Categories: []string{"General"},
	}
}

// Load reads the YAML file at path (if it exists) over the defaults and then
// applies environment overrides. An empty path means the default location.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()

	if cfg.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "cronocelda.log")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("CRONO_DATA_DIR", c.DataDir)
	c.LogLevel = getEnv("CRONO_LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("CRONO_LOG_FILE", c.LogFile)

	c.Trello.BaseURL = getEnv("TRELLO_BASE_URL", c.Trello.BaseURL)
	c.Trello.Key = getEnv("TRELLO_KEY", c.Trello.Key)
	c.Trello.Token = getEnv("TRELLO_TOKEN", c.Trello.Token)
	c.Trello.BoardID = getEnv("TRELLO_BOARD_ID", c.Trello.BoardID)

	c.AI.BaseURL = getEnv("CRONO_AI_BASE_URL", c.AI.BaseURL)
	c.AI.APIKey = getEnv("OPENAI_API_KEY", c.AI.APIKey)
	c.AI.Model = getEnv("CRONO_AI_MODEL", c.AI.Model)
	c.AI.Timeout = getEnvAsDuration("CRONO_AI_TIMEOUT", c.AI.Timeout)
	c.AI.MaxTokens = getEnvAsInt("CRONO_AI_MAX_TOKENS", c.AI.MaxTokens)

	c.Firebase.APIKey = getEnv("FIREBASE_API_KEY", c.Firebase.APIKey)
	c.Firebase.ProjectID = getEnv("FIREBASE_PROJECT_ID", c.Firebase.ProjectID)

	c.Server.Addr = getEnv("CRONO_ADDR", c.Server.Addr)
	if origins := os.Getenv("CRONO_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = SplitList(origins)
	}

	c.AllowedEmails = getEnv("ALLOWED_EMAILS", c.AllowedEmails)
	c.IDToken = getEnv("CRONO_ID_TOKEN", c.IDToken)
}

// Validate checks the values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	for _, color := range c.Palette {
		if !isHexColor(color) {
			return fmt.Errorf("palette: %q is not a #rgb or #rrggbb color", color)
		}
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.AI.Timeout < 0 {
		return errors.New("ai.timeout must not be negative")
	}
	return nil
}

// DBPath is the sqlite database location
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "cronocelda.db")
}

// AllowList returns the parsed allowlist
func (c *Config) AllowList() []string {
	return SplitList(c.AllowedEmails)
}

// SplitList splits a comma-separated value, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DefaultPath is the config file location: $XDG_CONFIG_HOME/cronocelda/config.yaml
func DefaultPath() string {
	if p := os.Getenv("CRONO_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "cronocelda", "config.yaml")
}

// defaultDataDir uses the XDG data directory or falls back to the home directory
func defaultDataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "cronocelda"), nil
}

func isHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") || (len(s) != 4 && len(s) != 7) {
		return false
	}
	_, err := strconv.ParseUint(s[1:], 16, 32)
	return err == nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
