package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingJWTSecret is returned by Validate when no signing secret was configured.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set in config or environment")

// AppSection holds HTTP server settings.
type AppSection struct {
	Port               string   `yaml:"port" env:"APP_PORT"`
	JWTSecret          string   `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTLHours      int      `yaml:"token_ttl_hours" env:"TOKEN_TTL_HOURS"`
	GinMode            string   `yaml:"gin_mode" env:"GIN_MODE"`
	GinPath            string   `yaml:"gin_path" env:"GIN_PATH"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE"`
	AllowedOrigins     []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	OAuthRedirectBase  string   `yaml:"oauth_redirect_base" env:"OAUTH_REDIRECT_BASE"`
}

// DatabaseSection selects the gorm driver and its DSN parts.
// DatabaseURI, when set, wins over the individual fields.
type DatabaseSection struct {
	Driver      string `yaml:"driver" env:"DB_DRIVER"`
	DatabaseURI string `yaml:"uri" env:"DATABASE_URI"`
	Host        string `yaml:"host" env:"DB_HOST"`
	Port        string `yaml:"port" env:"DB_PORT"`
	User        string `yaml:"user" env:"DB_USER"`
	Password    string `yaml:"password" env:"DB_PASSWORD"`
	Name        string `yaml:"name" env:"DB_NAME"`
	SSLMode     string `yaml:"sslmode" env:"DB_SSLMODE"`
}

// RedisSection configures the cache, token blacklist and OAuth state store.
// Leaving Host empty disables Redis; callers fall back to in-process stores.
type RedisSection struct {
	Host     string `yaml:"host" env:"REDIS_HOST"`
	Port     int    `yaml:"port" env:"REDIS_PORT"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
}

// OAuthSection holds third-party login credentials.
type OAuthSection struct {
	GitHubClientID     string `yaml:"github_client_id" env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `yaml:"github_client_secret" env:"GITHUB_CLIENT_SECRET"`
	GoogleClientID     string `yaml:"google_client_id" env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `yaml:"google_client_secret" env:"GOOGLE_CLIENT_SECRET"`
}

// LogSection configures zap and the lumberjack rolling file.
type LogSection struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Path       string `yaml:"path" env:"LOG_PATH"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" env:"LOG_COMPRESS"`
}

// SanitizerSection tunes the HTML sanitizer.
type SanitizerSection struct {
	AllowVideoInComments bool     `yaml:"allow_video_in_comments" env:"SANITIZER_ALLOW_VIDEO_IN_COMMENTS"`
	MaxInputLength       int      `yaml:"max_input_length" env:"SANITIZER_MAX_INPUT_LENGTH"`
	AllowedURLSchemes    []string `yaml:"allowed_url_schemes" env:"SANITIZER_ALLOWED_URL_SCHEMES" envSeparator:","`
	MarkdownEngine       string   `yaml:"markdown_engine" env:"SANITIZER_MARKDOWN_ENGINE"`
}

// SiteSection holds the public settings shown by the front end.
type SiteSection struct {
	Title          string `yaml:"title" env:"SITE_TITLE"`
	NoticeTitle    string `yaml:"notice_title" env:"SITE_NOTICE_TITLE"`
	NoticeMarkdown string `yaml:"notice_markdown" env:"SITE_NOTICE_MARKDOWN"`
}

// MediaSection configures local uploads.
type MediaSection struct {
	Dir         string `yaml:"dir" env:"MEDIA_DIR"`
	URLPrefix   string `yaml:"url_prefix" env:"MEDIA_URL_PREFIX"`
	MaxUploadMB int    `yaml:"max_upload_mb" env:"MEDIA_MAX_UPLOAD_MB"`
}

// AdminSection lists usernames allowed to manage posts and media.
type AdminSection struct {
	Usernames []string `yaml:"usernames" env:"ADMIN_USERNAMES" envSeparator:","`
}

// AppConfig is the full application configuration.
// Secrets never get defaults in code; provide them via the config file, .env or the environment.
type AppConfig struct {
	App       AppSection       `yaml:"app"`
	Database  DatabaseSection  `yaml:"database"`
	Redis     RedisSection     `yaml:"redis"`
	OAuth     OAuthSection     `yaml:"oauth"`
	Log       LogSection       `yaml:"log"`
	Sanitizer SanitizerSection `yaml:"sanitizer"`
	Site      SiteSection      `yaml:"site"`
	Media     MediaSection     `yaml:"media"`
	Admin     AdminSection     `yaml:"admin"`
}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.RWMutex
)

// DefaultPaths are tried in order when no explicit config path is given.
var DefaultPaths = []string{
	filepath.Join("config", "config.yaml"),
	filepath.Join("config", "config.json"),
}

// Read builds a configuration without validating or caching it.
// Precedence: config file -> defaults -> .env -> environment variables.
func Read(path string) (AppConfig, error) {
	var c AppConfig

	if err := loadFile(path, &c); err != nil {
		return c, err
	}

	applyDefaults(&c)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return c, fmt.Errorf("load .env: %w", err)
	}

	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse environment: %w", err)
	}
	normalize(&c)
	return c, nil
}

// Load reads, validates and caches the configuration. It should be called once during boot.
func Load(path string) (AppConfig, error) {
	c, err := Read(path)
	if err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	Set(c)
	return c, nil
}

// Set replaces the cached configuration.
func Set(c AppConfig) {
	mu.Lock()
	cfg, loaded = c, true
	mu.Unlock()
}

// Get returns the cached configuration, or the defaults when Load was never called.
func Get() AppConfig {
	mu.RLock()
	if loaded {
		defer mu.RUnlock()
		return cfg
	}
	mu.RUnlock()

	var c AppConfig
	applyDefaults(&c)
	return c
}

// Validate reports settings the server cannot run without.
func (c AppConfig) Validate() error {
	if c.App.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	switch c.Database.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// IsAdmin reports whether username is listed under admin.usernames.
func (c AppConfig) IsAdmin(username string) bool {
	for _, u := range c.Admin.Usernames {
		if strings.EqualFold(u, username) {
			return true
		}
	}
	return false
}

// loadFile decodes path, or the first DefaultPaths entry that exists. JSON is valid
// YAML so both file types go through the same decoder. A missing file is not an error.
func loadFile(path string, out *AppConfig) error {
	candidates := DefaultPaths
	if path != "" {
		candidates = []string{path}
	}
	for _, p := range candidates {
		b, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			if path != "" {
				return fmt.Errorf("config file %s: %w", p, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("read config %s: %w", p, err)
		}
		if err := yaml.Unmarshal(b, out); err != nil {
			return fmt.Errorf("decode config %s: %w", p, err)
		}
		return nil
	}
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.App.Port == "" {
		c.App.Port = "8080"
	}
	if c.App.TokenTTLHours == 0 {
		c.App.TokenTTLHours = 72
	}
	if c.App.GinMode == "" {
		c.App.GinMode = "release"
	}
	if c.App.GinPath == "" {
		c.App.GinPath = "logs/go_gin.log"
	}
	if c.App.RateLimitPerMinute == 0 {
		c.App.RateLimitPerMinute = 60
	}
	if len(c.App.AllowedOrigins) == 0 {
		c.App.AllowedOrigins = []string{"*"}
	}
	if c.App.OAuthRedirectBase == "" {
		c.App.OAuthRedirectBase = "http://localhost:8080"
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == "" {
		if c.Database.Driver == "mysql" {
			c.Database.Port = "3306"
		} else {
			c.Database.Port = "5432"
		}
	}
	if c.Database.User == "" {
		c.Database.User = "folio"
	}
	if c.Database.Name == "" {
		c.Database.Name = "folio"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 7
	}

	if c.Sanitizer.MaxInputLength == 0 {
		c.Sanitizer.MaxInputLength = 200000
	}
	if len(c.Sanitizer.AllowedURLSchemes) == 0 {
		c.Sanitizer.AllowedURLSchemes = []string{"https"}
	}
	if c.Sanitizer.MarkdownEngine == "" {
		c.Sanitizer.MarkdownEngine = "basic"
	}

	if c.Site.Title == "" {
		c.Site.Title = "Folio"
	}
	if c.Site.NoticeTitle == "" {
		c.Site.NoticeTitle = "Notice"
	}

	if c.Media.Dir == "" {
		c.Media.Dir = "uploads"
	}
	if c.Media.URLPrefix == "" {
		c.Media.URLPrefix = "/media"
	}
	if c.Media.MaxUploadMB == 0 {
		c.Media.MaxUploadMB = 10
	}
}

func normalize(c *AppConfig) {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.App.AllowedOrigins = trimAll(c.App.AllowedOrigins)
	c.Admin.Usernames = trimAll(c.Admin.Usernames)
	c.Sanitizer.AllowedURLSchemes = trimAll(c.Sanitizer.AllowedURLSchemes)
	for i, s := range c.Sanitizer.AllowedURLSchemes {
		c.Sanitizer.AllowedURLSchemes[i] = strings.ToLower(s)
	}
}

func trimAll(list []string) []string {
	out := list[:0]
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
