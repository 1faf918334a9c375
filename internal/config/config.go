package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const appName = "ig-bot"

// Config holds all application configuration
type Config struct {
	Account  AccountConfig  `mapstructure:"account"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Actions  ActionsConfig  `mapstructure:"actions"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Store    StoreConfig    `mapstructure:"store"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

type AccountConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// CookieFile defaults to CookiePath when empty
	CookieFile     string `mapstructure:"cookie_file"`
	RestoreSession bool   `mapstructure:"restore_session"`
}

type BrowserConfig struct {
	Headless     bool   `mapstructure:"headless"`
	UserAgent    string `mapstructure:"user_agent"`
	WindowWidth  int    `mapstructure:"window_width"`
	WindowHeight int    `mapstructure:"window_height"`
	UserDataDir  string `mapstructure:"user_data_dir"`
	ExecPath     string `mapstructure:"exec_path"`
}

type TimeoutsConfig struct {
	Element    time.Duration `mapstructure:"element"`
	Soft       time.Duration `mapstructure:"soft"`
	Poll       time.Duration `mapstructure:"poll"`
	Navigation time.Duration `mapstructure:"navigation"`
	LoadGrace  time.Duration `mapstructure:"load_grace"`
	Login      time.Duration `mapstructure:"login"`
	Spinner    time.Duration `mapstructure:"spinner"`
	Response   time.Duration `mapstructure:"response"`
	Search     time.Duration `mapstructure:"search"`
	Upload     time.Duration `mapstructure:"upload"`
}

type ActionsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Pace is the base delay between wizard steps; negative disables it
	Pace time.Duration `mapstructure:"pace"`
	// Interval is the minimum gap between likes, comments, follows and other writes
	Interval time.Duration `mapstructure:"interval"`
}

// LoggerConfig configures the zap logger and its rotating log file.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	AddSource   bool   `mapstructure:"add_source"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type WatchConfig struct {
	Users         []string `mapstructure:"users"`
	PostsPerUser  int      `mapstructure:"posts_per_user"`
	CommentsLimit int      `mapstructure:"comments_limit"`
	IntervalHours int      `mapstructure:"interval_hours"`
	Timezone      string   `mapstructure:"timezone"`
}

// SetDefaults registers every key so environment overrides apply even without a file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("account.username", "")
	v.SetDefault("account.password", "")
	v.SetDefault("account.cookie_file", "")
	v.SetDefault("account.restore_session", true)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.exec_path", "")

	v.SetDefault("timeouts.element", "10s")
	v.SetDefault("timeouts.soft", "3s")
	v.SetDefault("timeouts.poll", "100ms")
	v.SetDefault("timeouts.navigation", "30s")
	v.SetDefault("timeouts.load_grace", "2s")
	v.SetDefault("timeouts.login", "30s")
	v.SetDefault("timeouts.spinner", "5s")
	v.SetDefault("timeouts.response", "15s")
	v.SetDefault("timeouts.search", "60s")
	v.SetDefault("timeouts.upload", "5m")

	v.SetDefault("actions.base_url", "https://www.instagram.com")
	v.SetDefault("actions.pace", "1s")
	v.SetDefault("actions.interval", "5s")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", appName)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", true)

	v.SetDefault("store.path", "")

	v.SetDefault("watch.users", []string{})
	v.SetDefault("watch.posts_per_user", 12)
	v.SetDefault("watch.comments_limit", 0)
	v.SetDefault("watch.interval_hours", 6)
	v.SetDefault("watch.timezone", "UTC")
}

// NewViper returns a viper instance with defaults, the IGBOT_ environment prefix
// and the INSTA_USERNAME / INSTA_PASSWORD credential variables bound.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("toml")
	v.SetEnvPrefix("IGBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("account.username", "IGBOT_ACCOUNT_USERNAME", "INSTA_USERNAME")
	_ = v.BindEnv("account.password", "IGBOT_ACCOUNT_PASSWORD", "INSTA_PASSWORD")
	return v
}

// Load reads config from path, or from ConfigPath when path is empty. A missing
// default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper unmarshals, fills path defaults and validates.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) resolvePaths() error {
	if c.Account.CookieFile != "" && c.Store.Path != "" {
		return nil
	}
	dir, err := CacheDir()
	if err != nil {
		return err
	}
	if c.Account.CookieFile == "" {
		c.Account.CookieFile = filepath.Join(dir, "cookies.json")
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(dir, "ig-bot.db")
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	timeouts := map[string]time.Duration{
		"timeouts.element":    c.Timeouts.Element,
		"timeouts.soft":       c.Timeouts.Soft,
		"timeouts.poll":       c.Timeouts.Poll,
		"timeouts.navigation": c.Timeouts.Navigation,
		"timeouts.login":      c.Timeouts.Login,
		"timeouts.spinner":    c.Timeouts.Spinner,
		"timeouts.response":   c.Timeouts.Response,
		"timeouts.search":     c.Timeouts.Search,
		"timeouts.upload":     c.Timeouts.Upload,
	}
	for key, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", key)
		}
	}
	if c.Timeouts.LoadGrace < 0 {
		return fmt.Errorf("timeouts.load_grace must not be negative")
	}
	if c.Actions.Interval < 0 {
		return fmt.Errorf("actions.interval must not be negative")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser window size must be positive")
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if c.Watch.PostsPerUser <= 0 {
		return fmt.Errorf("watch.posts_per_user must be a positive integer")
	}
	if c.Watch.CommentsLimit < 0 {
		return fmt.Errorf("watch.comments_limit must not be negative")
	}
	if c.Watch.IntervalHours <= 0 {
		return fmt.Errorf("watch.interval_hours must be a positive integer")
	}
	if _, err := time.LoadLocation(c.Watch.Timezone); err != nil {
		return fmt.Errorf("watch.timezone: %w", err)
	}
	return nil
}

// HasCredentials reports whether both username and password are set
func (c *Config) HasCredentials() bool {
	return c.Account.Username != "" && c.Account.Password != ""
}

// WriteDefault writes a config file containing every default to path.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("toml")
	if err := v.WriteConfigAs(path); err != nil {
		return err
	}
	return os.Chmod(path, 0600)
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the directory holding cookies, the database and logs
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// CookiePath returns the default cookie file location
func CookiePath() (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cookies.json"), nil
}
