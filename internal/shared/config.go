package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// placeholderPrefix marks values copied verbatim from the example config.
const placeholderPrefix = "your_"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database  DatabaseConfig            `toml:"database"`
	Bot       BotConfig                 `toml:"bot"`
	Captcha   CaptchaConfig             `toml:"captcha"`
	Proxy     ProxyConfig               `toml:"proxy"`
	Work      WorkConfig                `toml:"work"`
	Browser   BrowserConfig             `toml:"browser"`
	Exchanges map[string]ExchangeConfig `toml:"exchanges"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// BotConfig contains the chat front-end credentials used for notifications.
type BotConfig struct {
	Token      string  `toml:"token"`
	APIURL     string  `toml:"api_url"`
	RateLimit  float64 `toml:"rate_limit"` // messages per second
	MaxRetries int     `toml:"max_retries"`
}

// CaptchaConfig selects the external solving service.
type CaptchaConfig struct {
	Service      string `toml:"service"`
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	PollInterval int    `toml:"poll_interval"` // seconds
	MaxAttempts  int    `toml:"max_attempts"`
}

// ProxyConfig holds the optional outbound proxy.
type ProxyConfig struct {
	URL string `toml:"url"`
}

// WorkConfig contains work cycle settings.
type WorkConfig struct {
	CheckInterval       int     `toml:"check_interval"` // seconds
	ErrorBackoff        int     `toml:"error_backoff"`  // seconds
	MaxCycles           int     `toml:"max_cycles"`
	MaxTasksPerDay      int     `toml:"max_tasks_per_day"`
	MinTaskPrice        float64 `toml:"min_task_price"`
	MaxTaskPrice        float64 `toml:"max_task_price"`
	AutoAcceptTasks     bool    `toml:"auto_accept_tasks"`
	RegistrationTimeout int     `toml:"registration_timeout"` // seconds
}

// BrowserConfig controls the headless browser used for registrations.
type BrowserConfig struct {
	Headless  bool   `toml:"headless"`
	ExecPath  string `toml:"exec_path"`
	UserAgent string `toml:"user_agent"`
}

// ExchangeConfig holds optional static credentials for one marketplace.
type ExchangeConfig struct {
	Login    string `toml:"login"`
	Password string `toml:"password"`
}

// HasCredentials reports whether both login and password are set to real values.
func (e ExchangeConfig) HasCredentials() bool {
	return !IsPlaceholder(e.Login) && !IsPlaceholder(e.Password)
}

// IsPlaceholder reports whether v is empty or still holds an example value.
func IsPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.HasPrefix(strings.ToLower(v), placeholderPrefix)
}

// CheckIntervalDuration returns the inter-cycle sleep as a [time.Duration].
func (w WorkConfig) CheckIntervalDuration() time.Duration {
	return time.Duration(w.CheckInterval) * time.Second
}

// ErrorBackoffDuration returns the transient-error backoff as a [time.Duration].
func (w WorkConfig) ErrorBackoffDuration() time.Duration {
	return time.Duration(w.ErrorBackoff) * time.Second
}

// RegistrationTimeoutDuration returns the success-indicator wait, clamped to 10–15s.
func (w WorkConfig) RegistrationTimeoutDuration() time.Duration {
	secs := w.RegistrationTimeout
	if secs < 10 {
		secs = 10
	}
	if secs > 15 {
		secs = 15
	}
	return time.Duration(secs) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides config values from environment variables looked up with fn.
//
// Pass [os.LookupEnv] in production; tests supply a map-backed lookup.
func (c *Config) ApplyEnv(fn func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := fn(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := fn(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v)
			}
			*dst = n
		}
		return nil
	}
	price := func(key string, dst *float64) error {
		if v, ok := fn(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v)
			}
			*dst = f
		}
		return nil
	}

	str("DATABASE_PATH", &c.Database.Path)
	str("BOT_TOKEN", &c.Bot.Token)
	str("CAPTCHA_SERVICE", &c.Captcha.Service)
	str("CAPTCHA_API_KEY", &c.Captcha.APIKey)
	str("PROXY_URL", &c.Proxy.URL)

	if err := num("CHECK_INTERVAL", &c.Work.CheckInterval); err != nil {
		return err
	}
	if err := num("MAX_TASKS_PER_DAY", &c.Work.MaxTasksPerDay); err != nil {
		return err
	}
	if err := price("MIN_TASK_PRICE", &c.Work.MinTaskPrice); err != nil {
		return err
	}
	if err := price("MAX_TASK_PRICE", &c.Work.MaxTaskPrice); err != nil {
		return err
	}
	if v, ok := fn("AUTO_ACCEPT_TASKS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: AUTO_ACCEPT_TASKS=%q", ErrInvalidConfig, v)
		}
		c.Work.AutoAcceptTasks = b
	}

	if c.Exchanges == nil {
		c.Exchanges = map[string]ExchangeConfig{}
	}
	for name := range c.Exchanges {
		ex := c.Exchanges[name]
		prefix := strings.ToUpper(name)
		str(prefix+"_LOGIN", &ex.Login)
		str(prefix+"_PASSWORD", &ex.Password)
		c.Exchanges[name] = ex
	}

	return nil
}

// Validate checks the work settings for values the scheduler cannot run with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is empty", ErrInvalidConfig)
	}
	if c.Work.CheckInterval <= 0 {
		return fmt.Errorf("%w: check_interval must be positive", ErrInvalidConfig)
	}
	if c.Work.MinTaskPrice < 0 || c.Work.MaxTaskPrice < c.Work.MinTaskPrice {
		return fmt.Errorf("%w: task price range [%v, %v]", ErrInvalidConfig, c.Work.MinTaskPrice, c.Work.MaxTaskPrice)
	}
	if c.Work.MaxTasksPerDay < 0 || c.Work.MaxCycles < 0 {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Exchange returns the static credentials configured for a marketplace, if any.
func (c *Config) Exchange(name string) ExchangeConfig {
	if c.Exchanges == nil {
		return ExchangeConfig{}
	}
	return c.Exchanges[name]
}
