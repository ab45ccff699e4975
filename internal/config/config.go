package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aibus/dar-go/pkg/dar"
)

// ErrNoCredentials is returned when neither a token, client credentials nor
// a service key file are configured.
var ErrNoCredentials = errors.New("no credentials configured: set DAR_SERVICE_KEY_FILE, DAR_TOKEN or DAR_CLIENT_ID/DAR_CLIENT_SECRET/DAR_AUTH_URL")

// Config holds all configuration values.
type Config struct {
	// Service endpoint and credentials
	URL            string
	Token          string
	ClientID       string
	ClientSecret   string
	AuthURL        string
	ServiceKeyFile string

	// Transport
	RateLimit  float64
	RateBurst  int
	MaxRetries int

	// Polling budgets, zero means the SDK default
	DatasetWait    dar.WaitConfig
	JobWait        dar.WaitConfig
	DeploymentWait dar.WaitConfig

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// LoadDotEnv loads variables from a .env file without overriding ones that
// are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		URL:            getEnv("DAR_URL", ""),
		Token:          getEnv("DAR_TOKEN", ""),
		ClientID:       getEnv("DAR_CLIENT_ID", ""),
		ClientSecret:   getEnv("DAR_CLIENT_SECRET", ""),
		AuthURL:        getEnv("DAR_AUTH_URL", ""),
		ServiceKeyFile: getEnv("DAR_SERVICE_KEY_FILE", ""),

		RateLimit:  parseFloat(getEnv("DAR_RATE_LIMIT", "0")),
		RateBurst:  parseInt(getEnv("DAR_RATE_BURST", "1"), 1),
		MaxRetries: parseInt(getEnv("DAR_MAX_RETRIES", strconv.Itoa(dar.DefaultMaxRetries)), dar.DefaultMaxRetries),

		DatasetWait: dar.WaitConfig{
			Interval: parseDuration(getEnv("DAR_DATASET_POLL_INTERVAL", "")),
			Timeout:  parseDuration(getEnv("DAR_DATASET_TIMEOUT", "")),
		},
		JobWait: dar.WaitConfig{
			Interval: parseDuration(getEnv("DAR_JOB_POLL_INTERVAL", "")),
			Timeout:  parseDuration(getEnv("DAR_JOB_TIMEOUT", "")),
		},
		DeploymentWait: dar.WaitConfig{
			Interval: parseDuration(getEnv("DAR_DEPLOYMENT_POLL_INTERVAL", "")),
			Timeout:  parseDuration(getEnv("DAR_DEPLOYMENT_TIMEOUT", "")),
		},

		LogFile:  getEnv("DAR_LOG_FILE", ""),
		LogLevel: parseLogLevel(getEnv("DAR_LOG_LEVEL", "INFO")),
	}
}

// TokenSource picks credentials in order of precedence: service key file,
// static token, client credentials. A service key also supplies the URL
// when DAR_URL is unset.
func (c *Config) TokenSource() (dar.TokenSource, error) {
	if c.ServiceKeyFile != "" {
		data, err := os.ReadFile(c.ServiceKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read service key: %w", err)
		}
		key, err := dar.ParseServiceKey(data)
		if err != nil {
			return nil, err
		}
		if c.URL == "" {
			c.URL = key.URL
		}
		return key.TokenSource()
	}
	if c.Token != "" {
		return dar.StaticToken(c.Token), nil
	}
	if c.ClientID != "" && c.ClientSecret != "" && c.AuthURL != "" {
		return dar.NewOnlineTokenSource(c.AuthURL, c.ClientID, c.ClientSecret)
	}
	return nil, ErrNoCredentials
}

// SessionOptions translates the transport settings into session options.
func (c *Config) SessionOptions() []dar.SessionOption {
	var opts []dar.SessionOption
	if c.RateLimit > 0 {
		opts = append(opts, dar.WithRateLimit(c.RateLimit, max(c.RateBurst, 1)))
	}
	if c.MaxRetries != dar.DefaultMaxRetries {
		opts = append(opts, dar.WithRetryPolicy(max(c.MaxRetries, 0), dar.DefaultBackoff))
	}
	return opts
}

// ClientOptions applies the configured polling budgets on top of the SDK
// defaults.
func (c *Config) ClientOptions() []dar.ClientOption {
	var opts []dar.ClientOption
	for kind, cfg := range map[dar.ResourceKind]dar.WaitConfig{
		dar.KindDataset:    c.DatasetWait,
		dar.KindJob:        c.JobWait,
		dar.KindDeployment: c.DeploymentWait,
	} {
		if cfg == (dar.WaitConfig{}) {
			continue
		}
		def := dar.DefaultWaitConfig(kind)
		if cfg.Interval <= 0 {
			cfg.Interval = def.Interval
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = def.Timeout
		}
		opts = append(opts, dar.WithWaitConfig(kind, cfg))
	}
	return opts
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string, defaultVal int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}

// parseDuration accepts Go durations ("90s", "4h") and plain seconds.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
