package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/stratastor/logger"
)

// EnvPrefix prefixes every environment variable, e.g. CAPTURE_LISTEN_ADDR.
const EnvPrefix = "CAPTURE"

// Config contains runtime configuration for capture sessions and the sink service.
type Config struct {
	// Debug turns on per-request capture traces. Read once at startup.
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`

	ListenAddr string `mapstructure:"listen_addr"`

	DefaultTimeout      time.Duration `mapstructure:"default_timeout"`
	DefaultPollInterval time.Duration `mapstructure:"default_poll_interval"`
	MaxBodySize         int64         `mapstructure:"max_body_size"`

	Endpoints struct {
		Extra []string `mapstructure:"-"`
		Hosts []string `mapstructure:"-"`
	} `mapstructure:"-"`

	APIKeys map[string]string `mapstructure:"-"` // apiKey -> clientID
}

// Load reads configuration from CAPTURE_* environment variables.
// API keys format: "client1:key1,client2:key2"
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from a YAML file, when path is set, with
// environment variables taking precedence over the file.
func LoadFile(path string) (Config, error) {
	v := newViper()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Endpoints.Extra = splitList(v.Get("endpoints.extra"))
	cfg.Endpoints.Hosts = splitList(v.Get("endpoints.hosts"))

	keys, err := parseAPIKeys(v.Get("api_keys"))
	if err != nil {
		return Config{}, err
	}
	cfg.APIKeys = keys

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// newViper returns a viper instance reading CAPTURE_* environment variables.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Client holds the settings of commands that talk to a running sink.
type Client struct {
	SinkURL string
	APIKey  string
}

// LoadClient reads CAPTURE_SINK_URL and CAPTURE_API_KEY, falling back to a
// local sink and the dev API key.
func LoadClient() Client {
	v := newViper()
	v.SetDefault("sink_url", "http://localhost:8080")
	v.SetDefault("api_key", "client-key-123")
	return Client{
		SinkURL: v.GetString("sink_url"),
		APIKey:  v.GetString("api_key"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("default_timeout", "2s")
	v.SetDefault("default_poll_interval", "100ms")
	v.SetDefault("max_body_size", 32<<20)
	v.SetDefault("endpoints.extra", "")
	v.SetDefault("endpoints.hosts", "")
	v.SetDefault("api_keys", "")
}

// Validate rejects values the capture pipeline cannot run with.
func (c Config) Validate() error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("default_timeout must be positive, got %s", c.DefaultTimeout)
	}
	if c.DefaultPollInterval <= 0 {
		return fmt.Errorf("default_poll_interval must be positive, got %s", c.DefaultPollInterval)
	}
	if c.MaxBodySize <= 0 {
		return fmt.Errorf("max_body_size must be positive, got %d", c.MaxBodySize)
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("listen_addr required")
	}
	return nil
}

// LoggerConfig returns the logger settings for c. Debug forces debug level.
func (c Config) LoggerConfig() logger.Config {
	level := c.LogLevel
	if c.Debug {
		level = "debug"
	}
	return logger.Config{LogLevel: level}
}

var errAPIKeys = errors.New(`api_keys must be "client:key,client:key"`)

// parseAPIKeys accepts the comma list from the environment or a YAML list of
// "client:key" items from a config file.
func parseAPIKeys(raw interface{}) (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range splitList(raw) {
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			return nil, errAPIKeys
		}
		client := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if client == "" || key == "" {
			return nil, errAPIKeys
		}
		keys[key] = client
	}

	// Local dev fallback so the sink runs out-of-the-box.
	if len(keys) == 0 {
		keys["client-key-123"] = "client1"
	}
	return keys, nil
}

// splitList turns "a, b" or a YAML list into trimmed, non-empty items.
func splitList(raw interface{}) []string {
	var items []string
	switch t := raw.(type) {
	case string:
		items = strings.Split(t, ",")
	case []string:
		items = t
	case []interface{}:
		for _, item := range t {
			items = append(items, fmt.Sprint(item))
		}
	}

	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
