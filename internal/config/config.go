// Package config provides configuration loading and validation for the CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SHEETREPORT_API_BASE.
const EnvPrefix = "SHEETREPORT"

// Config represents the CLI configuration. Values come from defaults, then
// the config file, then SHEETREPORT_* environment variables.
type Config struct {
	APIBase         string        `mapstructure:"api_base" validate:"required,url"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" validate:"gt=0"`
	CompareTimeout  time.Duration `mapstructure:"compare_timeout" validate:"gt=0"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout" validate:"gt=0"`

	Session SessionConfig `mapstructure:"session"`
	Output  OutputConfig  `mapstructure:"output"`
	Log     LogConfig     `mapstructure:"log"`
}

// SessionConfig selects where client state is kept between commands.
type SessionConfig struct {
	Backend     string        `mapstructure:"backend" validate:"oneof=file redis postgres"`
	Dir         string        `mapstructure:"dir" validate:"required_if=Backend file"`
	RedisAddr   string        `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisTTL    time.Duration `mapstructure:"redis_ttl" validate:"gte=0"`
	DatabaseURL string        `mapstructure:"database_url" validate:"required_if=Backend postgres"`
}

// OutputConfig selects where downloaded reports are written. Setting
// S3Bucket sends them to S3 instead of Dir. Empty S3 keys fall back to the
// default AWS credential chain.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Prefix    string `mapstructure:"s3_prefix"`
	S3Region    string `mapstructure:"s3_region"`
	S3Endpoint  string `mapstructure:"s3_endpoint" validate:"omitempty,url"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBase:         "http://localhost:5000",
		QueryTimeout:    30 * time.Second,
		CompareTimeout:  60 * time.Second,
		DownloadTimeout: 60 * time.Second,
		Session: SessionConfig{
			Backend:  "file",
			Dir:      ".sheetreport",
			RedisTTL: 7 * 24 * time.Hour,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("api_base", d.APIBase)
	v.SetDefault("query_timeout", d.QueryTimeout)
	v.SetDefault("compare_timeout", d.CompareTimeout)
	v.SetDefault("download_timeout", d.DownloadTimeout)
	v.SetDefault("session.backend", d.Session.Backend)
	v.SetDefault("session.dir", d.Session.Dir)
	v.SetDefault("session.redis_addr", "")
	v.SetDefault("session.redis_ttl", d.Session.RedisTTL)
	v.SetDefault("session.database_url", "")
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.s3_bucket", "")
	v.SetDefault("output.s3_prefix", "")
	v.SetDefault("output.s3_region", "")
	v.SetDefault("output.s3_endpoint", "")
	v.SetDefault("output.s3_access_key", "")
	v.SetDefault("output.s3_secret_key", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// LoadConfig loads configuration. With an empty path it looks for an
// optional sheetreport.yaml in the working directory; an explicit path must
// exist.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sheetreport")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config error: '%s' failed '%s' check", fieldKey(fe.Namespace()), fe.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.Output.S3Bucket != "" && c.Output.S3Region == "" {
		return fmt.Errorf("config error: 'output.s3_region' is required when 'output.s3_bucket' is set")
	}
	if (c.Output.S3AccessKey == "") != (c.Output.S3SecretKey == "") {
		return fmt.Errorf("config error: 'output.s3_access_key' and 'output.s3_secret_key' must be set together")
	}
	return nil
}

// fieldKey turns a validator namespace such as Config.Session.RedisAddr into
// the config key session.redis_addr.
func fieldKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	switch s {
	case "APIBase":
		return "api_base"
	case "S3Bucket", "S3Prefix", "S3Region", "S3Endpoint":
		return "s3_" + strings.ToLower(s[2:])
	case "S3AccessKey":
		return "s3_access_key"
	case "S3SecretKey":
		return "s3_secret_key"
	case "RedisTTL":
		return "redis_ttl"
	case "DatabaseURL":
		return "database_url"
	}
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to layer CLI flag values over the loaded configuration.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.APIBase == "" {
		result.APIBase = defaults.APIBase
	}
	if result.QueryTimeout == 0 {
		result.QueryTimeout = defaults.QueryTimeout
	}
	if result.CompareTimeout == 0 {
		result.CompareTimeout = defaults.CompareTimeout
	}
	if result.DownloadTimeout == 0 {
		result.DownloadTimeout = defaults.DownloadTimeout
	}

	if result.Session.Backend == "" {
		result.Session.Backend = defaults.Session.Backend
	}
	if result.Session.Dir == "" {
		result.Session.Dir = defaults.Session.Dir
	}
	if result.Session.RedisAddr == "" {
		result.Session.RedisAddr = defaults.Session.RedisAddr
	}
	if result.Session.RedisTTL == 0 {
		result.Session.RedisTTL = defaults.Session.RedisTTL
	}
	if result.Session.DatabaseURL == "" {
		result.Session.DatabaseURL = defaults.Session.DatabaseURL
	}

	if result.Output.Dir == "" {
		result.Output.Dir = defaults.Output.Dir
	}
	if result.Output.S3Bucket == "" {
		result.Output.S3Bucket = defaults.Output.S3Bucket
	}
	if result.Output.S3Prefix == "" {
		result.Output.S3Prefix = defaults.Output.S3Prefix
	}
	if result.Output.S3Region == "" {
		result.Output.S3Region = defaults.Output.S3Region
	}
	if result.Output.S3Endpoint == "" {
		result.Output.S3Endpoint = defaults.Output.S3Endpoint
	}
	if result.Output.S3AccessKey == "" {
		result.Output.S3AccessKey = defaults.Output.S3AccessKey
	}
	if result.Output.S3SecretKey == "" {
		result.Output.S3SecretKey = defaults.Output.S3SecretKey
	}

	if result.Log.Level == "" {
		result.Log.Level = defaults.Log.Level
	}
	if result.Log.Format == "" {
		result.Log.Format = defaults.Log.Format
	}

	return result
}
