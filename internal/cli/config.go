package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/qindex/internal/store"
)

// Config holds the settings shared by the store-backed commands.
// Values come from flags, QINDEX_* environment variables and an optional
// qindex.yaml, in that order of precedence.
type Config struct {
	Model      string `mapstructure:"model"`
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	Schema     string `mapstructure:"schema"`
	AppVersion string `mapstructure:"app_version"`
	Policy     string `mapstructure:"policy"`
	LogLevel   string `mapstructure:"log_level"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Model:    "model",
		Driver:   store.SQLiteDriver,
		DSN:      "qindex.db",
		Schema:   store.DefaultSchemaName,
		Policy:   "version-change",
		LogLevel: "warn",
	}
}

// configFlags maps config keys to the persistent flags that override them.
var configFlags = map[string]string{
	"model":       "model",
	"driver":      "driver",
	"dsn":         "dsn",
	"schema":      "schema",
	"app_version": "app-version",
	"policy":      "policy",
	"log_level":   "log-level",
}

// LoadConfig reads configuration. An explicit path must exist; otherwise
// qindex.yaml is looked up in the working directory and may be absent.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("model", def.Model)
	v.SetDefault("driver", def.Driver)
	v.SetDefault("dsn", def.DSN)
	v.SetDefault("schema", def.Schema)
	v.SetDefault("app_version", def.AppVersion)
	v.SetDefault("policy", def.Policy)
	v.SetDefault("log_level", def.LogLevel)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("qindex")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("QINDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range configFlags {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds the console logger for CLI runs. Verbose forces debug
// level; logs always go to stderr so they never mix with command output.
func NewLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl := zapcore.WarnLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}
