package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Issuers  IssuersConfig  `yaml:"issuers" mapstructure:"issuers"`
	Visual   VisualConfig   `yaml:"visual" mapstructure:"visual"`
	Clip     ClipConfig     `yaml:"clip" mapstructure:"clip"`
	Aliases  AliasesConfig  `yaml:"aliases" mapstructure:"aliases"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RegistryConfig locates the approved-institute registry.
type RegistryConfig struct {
	Path      string        `yaml:"path" mapstructure:"path"`
	SheetName string        `yaml:"sheet_name" mapstructure:"sheet_name"`
	SkipRows  int           `yaml:"skip_rows" mapstructure:"skip_rows"`
	Authority string        `yaml:"authority" mapstructure:"authority"`
	CacheTTL  time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// IssuersConfig holds the trusted private-issuer allow-list. Empty means the
// built-in list.
type IssuersConfig struct {
	Trusted []string `yaml:"trusted" mapstructure:"trusted"`
}

// VisualConfig configures logo verification.
type VisualConfig struct {
	ReferenceDir  string `yaml:"reference_dir" mapstructure:"reference_dir"`
	ReferenceLogo string `yaml:"reference_logo" mapstructure:"reference_logo"`
}

// ClipConfig holds the CLIP embedding sidecar settings.
type ClipConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Model     string  `yaml:"model" mapstructure:"model"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AliasesConfig points at optional field-alias overrides.
type AliasesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentSubmissions int `yaml:"max_concurrent_submissions" mapstructure:"max_concurrent_submissions"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CERTVERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "certverify.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_submissions", 5)
	v.SetDefault("registry.path", "approved_institutes.xlsx")
	v.SetDefault("registry.authority", "Approved Institute Registry")
	v.SetDefault("registry.cache_ttl", "24h")
	v.SetDefault("clip.base_url", "http://localhost:8765")
	v.SetDefault("clip.model", "clip-vit-base-patch32")
	v.SetDefault("clip.rate_limit", 5.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
