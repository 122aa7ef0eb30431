// Package config loads chatscan settings from chatscan.yaml, .env files and
// CHATSCAN_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/ironsheep/chatscan/internal/cache"
	"github.com/ironsheep/chatscan/internal/detection"
	"github.com/ironsheep/chatscan/internal/extract"
	"github.com/ironsheep/chatscan/internal/faults"
	"github.com/ironsheep/chatscan/internal/forward"
	"github.com/ironsheep/chatscan/internal/imaging"
	"github.com/ironsheep/chatscan/internal/ocr"
)

// EnvPrefix prefixes every environment override, e.g. CHATSCAN_OCR_TIMEOUT.
const EnvPrefix = "CHATSCAN"

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Preprocess PreprocessConfig `mapstructure:"preprocess"`
	Detection  detection.Config `mapstructure:"detection"`
	Cache      cache.Config     `mapstructure:"cache"`
	Forward    forward.Config   `mapstructure:"forward"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address       string        `mapstructure:"address"`
	BodyLimit     int           `mapstructure:"body_limit"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	RatePerMinute int           `mapstructure:"rate_per_minute"` // 0 disables the limiter
}

// OCRConfig selects the recognition engine and how regions are fed to it
type OCRConfig struct {
	Engine            string        `mapstructure:"engine"` // tesseract or none
	TessdataPrefix    string        `mapstructure:"tessdata_prefix"`
	Languages         []string      `mapstructure:"languages"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Workers           int           `mapstructure:"workers"`
	MinWordConfidence float64       `mapstructure:"min_word_confidence"`
}

// PreprocessConfig tunes how each region is prepared for OCR
type PreprocessConfig struct {
	UpscaleFactor float64 `mapstructure:"upscale_factor"`
	ContrastBoost float64 `mapstructure:"contrast_boost"`
	Denoise       bool    `mapstructure:"denoise"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// Load reads configuration. configFile, when set, replaces the search for
// chatscan.yaml in ., ./config and /etc/chatscan.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("chatscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/chatscan")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration Load produces with no file and no
// environment overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(err)
	}
	return &config
}

// loadEnvFile loads environment variables from .env file
func loadEnvFile() error {
	locations := []string{
		".env",
		".env.local",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Debug().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.body_limit", 20*1024*1024) // 20MB
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.rate_per_minute", 60)

	// OCR defaults
	v.SetDefault("ocr.engine", ocr.EngineTesseract)
	v.SetDefault("ocr.tessdata_prefix", "")
	v.SetDefault("ocr.languages", extract.DefaultLanguages)
	v.SetDefault("ocr.timeout", extract.DefaultTimeout.String())
	v.SetDefault("ocr.workers", extract.DefaultWorkers)
	v.SetDefault("ocr.min_word_confidence", 0.0)

	// Preprocess defaults
	v.SetDefault("preprocess.upscale_factor", 2.0)
	v.SetDefault("preprocess.contrast_boost", 0.0)
	v.SetDefault("preprocess.denoise", true)

	// Detection defaults
	v.SetDefault("detection.min_row_gap", detection.DefaultMinRowGap)
	v.SetDefault("detection.min_column_gap", detection.DefaultMinColumnGap)
	v.SetDefault("detection.split_columns", true)
	v.SetDefault("detection.margin", detection.DefaultMargin)
	v.SetDefault("detection.min_area", detection.DefaultMinArea)
	v.SetDefault("detection.min_height", detection.DefaultMinHeight)
	v.SetDefault("detection.min_aspect", detection.DefaultMinAspect)
	v.SetDefault("detection.max_aspect", detection.DefaultMaxAspect)
	v.SetDefault("detection.noise_density", detection.DefaultNoiseDensity)
	v.SetDefault("detection.max_area_ratio", detection.DefaultMaxAreaRatio)

	// Cache defaults
	v.SetDefault("cache.provider", cache.ProviderMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", cache.DefaultTTL.String())
	v.SetDefault("cache.prefix", cache.DefaultPrefix)

	// Forward defaults (empty url disables forwarding)
	v.SetDefault("forward.url", "")
	v.SetDefault("forward.member_id", forward.DefaultMemberID)
	v.SetDefault("forward.api_key", "")
	v.SetDefault("forward.timeout", forward.DefaultTimeout.String())
	v.SetDefault("forward.rate_per_second", forward.DefaultRatePerSecond)
	v.SetDefault("forward.burst", forward.DefaultBurst)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks every section and rejects anything the pipeline would
// reject later.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.OCR.Validate(); err != nil {
		return err
	}
	if err := c.ExtractOptions().Validate(); err != nil {
		return err
	}
	if err := c.Detection.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Forward.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// Validate validates server settings
func (sc *ServerConfig) Validate() error {
	if sc.Address == "" {
		return faults.InvalidConfiguration("server address cannot be empty")
	}
	if sc.BodyLimit <= 0 {
		return faults.InvalidConfiguration("body_limit must be positive, got %d", sc.BodyLimit)
	}
	if sc.ReadTimeout <= 0 {
		return faults.InvalidConfiguration("read_timeout must be positive, got %v", sc.ReadTimeout)
	}
	if sc.WriteTimeout <= 0 {
		return faults.InvalidConfiguration("write_timeout must be positive, got %v", sc.WriteTimeout)
	}
	if sc.RatePerMinute < 0 {
		return faults.InvalidConfiguration("rate_per_minute must not be negative, got %d", sc.RatePerMinute)
	}
	return nil
}

// Validate validates OCR settings
func (oc *OCRConfig) Validate() error {
	if oc.Engine != ocr.EngineTesseract && oc.Engine != ocr.EngineNone {
		return faults.InvalidConfiguration("ocr engine must be %q or %q, got %q", ocr.EngineTesseract, ocr.EngineNone, oc.Engine)
	}
	if len(oc.Languages) == 0 {
		return faults.InvalidConfiguration("ocr.languages must name at least one language")
	}
	return nil
}

// Validate validates log settings
func (lc *LogConfig) Validate() error {
	if _, err := zerolog.ParseLevel(lc.Level); err != nil || lc.Level == "" {
		return faults.InvalidConfiguration("invalid log level %q (must be one of: debug, info, warn, error)", lc.Level)
	}
	if lc.Format != "console" && lc.Format != "json" {
		return faults.InvalidConfiguration("log format must be 'console' or 'json', got %q", lc.Format)
	}
	return nil
}

// ZerologLevel returns the configured level, defaulting to info.
func (lc *LogConfig) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil || lc.Level == "" {
		return zerolog.InfoLevel
	}
	return level
}

// EngineConfig returns the engine selection for ocr.New.
func (c *Config) EngineConfig() ocr.Config {
	return ocr.Config{
		Engine:         c.OCR.Engine,
		TessdataPrefix: c.OCR.TessdataPrefix,
	}
}

// ExtractOptions translates the configuration into extract.Options. Logger,
// Metrics and Fields are left for the caller.
func (c *Config) ExtractOptions() extract.Options {
	opts := extract.DefaultOptions()
	opts.Languages = append([]string(nil), c.OCR.Languages...)
	opts.Timeout = c.OCR.Timeout
	opts.Workers = c.OCR.Workers
	opts.MinWordConfidence = c.OCR.MinWordConfidence
	opts.Detector = c.Detection

	prep := imaging.OCROptions()
	prep.UpscaleFactor = c.Preprocess.UpscaleFactor
	prep.ContrastBoost = c.Preprocess.ContrastBoost
	prep.Denoise = c.Preprocess.Denoise
	opts.Preprocess = prep
	return opts
}
