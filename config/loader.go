package config

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/keys"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "S3SYNC"

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"provider":          "storage.provider",
	"bucket":            "storage.bucket",
	"endpoint":          "storage.endpoint",
	"region":            "storage.region",
	"secret-id":         "storage.secret_id",
	"prefix":            "sync.prefix",
	"use-hierarchy":     "sync.use_hierarchy",
	"concurrency":       "transfer.concurrency",
	"disable-checksum":  "transfer.disable_checksum_validation",
	"strategy":          "url.strategy",
	"custom-domain":     "url.custom_domain",
	"api-token":         "url.api_token",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"metrics-listen":    "metrics.listen",
	"delete-retries":    "deletion.max_retries",
	"delete-retry-wait": "deletion.retry_delay",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey, ok := flagToViperKey[f.Name]
		if !ok {
			return
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key is
// given a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.provider", "aws")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.secret_id", "")
	v.SetDefault("storage.secret_region", "")
	v.SetDefault("storage.secret_endpoint", "")

	v.SetDefault("sync.prefix", keys.DefaultPrefix)
	v.SetDefault("sync.use_hierarchy", false)
	v.SetDefault("sync.check_duplicates", true)
	v.SetDefault("sync.verify_integrity", true)
	v.SetDefault("sync.ignore_content_types", []string{})
	v.SetDefault("sync.recent_window", 30*time.Second)
	v.SetDefault("sync.dedup_concurrency", 8)

	v.SetDefault("transfer.concurrency", 4)
	v.SetDefault("transfer.part_size", 5*1024*1024)
	v.SetDefault("transfer.multipart_threshold", 5*1024*1024)
	v.SetDefault("transfer.max_retries", 3)
	v.SetDefault("transfer.timeout", time.Duration(0))
	v.SetDefault("transfer.disable_checksum_validation", false)

	v.SetDefault("url.strategy", "auto")
	v.SetDefault("url.custom_domain", "")
	v.SetDefault("url.api_token", "")
	v.SetDefault("url.api_base_url", "")
	v.SetDefault("url.cache_ttl", 5*time.Minute)

	v.SetDefault("deletion.max_retries", 3)
	v.SetDefault("deletion.retry_delay", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.listen", "")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
//
// Explicitly named files must exist. Without files, s3sync.yaml in the
// working directory is read when present.
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewError("config", errors.Kind(errors.ErrInvalidInput, err)).WithPath(configFiles[0])
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				return nil, errors.NewError("config", errors.Kind(errors.ErrInvalidInput, err)).WithPath(cf)
			}
		}
	} else {
		v.SetConfigName("s3sync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewError("config", errors.Kind(errors.ErrInvalidInput, err)).
			WithMessage("unmarshal config")
	}
	cfg.Storage.Provider = strings.ToLower(cfg.Storage.Provider)

	// 6. Validate
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func Validate(cfg *Config) error {
	if err := newValidator().Struct(cfg); err != nil {
		return errors.NewError("config", errors.Kind(errors.ErrInvalidInput, err)).
			WithMessage("validate config")
	}
	if err := validateStorage(&cfg.Storage); err != nil {
		return errors.NewError("config", errors.Kind(errors.ErrInvalidInput, err)).
			WithMessage("validate config")
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	if s.SecretID != "" {
		return nil
	}
	// An empty static set means storage is not configured.
	configured := s.AccessKeyID != "" || s.SecretAccessKey != "" || s.Bucket != ""
	if configured && s.Provider != "aws" && s.Endpoint == "" {
		return fmt.Errorf("storage.endpoint is required for provider %q", s.Provider)
	}
	return nil
}
