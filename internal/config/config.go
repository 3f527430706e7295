// Package config loads server configuration from defaults, an optional YAML
// file and OURSLISTS_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

type Config struct {
	Port       string `yaml:"port" validate:"required,numeric"`
	Backend    string `yaml:"backend" validate:"oneof=sqlite badger"`
	DBPath     string `yaml:"db_path" validate:"required"`
	BadgerPath string `yaml:"badger_path" validate:"required_if=Backend badger"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`

	Timezone   string `yaml:"timezone" validate:"tzname"`
	NotifyHour int    `yaml:"notify_hour" validate:"gte=0,lte=23"`

	VAPIDPublicKey  string `yaml:"vapid_public_key" validate:"required_with=VAPIDPrivateKey"`
	VAPIDPrivateKey string `yaml:"vapid_private_key" validate:"required_with=VAPIDPublicKey"`
	PushSubscriber  string `yaml:"push_subscriber" validate:"omitempty,startswith=mailto:|startswith=https://"`

	BackupDir        string        `yaml:"backup_dir"`
	BackupPassphrase string        `yaml:"backup_passphrase" validate:"required_with=BackupDir S3Bucket"`
	BackupInterval   time.Duration `yaml:"backup_interval" validate:"gte=0"`
	BackupKeep       int           `yaml:"backup_keep" validate:"gte=0"`

	S3Endpoint  string `yaml:"s3_endpoint" validate:"omitempty,url"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3AccessKey string `yaml:"s3_access_key" validate:"required_with=S3Bucket"`
	S3SecretKey string `yaml:"s3_secret_key" validate:"required_with=S3Bucket"`
	S3Prefix    string `yaml:"s3_prefix"`
}

func Default() Config {
	return Config{
		Port:       "8080",
		Backend:    BackendSQLite,
		DBPath:     "ourslists.db",
		BadgerPath: "ourslists-badger",
		LogLevel:   "info",
		LogFormat:  "text",
		Timezone:   "Local",
		NotifyHour: 9,
		BackupKeep: 14,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("tzname", func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	})
	return v
}

// Load reads path (skipped when empty or missing) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"OURSLISTS_PORT":              &cfg.Port,
		"OURSLISTS_BACKEND":           &cfg.Backend,
		"OURSLISTS_DB_PATH":           &cfg.DBPath,
		"OURSLISTS_BADGER_PATH":       &cfg.BadgerPath,
		"OURSLISTS_LOG_LEVEL":         &cfg.LogLevel,
		"OURSLISTS_LOG_FORMAT":        &cfg.LogFormat,
		"OURSLISTS_TIMEZONE":          &cfg.Timezone,
		"OURSLISTS_VAPID_PUBLIC_KEY":  &cfg.VAPIDPublicKey,
		"OURSLISTS_VAPID_PRIVATE_KEY": &cfg.VAPIDPrivateKey,
		"OURSLISTS_PUSH_SUBSCRIBER":   &cfg.PushSubscriber,
		"OURSLISTS_BACKUP_DIR":        &cfg.BackupDir,
		"OURSLISTS_BACKUP_PASSPHRASE": &cfg.BackupPassphrase,
		"OURSLISTS_S3_ENDPOINT":       &cfg.S3Endpoint,
		"OURSLISTS_S3_BUCKET":         &cfg.S3Bucket,
		"OURSLISTS_S3_REGION":         &cfg.S3Region,
		"OURSLISTS_S3_ACCESS_KEY":     &cfg.S3AccessKey,
		"OURSLISTS_S3_SECRET_KEY":     &cfg.S3SecretKey,
		"OURSLISTS_S3_PREFIX":         &cfg.S3Prefix,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"OURSLISTS_NOTIFY_HOUR": &cfg.NotifyHour,
		"OURSLISTS_BACKUP_KEEP": &cfg.BackupKeep,
	}
	for name, dst := range ints {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("parse %s: %w", name, err)
			}
			*dst = n
		}
	}

	if v, ok := lookup("OURSLISTS_BACKUP_INTERVAL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse OURSLISTS_BACKUP_INTERVAL: %w", err)
		}
		cfg.BackupInterval = d
	}
	return nil
}

// Location returns the configured time zone. Load has already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}
