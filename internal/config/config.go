// Package config provides configuration management for the Groceries API server.
//
// Values are resolved in this order, later sources winning: built-in
// defaults, an optional YAML config file, APP_* environment variables and
// finally command line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Default configuration values.
const (
	DefaultServerHost      = "127.0.0.1"
	DefaultServerPort      = 8001
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultStorageDriver   = DriverSQLite
	DefaultStoragePath     = "groceries.db"
	DefaultRedisAddr       = "localhost:6379"
)

// Configuration keys. Each maps to the environment variable APP_<KEY> with
// dots replaced by underscores, e.g. server.port -> APP_SERVER_PORT.
const (
	KeyServerHost      = "server.host"
	KeyServerPort      = "server.port"
	KeyShutdownTimeout = "server.shutdown_timeout"
	KeyLogLevel        = "log.level"
	KeyMetricsEnabled  = "metrics.enabled"
	KeyStorageDriver   = "storage.driver"
	KeyStoragePath     = "storage.path"
	KeyRedisAddr       = "storage.redis.addr"
	KeyRedisPassword   = "storage.redis.password" //nolint:gosec // config key, not a credential
	KeyRedisDB         = "storage.redis.db"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "APP"

// flagKeys binds command line flag names to configuration keys.
var flagKeys = map[string]string{
	"host":           KeyServerHost,
	"port":           KeyServerPort,
	"log-level":      KeyLogLevel,
	"storage-driver": KeyStorageDriver,
	"storage-path":   KeyStoragePath,
}

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerHost      string
	ServerPort      int
	ShutdownTimeout time.Duration
	LogLevel        string
	MetricsEnabled  bool

	// Storage settings. StoragePath is a file for sqlite and a directory for
	// badger.
	StorageDriver string
	StoragePath   string

	// Redis settings, used when StorageDriver is redis.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidStorageDriver   = errors.New("storage driver must be one of: sqlite, badger, redis, memory")
	ErrStoragePathRequired    = errors.New("storage path must be set for the sqlite and badger drivers")
	ErrRedisAddrRequired      = errors.New("redis address must be set when storage driver is redis")
	ErrInvalidRedisDB         = errors.New("redis database must not be negative")
)

// Load reads configuration from defaults, the optional config file, the
// environment and flags. configFile and flags may be empty/nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerHost, DefaultServerHost)
	v.SetDefault(KeyServerPort, DefaultServerPort)
	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyMetricsEnabled, DefaultMetricsEnabled)
	v.SetDefault(KeyStorageDriver, DefaultStorageDriver)
	v.SetDefault(KeyStoragePath, DefaultStoragePath)
	v.SetDefault(KeyRedisAddr, DefaultRedisAddr)
	v.SetDefault(KeyRedisPassword, "")
	v.SetDefault(KeyRedisDB, 0)
}

// bindFlags binds every known flag present in flags. Only flags the user
// actually set override the other sources.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// fromViper converts raw values strictly so a malformed environment variable
// is reported instead of silently becoming a zero value.
func fromViper(v *viper.Viper) (*Config, error) {
	port, err := cast.ToIntE(v.Get(KeyServerPort))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", KeyServerPort, err)
	}

	timeout, err := cast.ToDurationE(v.Get(KeyShutdownTimeout))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", KeyShutdownTimeout, err)
	}

	metrics, err := cast.ToBoolE(v.Get(KeyMetricsEnabled))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", KeyMetricsEnabled, err)
	}

	redisDB, err := cast.ToIntE(v.Get(KeyRedisDB))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", KeyRedisDB, err)
	}

	return &Config{
		ServerHost:      v.GetString(KeyServerHost),
		ServerPort:      port,
		ShutdownTimeout: timeout,
		LogLevel:        strings.ToLower(v.GetString(KeyLogLevel)),
		MetricsEnabled:  metrics,
		StorageDriver:   strings.ToLower(v.GetString(KeyStorageDriver)),
		StoragePath:     v.GetString(KeyStoragePath),
		RedisAddr:       v.GetString(KeyRedisAddr),
		RedisPassword:   v.GetString(KeyRedisPassword),
		RedisDB:         redisDB,
	}, nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateStorage()
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}

// validateStorage validates the storage driver and its settings.
func (c *Config) validateStorage() error {
	switch c.StorageDriver {
	case DriverSQLite, DriverBadger:
		if c.StoragePath == "" {
			return ErrStoragePathRequired
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			return ErrRedisAddrRequired
		}
		if c.RedisDB < 0 {
			return ErrInvalidRedisDB
		}
	case DriverMemory:
	default:
		return ErrInvalidStorageDriver
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return net.JoinHostPort(c.ServerHost, strconv.Itoa(c.ServerPort))
}
