package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/taski/internal/logging"
	"github.com/mesh-intelligence/taski/internal/paths"
	"github.com/mesh-intelligence/taski/pkg/client"
	"github.com/mesh-intelligence/taski/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	dotEnvFile     = ".env"
)

// Config keys.
const (
	cfgKeyBackend            = "backend"
	cfgKeyDataDir            = "data_dir"
	cfgKeyListenAddr         = "listen_addr"
	cfgKeyAPIURL             = "api_url"
	cfgKeyStaticDir          = "static_dir"
	cfgKeySeedFile           = "seed_file"
	cfgKeyHTTPTimeout        = "http_timeout"
	cfgKeyAllowedOrigins     = "cors.allowed_origins"
	cfgKeyMaxBodyBytes       = "max_body_bytes"
	cfgKeyLogLevel           = "log.level"
	cfgKeyLogFile            = "log.file"
	cfgKeyLogMaxSizeMB       = "log.max_size_mb"
	cfgKeyLogMaxBackups      = "log.max_backups"
	cfgKeyLogMaxAgeDays      = "log.max_age_days"
	cfgKeyMongoURI           = "mongo.uri"
	cfgKeyMongoDatabase      = "mongo.database"
	cfgKeyMongoCollection    = "mongo.collection"
	cfgKeyBreakerMaxFailures = "breaker.max_failures"
	cfgKeyBreakerOpenTimeout = "breaker.open_timeout"
)

// envKeys may be overridden by TASKI_<KEY> with dots as underscores.
// data_dir and api_url are left out: their environment variables rank below
// the config file.
var envKeys = []string{
	cfgKeyBackend, cfgKeyListenAddr, cfgKeyStaticDir, cfgKeySeedFile,
	cfgKeyHTTPTimeout, cfgKeyMaxBodyBytes,
	cfgKeyLogLevel, cfgKeyLogFile,
	cfgKeyMongoURI, cfgKeyMongoDatabase, cfgKeyMongoCollection,
	cfgKeyBreakerMaxFailures, cfgKeyBreakerOpenTimeout,
}

const defaultConfigYAML = `# taski configuration

# Store backend for "taski serve": sqlite, memory or mongo
backend: sqlite

# Data directory for the sqlite backend (overridable by --data-dir)
# data_dir:

# Address "taski serve" listens on
listen_addr: ":5000"

# Collection URL the client commands talk to (overridable by --api-url)
# api_url: http://localhost:5000/api/todos

# Prebuilt web UI served for non-API paths
# static_dir:

# JSONL file loaded into an empty store on startup
# seed_file:

http_timeout: 10s

log:
  level: info
  # file: logs/taski.log
  max_size_mb: 10
  max_backups: 3
  max_age_days: 28

# mongo:
#   uri: mongodb://localhost:27017
#   database: taski
#   collection: todos
`

// settings is the resolved configuration for one invocation.
type settings struct {
	configDir      string
	backend        string
	dataDir        string
	listenAddr     string
	apiURL         string
	staticDir      string
	seedFile       string
	httpTimeout    time.Duration
	allowedOrigins []string
	maxBodyBytes   int64
	log            logging.Options
	mongo          types.MongoConfig
	breaker        client.Options
}

// storeConfig returns the backend configuration for opening a store.
func (s *settings) storeConfig() types.Config {
	cfg := types.Config{Backend: s.backend, DataDir: s.dataDir}
	if s.backend == types.BackendMongo {
		mongo := s.mongo
		cfg.Mongo = &mongo
	}
	return cfg
}

// loadDotEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotEnv() error {
	err := godotenv.Load(dotEnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", dotEnvFile, err)
	}
	return nil
}

// loadConfig reads config.yaml from configDir, writing a default file on
// first run.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyListenAddr, ":5000")
	v.SetDefault(cfgKeyHTTPTimeout, "10s")
	v.SetDefault(cfgKeyAllowedOrigins, []string{"*"})
	v.SetDefault(cfgKeyMaxBodyBytes, 1<<20)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyLogMaxSizeMB, 10)
	v.SetDefault(cfgKeyLogMaxBackups, 3)
	v.SetDefault(cfgKeyLogMaxAgeDays, 28)
	v.SetDefault(cfgKeyMongoDatabase, types.DefaultMongoDatabase)
	v.SetDefault(cfgKeyMongoCollection, types.DefaultMongoCollection)
	v.SetDefault(cfgKeyBreakerMaxFailures, client.DefaultMaxFailures)
	v.SetDefault(cfgKeyBreakerOpenTimeout, client.DefaultOpenTimeout.String())

	for _, key := range envKeys {
		env := "TASKI_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile writes defaultConfigYAML unless config.yaml exists.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// resolveSettings combines flags, config and environment.
func resolveSettings(f *rootFlags) (*settings, error) {
	configDir, err := paths.ResolveConfigDir(f.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return nil, err
	}

	dataDir, err := paths.ResolveDataDir(f.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	apiURL, err := paths.ResolveAPIURL(f.apiURL, v.GetString(cfgKeyAPIURL))
	if err != nil {
		return nil, usageError{err}
	}

	logFile := v.GetString(cfgKeyLogFile)
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(configDir, logFile)
	}

	return &settings{
		configDir:      configDir,
		backend:        v.GetString(cfgKeyBackend),
		dataDir:        dataDir,
		listenAddr:     v.GetString(cfgKeyListenAddr),
		apiURL:         apiURL,
		staticDir:      v.GetString(cfgKeyStaticDir),
		seedFile:       v.GetString(cfgKeySeedFile),
		httpTimeout:    v.GetDuration(cfgKeyHTTPTimeout),
		allowedOrigins: v.GetStringSlice(cfgKeyAllowedOrigins),
		maxBodyBytes:   v.GetInt64(cfgKeyMaxBodyBytes),
		log: logging.Options{
			Source:     "taski",
			Level:      v.GetString(cfgKeyLogLevel),
			File:       logFile,
			MaxSizeMB:  v.GetInt(cfgKeyLogMaxSizeMB),
			MaxBackups: v.GetInt(cfgKeyLogMaxBackups),
			MaxAgeDays: v.GetInt(cfgKeyLogMaxAgeDays),
			Compress:   true,
		},
		mongo: types.MongoConfig{
			URI:        v.GetString(cfgKeyMongoURI),
			Database:   v.GetString(cfgKeyMongoDatabase),
			Collection: v.GetString(cfgKeyMongoCollection),
		},
		breaker: client.Options{
			MaxFailures: v.GetUint32(cfgKeyBreakerMaxFailures),
			OpenTimeout: v.GetDuration(cfgKeyBreakerOpenTimeout),
		},
	}, nil
}
