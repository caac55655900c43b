// Package paths resolves where taski keeps its configuration, its data and
// which API it talks to. Every resolver follows the same chain: explicit
// flag, then config file (where one applies), then TASKI_* environment, then
// a default.
package paths

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// CWD-relative directory names.
const (
	DefaultConfigDirName = ".taski"
	DefaultDataDirName   = ".taski-db"
)

// DefaultAPIURL is the collection URL of a locally running server.
const DefaultAPIURL = "http://localhost:5000/api/todos"

// Environment variable names.
const (
	EnvConfigDir = "TASKI_CONFIG_DIR"
	EnvDataDir   = "TASKI_DATA_DIR"
	EnvAPIURL    = "TASKI_API_URL"
)

// getwd is swapped in tests.
var getwd = os.Getwd

// ResolveConfigDir returns the configuration directory:
// flag > TASKI_CONFIG_DIR > $(CWD)/.taski. The result is absolute.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return cwdJoin(DefaultConfigDirName)
}

// ResolveDataDir returns the data directory:
// flag > config.yaml data_dir > TASKI_DATA_DIR > $(CWD)/.taski-db.
// The result is absolute.
func ResolveDataDir(flag, configValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return cwdJoin(DefaultDataDirName)
}

// ResolveAPIURL returns the task collection URL:
// flag > config.yaml api_url > TASKI_API_URL > DefaultAPIURL.
// The chosen value must be an absolute http or https URL.
func ResolveAPIURL(flag, configValue string) (string, error) {
	raw := DefaultAPIURL
	switch {
	case flag != "":
		raw = flag
	case configValue != "":
		raw = configValue
	case os.Getenv(EnvAPIURL) != "":
		raw = os.Getenv(EnvAPIURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing api url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("api url %q must be an absolute http(s) URL", raw)
	}
	return raw, nil
}

func cwdJoin(name string) (string, error) {
	cwd, err := getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, name), nil
}
