// Package config resolves certstore settings from flags, environment
// variables and an optional YAML file.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/octopilot/certstore/internal/truststore"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// Filename is looked up in the home directory, then the working directory.
	Filename = ".certstore.yaml"
	// EnvPrefix prefixes every environment variable, e.g. CERTSTORE_PLATFORM.
	EnvPrefix = "CERTSTORE"
)

// Keys shared by the YAML file, viper and the environment.
const (
	KeyPlatform      = "platform"
	KeyLinuxCertDir  = "linux_cert_dir"
	KeyKeychain      = "keychain"
	KeyTempDir       = "temp_dir"
	KeyUpdateCommand = "update_command"
	KeyLogLevel      = "log_level"
)

// Config is the resolved configuration.
type Config struct {
	Platform      string `yaml:"platform"`
	LinuxCertDir  string `yaml:"linux_cert_dir"`
	Keychain      string `yaml:"keychain"`
	TempDir       string `yaml:"temp_dir"`
	UpdateCommand string `yaml:"update_command"`
	LogLevel      string `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Platform:      "auto",
		LinuxCertDir:  truststore.DefaultLinuxCertDir,
		Keychain:      truststore.DefaultKeychain,
		TempDir:       os.TempDir(),
		UpdateCommand: truststore.DefaultUpdateCommand,
		LogLevel:      "info",
	}
}

// Store converts the settings into a truststore configuration.
func (c Config) Store() truststore.Config {
	return truststore.Config{
		Platform:      c.Platform,
		LinuxCertDir:  c.LinuxCertDir,
		Keychain:      c.Keychain,
		UpdateCommand: c.UpdateCommand,
		TempDir:       c.TempDir,
	}
}

// Load resolves the configuration. Priority:
// 1. Env: CERTSTORE_<KEY>
// 2. viper (flags bound by the CLI)
// 3. YAML file at path, or the first Filename found in $HOME and cwd
// 4. Default()
func Load(path string) (Config, error) {
	cfg := Default()

	file, err := readFile(path)
	if err != nil {
		return cfg, err
	}
	merge(&cfg, file)

	for key, dst := range cfg.fields() {
		if v := lookup(key); v != "" {
			*dst = v
		}
	}
	return cfg, nil
}

func (c *Config) fields() map[string]*string {
	return map[string]*string{
		KeyPlatform:      &c.Platform,
		KeyLinuxCertDir:  &c.LinuxCertDir,
		KeyKeychain:      &c.Keychain,
		KeyTempDir:       &c.TempDir,
		KeyUpdateCommand: &c.UpdateCommand,
		KeyLogLevel:      &c.LogLevel,
	}
}

func lookup(key string) string {
	if v := os.Getenv(EnvKey(key)); v != "" {
		return v
	}
	return viper.GetString(key)
}

// EnvKey returns the environment variable for a configuration key.
func EnvKey(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

func merge(dst *Config, src Config) {
	srcFields := src.fields()
	for key, d := range dst.fields() {
		if v := interpolate(*srcFields[key]); v != "" {
			*d = v
		}
	}
}

// readFile parses the YAML file at path. An empty path searches the default
// locations; a missing default file is not an error, a missing explicit one is.
func readFile(path string) (Config, error) {
	var cfg Config
	candidates := []string{path}
	if path == "" {
		candidates = defaultLocations()
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) && path == "" {
				continue
			}
			return cfg, errors.Wrapf(err, "reading config %s", p)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing config %s", p)
		}
		return cfg, nil
	}
	return cfg, nil
}

func defaultLocations() []string {
	var locs []string
	if home, err := os.UserHomeDir(); err == nil {
		locs = append(locs, filepath.Join(home, Filename))
	}
	if cwd, err := os.Getwd(); err == nil {
		locs = append(locs, filepath.Join(cwd, Filename))
	}
	return locs
}

// reVarDefault matches ${VAR:-default}.
var reVarDefault = regexp.MustCompile(`\$\{([^}:]+):-([^}]*)\}`)

// interpolate expands environment variable references in s:
//   - ${VAR}           → value of VAR, empty if unset
//   - $VAR             → value of VAR, empty if unset
//   - ${VAR:-default}  → value of VAR if set and non-empty, else "default"
func interpolate(s string) string {
	result := reVarDefault.ReplaceAllStringFunc(s, func(match string) string {
		sub := reVarDefault.FindStringSubmatch(match)
		if len(sub) != 3 {
			return match
		}
		if v := os.Getenv(sub[1]); v != "" {
			return v
		}
		return sub[2]
	})
	return strings.TrimSpace(os.ExpandEnv(result))
}
