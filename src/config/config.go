/*
Copyright (c) Akim Faskhutdinov

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	goerrors "github.com/go-errors/errors"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// DefaultFileName is the config file expected under ~/.config.
const DefaultFileName = "ch-cleaner.yaml"

const (
	TRACE = "trace"
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
	FATAL = "fatal"
	PANIC = "panic"
)

var validLogLevels = []string{TRACE, DEBUG, INFO, WARN, ERROR, FATAL, PANIC}

var allowedClickHouseKeys = mapset.NewThreadUnsafeSet[string](
	"fqdn", "http_port", "user", "password", "database", "match_key",
)

var allowedTopLevelKeys = mapset.NewThreadUnsafeSet[string](
	"clickhouse", "log-level",
)

// ClickHouse holds the connection parameters for the HTTP interface of the
// server. FQDN, HTTPPort, User and Password are required; Database and
// MatchKey only provide defaults for the corresponding CLI flags.
type ClickHouse struct {
	FQDN     string `mapstructure:"fqdn"`
	HTTPPort int    `mapstructure:"http_port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	MatchKey string `mapstructure:"match_key"`
}

// BaseURL returns the HTTP endpoint of the server.
func (c ClickHouse) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.FQDN, c.HTTPPort)
}

type Config struct {
	ClickHouse ClickHouse `mapstructure:"clickhouse"`
	LogLevel   string     `mapstructure:"log-level"`
}

// DefaultPath returns ~/.config/ch-cleaner.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", goerrors.Errorf("locate home directory: %s", err)
	}
	return filepath.Join(home, ".config", DefaultFileName), nil
}

// Load reads and validates the YAML config at path. The returned Config is
// an explicitly constructed object; nothing config-related is kept as
// package-level state.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, goerrors.Errorf("read config file %q: %s", path, err)
	}
	if err := validateKeys(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, goerrors.Errorf("parse config file %q: %s", path, err)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = INFO
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateKeys(v *viper.Viper) error {
	for _, key := range v.AllKeys() {
		section, rest, nested := strings.Cut(key, ".")
		if !nested {
			if !allowedTopLevelKeys.Contains(section) {
				return goerrors.Errorf("unknown config key: %s", key)
			}
			continue
		}
		if section != "clickhouse" || !allowedClickHouseKeys.Contains(rest) {
			return goerrors.Errorf("unknown config key: %s", key)
		}
	}
	return nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"clickhouse.fqdn":     c.ClickHouse.FQDN,
		"clickhouse.user":     c.ClickHouse.User,
		"clickhouse.password": c.ClickHouse.Password,
	}
	for key, value := range required {
		if value == "" {
			return goerrors.Errorf("missing required config key: %s", key)
		}
	}
	if c.ClickHouse.HTTPPort == 0 {
		return goerrors.Errorf("missing required config key: clickhouse.http_port")
	}
	return ValidateLogLevel(c.LogLevel)
}

func ValidateLogLevel(level string) error {
	if !lo.Contains(validLogLevels, strings.ToLower(level)) {
		return goerrors.Errorf("invalid log level: %s. Valid log levels = %v", level, validLogLevels)
	}
	return nil
}
