// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

// Package config loads process configuration from an optional YAML file with
// command-line flag overrides layered on top of built-in defaults.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full process configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	LDAP   LDAPConfig   `koanf:"ldap"`
	Guest  GuestConfig  `koanf:"guest"`
}

// ServerConfig holds listen addresses and logging options.
type ServerConfig struct {
	// RPCAddr serves the voice-server authentication API.
	RPCAddr string `koanf:"rpc_addr"`

	// HTTPAddr serves the guest web flow.
	HTTPAddr string `koanf:"http_addr"`

	// MetricsAddr serves metrics and health probes. Empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`

	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log_format"`
}

// LDAPConfig describes the directory server and where users and groups live.
type LDAPConfig struct {
	Host                 string `koanf:"host"`
	Port                 int    `koanf:"port"`
	UserBase             string `koanf:"user_base"`
	UsernameAttribute    string `koanf:"username_attribute"`
	UserFilter           string `koanf:"user_filter"`
	GroupBase            string `koanf:"group_base"`
	GroupMemberAttribute string `koanf:"group_member_attribute"`
	PoolSize             int    `koanf:"pool_size"`
}

// GuestConfig tunes the guest access flow.
type GuestConfig struct {
	// SessionTTL bounds guest session tokens and guest identities.
	SessionTTL time.Duration `koanf:"session_ttl"`

	// NamePrefix is prepended to guest display names.
	NamePrefix string `koanf:"name_prefix"`

	// PublicHost is the voice-server host rendered into guest connection
	// links.
	PublicHost string `koanf:"public_host"`
}

// Default returns the built-in configuration. Required directory fields
// (user_base, user_filter, group_base) have no default and must be supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			RPCAddr:     "127.0.0.1:6502",
			HTTPAddr:    ":8080",
			MetricsAddr: "127.0.0.1:9100",
			LogFormat:   "json",
		},
		LDAP: LDAPConfig{
			Host:                 "127.0.0.1",
			Port:                 389,
			UsernameAttribute:    "cn",
			GroupMemberAttribute: "member",
			PoolSize:             3,
		},
		Guest: GuestConfig{
			SessionTTL: 4 * time.Hour,
			NamePrefix: "[guest] ",
			PublicHost: "127.0.0.1",
		},
	}
}

// flagKeys maps command-line flag names to configuration keys. Flags not
// listed here never reach the configuration tree.
var flagKeys = map[string]string{
	"rpc-addr":     "server.rpc_addr",
	"http-addr":    "server.http_addr",
	"metrics-addr": "server.metrics_addr",
	"log-format":   "server.log_format",
	"ldap-host":    "ldap.host",
	"ldap-port":    "ldap.port",
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then any explicitly set flags.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.LDAP.UserBase == "" {
		return oops.Code("CONFIG_MISSING_FIELD").Errorf("ldap.user_base is required")
	}
	if c.LDAP.UserFilter == "" {
		return oops.Code("CONFIG_MISSING_FIELD").Errorf("ldap.user_filter is required")
	}
	if c.LDAP.GroupBase == "" {
		return oops.Code("CONFIG_MISSING_FIELD").Errorf("ldap.group_base is required")
	}
	if c.LDAP.Port < 1 || c.LDAP.Port > 65535 {
		return oops.Code("CONFIG_BAD_VALUE").Errorf("ldap.port must be in 1..65535, got %d", c.LDAP.Port)
	}
	if c.Server.LogFormat != "json" && c.Server.LogFormat != "text" {
		return oops.Code("CONFIG_BAD_VALUE").Errorf("server.log_format must be 'json' or 'text', got %q", c.Server.LogFormat)
	}
	if c.Guest.SessionTTL <= 0 {
		return oops.Code("CONFIG_BAD_VALUE").Errorf("guest.session_ttl must be positive")
	}
	return nil
}
