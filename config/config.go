// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

// Package config loads the server's configuration object from YAML/JSON files and
// TURTLE_-prefixed environment variables (spec §6 "Configuration object"), mirroring
// danielloader-oci-pull-through's flat-struct-plus-defaults shape but sourced through
// spf13/viper instead of hand-rolled env parsing.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/airstand/turtle"
)

// SSL holds the TLS material paths (spec §6 "ssl.cert, ssl.key").
type SSL struct {
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

// Proxy holds the reverse-proxy tunables (spec §6 "proxy.rewrite, proxy.maxConnections").
type Proxy struct {
	Rewrite        []string `mapstructure:"rewrite"`
	MaxConnections int      `mapstructure:"maxConnections"`
}

// Logs holds the logging tunables (spec §6 "logs.level, logs.stdout, logs.dtrace,
// logs.format, logs.time").
type Logs struct {
	Level  string `mapstructure:"level"`
	Stdout bool   `mapstructure:"stdout"`
	DTrace bool   `mapstructure:"dtrace"`
	Format string `mapstructure:"format"`
	Time   string `mapstructure:"time"`
}

// Config is the full recognized option set (spec §6 "Configuration object"), loaded via
// Load and translated into turtle.Options by cmd/turtled.
type Config struct {
	Port     int               `mapstructure:"port"`
	Address  string            `mapstructure:"address"`
	ID       string            `mapstructure:"id"`
	Default  string            `mapstructure:"default"`
	Root     string            `mapstructure:"root"`
	VHosts   map[string]string `mapstructure:"vhosts"`
	Tmp      string            `mapstructure:"tmp"`
	Index    []string          `mapstructure:"index"`
	Headers  map[string]string `mapstructure:"headers"`
	Compress bool              `mapstructure:"compress"`
	JSON     int               `mapstructure:"json"`
	MaxBytes int64             `mapstructure:"maxBytes"`
	SSL      SSL               `mapstructure:"ssl"`
	Proxy    Proxy             `mapstructure:"proxy"`
	Logs     Logs              `mapstructure:"logs"`
	Seed     uint32            `mapstructure:"seed"`
	UID      int               `mapstructure:"uid"`
	CatchAll bool              `mapstructure:"catchAll"`
}

// defaults mirrors spec §6's literal default values.
func defaults(v *viper.Viper) {
	v.SetDefault("port", 8000)
	v.SetDefault("address", "0.0.0.0")
	v.SetDefault("default", "")
	v.SetDefault("root", ".")
	v.SetDefault("index", []string{"index.html"})
	v.SetDefault("compress", true)
	v.SetDefault("json", 0)
	v.SetDefault("maxBytes", 0)
	v.SetDefault("ssl.cert", "")
	v.SetDefault("ssl.key", "")
	v.SetDefault("proxy.maxConnections", 0)
	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.stdout", true)
	v.SetDefault("logs.dtrace", false)
	v.SetDefault("seed", 0)
	v.SetDefault("catchAll", true)
}

// Load reads path (if non-empty) and environment overrides with prefix TURTLE_, e.g.
// TURTLE_PORT, TURTLE_SSL_CERT, TURTLE_PROXY_MAXCONNECTIONS (spec §6).
func Load(path string) (Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("TURTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.Default == "" {
		return Config{}, fmt.Errorf("config: %q is required", "default")
	}

	lowered := make(map[string]string, len(cfg.Headers))
	for k, val := range cfg.Headers {
		lowered[strings.ToLower(k)] = val
	}
	if _, ok := lowered["server"]; !ok {
		lowered["server"] = "turtle.io/" + turtle.Version
	}
	cfg.Headers = lowered

	return cfg, nil
}
