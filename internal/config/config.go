// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

// Package config loads settings from flags, HOTTOH_ environment variables,
// an optional .env file and an optional hottoh.yaml, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/benlbrm/ha-hottoh-component/pkg/entity"
	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "HOTTOH"

// Config is the full set of settings used by the commands.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	Serial string `mapstructure:"serial"`
	Baud   int    `mapstructure:"baud"`

	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	NoSSLVerify bool   `mapstructure:"no_ssl_verify"`

	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	DisconnectTimeout time.Duration `mapstructure:"disconnect_timeout"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`

	Log     LogConfig      `mapstructure:"log"`
	Presets entity.Presets `mapstructure:"presets"`
	HTTP    HTTPConfig     `mapstructure:"http"`
	MQTT    MQTTConfig     `mapstructure:"mqtt"`
	History HistoryConfig  `mapstructure:"history"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

// MQTTConfig enables the MQTT bridge when Broker is set.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// HistoryConfig enables the SQLite recorder when DB is set.
type HistoryConfig struct {
	DB       string        `mapstructure:"db"`
	Interval time.Duration `mapstructure:"interval"`
}

var defaults = map[string]any{
	"host":               hottoh.DefaultHost,
	"port":               hottoh.DefaultPort,
	"serial":             "",
	"baud":               hottoh.DefaultBaudRate,
	"url":                "",
	"username":           "",
	"password":           "",
	"no_ssl_verify":      false,
	"connect_timeout":    hottoh.DefaultConnectTimeout,
	"disconnect_timeout": hottoh.DefaultDisconnectTimeout,
	"command_timeout":    hottoh.DefaultCommandTimeout,
	"poll_interval":      hottoh.DefaultPollInterval,
	"log.level":          "info",
	"log.format":         "console",
	"presets.away":       entity.DefaultPresets.Away,
	"presets.eco":        entity.DefaultPresets.Eco,
	"presets.comfort":    entity.DefaultPresets.Comfort,
	"http.listen":        ":8080",
	"mqtt.broker":        "",
	"mqtt.topic":         "hottoh",
	"mqtt.client_id":     "hottoh",
	"mqtt.username":      "",
	"mqtt.password":      "",
	"history.db":         "",
	"history.interval":   time.Minute,
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"host":               "host",
	"port":               "port",
	"serial":             "serial",
	"baud":               "baud",
	"url":                "url",
	"username":           "username",
	"no-ssl-verify":      "no_ssl_verify",
	"connect-timeout":    "connect_timeout",
	"disconnect-timeout": "disconnect_timeout",
	"command-timeout":    "command_timeout",
	"poll-interval":      "poll_interval",
	"log-level":          "log.level",
	"log-format":         "log.format",
	"listen":             "http.listen",
	"mqtt-broker":        "mqtt.broker",
	"mqtt-topic":         "mqtt.topic",
	"history-db":         "history.db",
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every known flag present in flags.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads envFile (".env" when empty) and configFile, then decodes v.
// A missing .env or a missing default config file is not an error.
func Load(v *viper.Viper, configFile, envFile string) (Config, error) {
	if envFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("hottoh")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges that would otherwise fail much later.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	for name, d := range map[string]time.Duration{
		"connect_timeout":    c.ConnectTimeout,
		"disconnect_timeout": c.DisconnectTimeout,
		"command_timeout":    c.CommandTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	for name, t := range map[string]float64{
		"away":    c.Presets.Away,
		"eco":     c.Presets.Eco,
		"comfort": c.Presets.Comfort,
	} {
		if t != 0 && (t < protocol.MinTemperature || t > protocol.MaxTemperature) {
			return fmt.Errorf("preset %s %.1f outside %.0f-%.0f", name, t, protocol.MinTemperature, protocol.MaxTemperature)
		}
	}
	return nil
}

// Dialer picks the transport: WebSocket bridge, then serial, then TCP.
func (c Config) Dialer() hottoh.Dialer {
	switch {
	case c.URL != "":
		return hottoh.WebSocketDialer{
			URL:           c.URL,
			Username:      c.Username,
			Password:      c.Password,
			SkipSSLVerify: c.NoSSLVerify,
		}
	case c.Serial != "":
		return hottoh.SerialDialer{Device: c.Serial, BaudRate: c.Baud}
	default:
		return hottoh.TCPDialer{Host: c.Host, Port: c.Port}
	}
}

// SessionConfig returns the session settings for this configuration.
func (c Config) SessionConfig() hottoh.Config {
	return hottoh.Config{
		Dialer:         c.Dialer(),
		CommandTimeout: c.CommandTimeout,
		PollInterval:   c.PollInterval,
	}
}
