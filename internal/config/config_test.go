// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func emptyEnv(t *testing.T) string {
	return writeFile(t, "empty.env", "")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "", emptyEnv(t))
	require.NoError(t, err)

	assert.Equal(t, hottoh.DefaultHost, cfg.Host)
	assert.Equal(t, hottoh.DefaultPort, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 3*time.Second, cfg.DisconnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 15.0, cfg.Presets.Away)
	assert.Equal(t, 18.0, cfg.Presets.Eco)
	assert.Equal(t, 20.0, cfg.Presets.Comfort)
	assert.Equal(t, ":8080", cfg.HTTP.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Equal(t, hottoh.TCPDialer{Host: hottoh.DefaultHost, Port: hottoh.DefaultPort}, cfg.Dialer())
}

func TestLoad_FileEnvAndFlagPrecedence(t *testing.T) {
	file := writeFile(t, "hottoh.yaml", `
host: 10.0.0.5
port: 6000
command_timeout: 2s
presets:
  comfort: 22
mqtt:
  broker: tcp://broker:1883
`)
	t.Setenv("HOTTOH_PORT", "7000")
	t.Setenv("HOTTOH_LOG_LEVEL", "debug")

	v := New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("host", "", "")
	flags.Int("port", 0, "")
	require.NoError(t, BindFlags(v, flags))
	require.NoError(t, flags.Parse([]string{"--host", "stove.lan"}))

	cfg, err := Load(v, file, emptyEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "stove.lan", cfg.Host, "flag beats file")
	assert.Equal(t, 7000, cfg.Port, "env beats file when the flag is unset")
	assert.Equal(t, 2*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 22.0, cfg.Presets.Comfort)
	assert.Equal(t, 15.0, cfg.Presets.Away)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_DotEnv(t *testing.T) {
	env := writeFile(t, "test.env", "HOTTOH_MQTT_TOPIC=stoves/lounge\n")
	t.Cleanup(func() { _ = os.Unsetenv("HOTTOH_MQTT_TOPIC") })

	cfg, err := Load(New(), "", env)
	require.NoError(t, err)
	assert.Equal(t, "stoves/lounge", cfg.MQTT.Topic)
}

func TestLoad_MissingFiles(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"), emptyEnv(t))
	assert.Error(t, err)

	_, err = Load(New(), "", filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load(New(), "", emptyEnv(t))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"zero command timeout", func(c *Config) { c.CommandTimeout = 0 }},
		{"negative connect timeout", func(c *Config) { c.ConnectTimeout = -time.Second }},
		{"preset too cold", func(c *Config) { c.Presets.Away = 10 }},
		{"preset too hot", func(c *Config) { c.Presets.Comfort = 35 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	disabled := base
	disabled.Presets.Eco = 0
	assert.NoError(t, disabled.Validate())
}

func TestDialer_Selection(t *testing.T) {
	cfg := Config{Host: "h", Port: 1, Serial: "/dev/ttyUSB0", Baud: 9600}
	assert.Equal(t, hottoh.SerialDialer{Device: "/dev/ttyUSB0", BaudRate: 9600}, cfg.Dialer())

	cfg.URL = "wss://bridge/ws"
	cfg.Username = "admin"
	cfg.Password = "secret"
	cfg.NoSSLVerify = true
	assert.Equal(t, hottoh.WebSocketDialer{
		URL: "wss://bridge/ws", Username: "admin", Password: "secret", SkipSSLVerify: true,
	}, cfg.Dialer())

	sc := cfg.SessionConfig()
	assert.Equal(t, cfg.Dialer(), sc.Dialer)
}
