// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial"`
	Log      LogConfig      `mapstructure:"log"`
	Poll     PollConfig     `mapstructure:"poll"`
	CSV      CSVConfig      `mapstructure:"csv"`
	Database DatabaseConfig `mapstructure:"database"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Influx   InfluxConfig   `mapstructure:"influx"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Web      WebConfig      `mapstructure:"web"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device string `mapstructure:"device"`
	// BaudRate drives frame timing only. The line itself always runs at
	// 9600 8N1.
	BaudRate   int           `mapstructure:"baud_rate"`
	Station    uint8         `mapstructure:"station"`
	Timeout    time.Duration `mapstructure:"timeout"`     // Response wait bound
	OpenTries  int           `mapstructure:"open_tries"`  // Attempts while the device is locked
	RetryDelay time.Duration `mapstructure:"retry_delay"` // Pause between open attempts
	RqstPause  time.Duration `mapstructure:"rqst_pause"`  // Pause between requests

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// PollConfig defines how often snapshots are taken
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 polls once
}

// CSVConfig defines the CSV log
type CSVConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig defines the SQL sink
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"` // Overrides the fields below when set
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Table    string `mapstructure:"table"`
}

// MQTTConfig defines the MQTT republisher
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"` // e.g. "tcp://localhost:1883"
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
	Retained bool   `mapstructure:"retained"`
}

// InfluxConfig defines the InfluxDB v2 republisher
type InfluxConfig struct {
	URL         string `mapstructure:"url"`
	Token       string `mapstructure:"token"`
	Org         string `mapstructure:"org"`
	Bucket      string `mapstructure:"bucket"`
	Measurement string `mapstructure:"measurement"`
}

// RelayConfig defines the SSH forwarding relay
type RelayConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	User       string        `mapstructure:"user"`
	KeyFile    string        `mapstructure:"key_file"`
	KnownHosts string        `mapstructure:"known_hosts"`
	Command    string        `mapstructure:"command"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// SnapshotConfig defines the mmap'd latest snapshot file
type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

// WebConfig defines the status page
type WebConfig struct {
	Listen string `mapstructure:"listen"`
}

// Enabled reports whether the section names a destination.
func (c DatabaseConfig) Enabled() bool { return c.DSN != "" || c.Name != "" }

// Enabled reports whether the section names a destination.
func (c MQTTConfig) Enabled() bool { return c.Broker != "" }

// Enabled reports whether the section names a destination.
func (c InfluxConfig) Enabled() bool { return c.URL != "" }

// Enabled reports whether the section names a destination.
func (c RelayConfig) Enabled() bool { return c.Host != "" }

// ConnString returns the lib/pq connection string for the section.
func (c DatabaseConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	var parts []string
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+quoteConnValue(value))
		}
	}
	add("host", c.Host)
	if c.Port != 0 {
		add("port", fmt.Sprint(c.Port))
	}
	add("dbname", c.Name)
	add("user", c.User)
	add("password", c.Password)
	return strings.Join(parts, " ")
}

func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// legacyKeys maps the flat key=value names of the old configuration file to
// their sections.
var legacyKeys = map[string]string{
	"modport":   "serial.device",
	"modbaud":   "serial.baud_rate",
	"csvfile":   "csv.path",
	"dbname":    "database.name",
	"dbhost":    "database.host",
	"dbport":    "database.port",
	"dbuser":    "database.user",
	"dbpass":    "database.password",
	"dbtable":   "database.table",
	"sshhost":   "relay.host",
	"sshuser":   "relay.user",
	"sshkey":    "relay.key_file",
	"sshcmd":    "relay.command",
	"mmapfile":  "snapshot.path",
	"weblisten": "web.listen",
}

// LoadConfig loads configuration from file. Flags, when given, override file
// values through their viper keys.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		switch strings.TrimPrefix(filepath.Ext(configFile), ".") {
		case "yaml", "yml", "json", "toml", "properties", "props", "prop", "env", "ini", "hcl", "tfvars", "dotenv":
		default:
			// Files like /usr/local/etc/solar.conf hold key=value lines.
			v.SetConfigType("properties")
		}
	} else {
		v.SetConfigName("solar")
		v.SetConfigType("yaml")
		v.AddConfigPath("/usr/local/etc/solar/")
		v.AddConfigPath("$HOME/.solar")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for legacy, key := range legacyKeys {
		if v.InConfig(legacy) && !v.InConfig(key) {
			v.SetDefault(key, v.Get(legacy))
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Serial)
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("serial.device", "/dev/ttyUSB0")
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.station", 1)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.table", "solar")
	v.SetDefault("mqtt.client_id", "solarsnap")
	v.SetDefault("mqtt.topic", "solar/snapshot")
	v.SetDefault("influx.measurement", "solar")
	v.SetDefault("relay.port", 22)
	v.SetDefault("relay.command", "solarrecv")
	v.SetDefault("relay.timeout", 30*time.Second)
	v.SetDefault("web.listen", ":8080")
}

// bindFlags binds every flag whose name is a config key, like
// "serial.device" or "log.level".
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || !strings.Contains(f.Name, ".") {
			return
		}
		err = v.BindPFlag(f.Name, f)
	})
	if err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	return nil
}

func fixupSerial(s *SerialConfig) {
	if s.Timeout == 0 {
		s.Timeout = 500 * time.Millisecond
	}
	if s.OpenTries <= 0 {
		s.OpenTries = 5
	}
	if s.RetryDelay == 0 {
		s.RetryDelay = time.Second
	}
	if s.RqstPause == 0 {
		s.RqstPause = 100 * time.Millisecond
	}
}
