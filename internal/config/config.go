// Package config loads the relay's settings from configs/config.yml and
// BVP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"bvp_relay/internal/logger"
	"bvp_relay/internal/models"
	"bvp_relay/internal/sensor"
	"bvp_relay/internal/service"

	"github.com/mcuadros/go-defaults"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. BVP_SERVER_HOST.
const EnvPrefix = "BVP"

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Server    ServerConfig    `mapstructure:"server"`
	Sensor    SensorConfig    `mapstructure:"sensor"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Transport TransportConfig `mapstructure:"transport"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port" default:"8080"`
}

type LogConfig struct {
	Level string `mapstructure:"level" default:"info"`
}

type DBConfig struct {
	Path string `mapstructure:"path" default:"relay.db"`
}

// ServerConfig is the analysis server used when the operator gives none
// and none was saved.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type SensorConfig struct {
	APIKey        string   `mapstructure:"api_key"`
	Simulate      bool     `mapstructure:"simulate" default:"true"`
	SampleRateHz  int      `mapstructure:"sample_rate_hz" default:"64"`
	WarmupSamples int      `mapstructure:"warmup_samples" default:"32"`
	BatteryEvery  int      `mapstructure:"battery_every" default:"640"`
	Devices       []string `mapstructure:"devices"`
	AllowList     []string `mapstructure:"allow_list"`
}

type PipelineConfig struct {
	BatchSize        int  `mapstructure:"batch_size" default:"16"`
	RestartOnConnect bool `mapstructure:"restart_on_connect" default:"true"`
}

type TransportConfig struct {
	SendQueue int `mapstructure:"send_queue" default:"64"`
}

// keys are bound to the environment so overrides work without a config file.
var keys = []string{
	"http.port",
	"log.level",
	"db.path",
	"server.host", "server.port",
	"sensor.api_key", "sensor.simulate", "sensor.sample_rate_hz",
	"sensor.warmup_samples", "sensor.battery_every", "sensor.devices", "sensor.allow_list",
	"pipeline.batch_size", "pipeline.restart_on_connect",
	"transport.send_queue",
}

// NewViper returns a viper instance reading configFile, or configs/config.yml
// when configFile is empty. A missing default config file is not an error.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load fills struct defaults, overlays v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if !logger.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q: want debug, info, warn or error", c.Log.Level))
	}
	if c.Pipeline.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.batch_size must be >= 1, got %d", c.Pipeline.BatchSize))
	}
	if c.Transport.SendQueue < 1 {
		errs = append(errs, fmt.Errorf("transport.send_queue must be >= 1, got %d", c.Transport.SendQueue))
	}
	if c.Sensor.SampleRateHz < 1 {
		errs = append(errs, fmt.Errorf("sensor.sample_rate_hz must be >= 1, got %d", c.Sensor.SampleRateHz))
	}
	if c.Sensor.WarmupSamples < 0 {
		errs = append(errs, fmt.Errorf("sensor.warmup_samples must be >= 0, got %d", c.Sensor.WarmupSamples))
	}
	if ep := c.DefaultEndpoint(); !ep.IsZero() && !ep.Valid() {
		errs = append(errs, fmt.Errorf("server: invalid endpoint %q", ep.Address()))
	}
	return errors.Join(errs...)
}

// DefaultEndpoint is the configured analysis server, zero when unset.
func (c *Config) DefaultEndpoint() models.Endpoint {
	return models.Endpoint{Host: c.Server.Host, Port: c.Server.Port}
}

func (c *Config) Controller() service.ControllerConfig {
	return service.ControllerConfig{
		APIKey:           c.Sensor.APIKey,
		BatchSize:        c.Pipeline.BatchSize,
		RestartOnConnect: c.Pipeline.RestartOnConnect,
		DefaultEndpoint:  c.DefaultEndpoint(),
	}
}

func (c *Config) Simulator() sensor.SimulatorConfig {
	return sensor.SimulatorConfig{
		SampleRateHz:  c.Sensor.SampleRateHz,
		WarmupSamples: c.Sensor.WarmupSamples,
		BatteryEvery:  c.Sensor.BatteryEvery,
		Devices:       c.Sensor.Devices,
		AllowList:     c.Sensor.AllowList,
	}
}
