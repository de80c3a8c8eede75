package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Studio    StudioConfig    `mapstructure:"studio"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

type ServerConfig struct {
	GRPCPort        int           `mapstructure:"grpc_port"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type StudioConfig struct {
	LayoutPath  string        `mapstructure:"layout_path"`
	MaxMessages int           `mapstructure:"max_messages"`
	MoveTimeout time.Duration `mapstructure:"move_timeout"`
}

type SimulatorConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// FaultRateOverride replaces every robot's layout fault rate when set.
	FaultRateOverride *float64 `mapstructure:"fault_rate_override"`
}

// Load reads the YAML file at path on top of the defaults. An empty path
// loads defaults and environment only. Environment variables use the OSC_
// prefix with underscores for nesting, e.g. OSC_SERVER_HTTP_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults setzen
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("studio.layout_path", "configs/studio.yaml")
	v.SetDefault("studio.max_messages", 200)
	v.SetDefault("studio.move_timeout", "1m")
	v.SetDefault("simulator.tick_interval", "100ms")

	v.SetEnvPrefix("OSC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	for name, port := range map[string]int{
		"server.http_port": c.Server.HTTPPort,
		"server.grpc_port": c.Server.GRPCPort,
	} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid config: %s %d out of range", name, port)
		}
	}
	if c.Studio.MaxMessages <= 0 {
		return fmt.Errorf("invalid config: studio.max_messages must be positive")
	}
	if c.Studio.MoveTimeout <= 0 {
		return fmt.Errorf("invalid config: studio.move_timeout must be positive")
	}
	if c.Simulator.TickInterval <= 0 {
		return fmt.Errorf("invalid config: simulator.tick_interval must be positive")
	}
	if rate := c.Simulator.FaultRateOverride; rate != nil && (*rate < 0 || *rate > 1) {
		return fmt.Errorf("invalid config: simulator.fault_rate_override must be within [0, 1]")
	}
	return nil
}
