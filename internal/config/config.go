// Package config loads runtime settings from the environment and an optional
// env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds every setting for the recorder service and its control CLI.
type Config struct {
	LogLevel   string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFile    string `mapstructure:"log_file"`
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`
	ControlURL string `mapstructure:"control_url" validate:"required,url"`

	OutputPath    string `mapstructure:"recorder_output_path" validate:"required"`
	Channels      int    `mapstructure:"recorder_channels" validate:"oneof=1 2"`
	TickMs        int    `mapstructure:"recorder_tick_ms" validate:"min=10,max=10000"`
	QueueSize     int    `mapstructure:"recorder_queue_size" validate:"min=1"`
	Capture       string `mapstructure:"recorder_capture" validate:"oneof=tone command"`
	CaptureDevice string `mapstructure:"recorder_capture_device"`
	ChunkFrames   int    `mapstructure:"recorder_chunk_frames" validate:"min=64,max=65536"`
	ToneHz        int    `mapstructure:"recorder_tone_hz" validate:"min=0,max=20000"`
	Sidecars      bool   `mapstructure:"sidecar_enabled"`

	RPSSeed uint64 `mapstructure:"rps_seed"`
}

// TickInterval is the elapsed-time display cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

func setDefault(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LISTEN_ADDR", ":9001")
	v.SetDefault("CONTROL_URL", "ws://127.0.0.1:9001/mcp/ws")

	v.SetDefault("RECORDER_OUTPUT_PATH", "recorded.wav")
	v.SetDefault("RECORDER_CHANNELS", 1)
	v.SetDefault("RECORDER_TICK_MS", 100)
	v.SetDefault("RECORDER_QUEUE_SIZE", 256)
	v.SetDefault("RECORDER_CAPTURE", "tone")
	v.SetDefault("RECORDER_CAPTURE_DEVICE", "default")
	v.SetDefault("RECORDER_CHUNK_FRAMES", 1024)
	v.SetDefault("RECORDER_TONE_HZ", 440)
	v.SetDefault("SIDECAR_ENABLED", true)

	v.SetDefault("RPS_SEED", 0)
}

// InitConfig builds a viper instance reading the environment, plus the env
// file named by ENV_PATH (or ./.env) when one exists.
func InitConfig() (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))
	setDefault(v)
	v.SetConfigType("env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".env")
	}
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read env file: %w", err)
		}
	}
	return v, nil
}

// GetApplicationConfig decodes and validates v.
func GetApplicationConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &cfg, nil
}

// Load is InitConfig followed by GetApplicationConfig.
func Load() (*Config, error) {
	v, err := InitConfig()
	if err != nil {
		return nil, err
	}
	return GetApplicationConfig(v)
}
