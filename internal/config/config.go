package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Receiver struct {
		APIURL string `mapstructure:"api_url"`
	} `mapstructure:"receiver"`

	Storage struct {
		FilePath string `mapstructure:"file_path"`
	} `mapstructure:"storage"`

	Battery struct {
		SysfsPath string `mapstructure:"sysfs_path"`
		DrmPath   string `mapstructure:"drm_path"`
	} `mapstructure:"battery"`

	Alarm struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"alarm"`
}

// LoadConfig reads the daemon configuration. A missing file is fine, the
// defaults cover a standard Linux laptop; a malformed one is not.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("server.port", ":8390")
	v.SetDefault("receiver.api_url", "https://charge-notify.fly.dev")
	v.SetDefault("storage.file_path", "data/settings.json")
	v.SetDefault("battery.sysfs_path", "/sys/class/power_supply")
	v.SetDefault("battery.drm_path", "/sys/class/drm")
	v.SetDefault("alarm.poll_interval", time.Minute)

	v.SetEnvPrefix("CHARGE_NOTIFY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
