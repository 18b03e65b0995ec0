// Package config loads the composed "mega" binary's configuration
// from file and environment, layering viper defaults under a config
// file under env overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for a locker process.
type Config struct {
	Bus    BusConfig    `mapstructure:"bus"`
	NFC    NFCConfig    `mapstructure:"nfc"`
	Lock   LockConfig   `mapstructure:"lock"`
	HTTP   HTTPConfig   `mapstructure:"http"`
	Beacon BeaconConfig `mapstructure:"beacon"`
	Access AccessConfig `mapstructure:"access"`
	Logger LoggerConfig `mapstructure:"logger"`
}

// BusConfig contains MQTT broker connection settings.
type BusConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Prefix   string `mapstructure:"prefix"`
}

// NFCConfig contains the NFC transport and session engine settings.
type NFCConfig struct {
	Device          string   `mapstructure:"device"`
	AID             string   `mapstructure:"aid"`
	ContractAddress string   `mapstructure:"contract_address"`
	LockerID        string   `mapstructure:"locker_id"`
	LockerName      string   `mapstructure:"locker_name"`
	ImageURLs       []string `mapstructure:"image_urls"`
	OpenCloseType   string   `mapstructure:"open_close_type"`
	DummyLock       bool     `mapstructure:"dummy_lock"`
}

// LockConfig contains GPIO actuator settings.
type LockConfig struct {
	Pin         int  `mapstructure:"pin"`
	ActiveHigh  bool `mapstructure:"active_high"`
	StartLocked bool `mapstructure:"start_locked"`
}

// HTTPConfig contains the WoT façade's bind address.
type HTTPConfig struct {
	Bind string `mapstructure:"bind"`
}

// BeaconConfig contains BLE advertising identity settings.
type BeaconConfig struct {
	HCI        string `mapstructure:"hci"`
	LockerIID  string `mapstructure:"locker_iid"`
	LockerNSID string `mapstructure:"locker_nsid"`
}

// AccessConfig holds the access controller backend settings. Mode is
// loaded but not read by either mega binary: mega-controller always
// uses the IAA server and mega-mock-controller always the mock checker.
type AccessConfig struct {
	Mode      string `mapstructure:"mode"` // "mock" or "real"
	IAAServer string `mapstructure:"iaa_server"`
}

// LoggerConfig contains logging settings.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	LogDir string `mapstructure:"log_dir"`
}

// Load reads configuration from configPath (or the default search
// path) and overlays environment variables prefixed LOCKER_.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	v.SetEnvPrefix("LOCKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bus.broker", "tcp://localhost:1883")
	v.SetDefault("bus.client_id", "")
	v.SetDefault("bus.prefix", "")

	v.SetDefault("nfc.device", "")
	v.SetDefault("nfc.aid", "f0010203")
	v.SetDefault("nfc.open_close_type", "open-tap-close")
	v.SetDefault("nfc.dummy_lock", false)

	v.SetDefault("lock.pin", 18)
	v.SetDefault("lock.active_high", true)
	v.SetDefault("lock.start_locked", true)

	v.SetDefault("http.bind", ":8090")

	v.SetDefault("beacon.hci", "hci0")

	v.SetDefault("access.mode", "mock")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}

func getConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".smaug-locker")
}
