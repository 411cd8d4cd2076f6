package config

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-wallet/internal/constants"
	"github.com/spf13/viper"
)

//go:embed config.yaml
var EmbeddedConfigYAML []byte

const (
	configName = "config"
	envPrefix  = "QW"
)

type Chain struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	InitAttempts   int           `mapstructure:"init_attempts"`
}

type Storage struct {
	Dir          string `mapstructure:"dir"`
	KeychainFile string `mapstructure:"keychain_file"`
	SettingsDB   string `mapstructure:"settings_db"`
}

type Server struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Biometric struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	Chain     Chain     `mapstructure:"chain"`
	Storage   Storage   `mapstructure:"storage"`
	Server    Server    `mapstructure:"server"`
	Biometric Biometric `mapstructure:"biometric"`
}

// DefaultPaths are searched in order for config.yaml.
func DefaultPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		filepath.Join(home, ".config", constants.AppName),
		".",
	}
}

// Load layers the embedded defaults, the first config.yaml found in paths
// (or explicitFile when set) and QW_* environment variables.
func Load(explicitFile string, paths []string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(EmbeddedConfigYAML)); err != nil {
		return nil, errors.Wrap(err, "read embedded config")
	}

	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", explicitFile)
		}
	} else {
		v.SetConfigName(configName)
		for _, p := range paths {
			v.AddConfigPath(p)
		}
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Chain.RPCURL = strings.TrimSpace(c.Chain.RPCURL)
	if c.Chain.RPCURL == "" {
		return errors.New("chain.rpc_url is required")
	}
	if c.Chain.RequestTimeout <= 0 {
		c.Chain.RequestTimeout = 15 * time.Second
	}
	if c.Chain.InitAttempts <= 0 {
		c.Chain.InitAttempts = 3
	}

	dir, err := expandHome(strings.TrimSpace(c.Storage.Dir))
	if err != nil {
		return err
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "resolve home dir")
		}
		dir = filepath.Join(home, ".config", constants.AppName)
	}
	c.Storage.Dir = dir

	if c.Storage.KeychainFile == "" {
		c.Storage.KeychainFile = constants.KeychainFile
	}
	if c.Storage.SettingsDB == "" {
		c.Storage.SettingsDB = constants.SettingsDB
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	return nil
}

func (c *Config) KeychainPath() string {
	return filepath.Join(c.Storage.Dir, c.Storage.KeychainFile)
}

func (c *Config) SettingsPath() string {
	return filepath.Join(c.Storage.Dir, c.Storage.SettingsDB)
}

func (c *Config) DeviceKeyPath() string {
	return filepath.Join(c.Storage.Dir, constants.DeviceKey)
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home dir")
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
