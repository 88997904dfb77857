package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// File holds the top-level configuration document.
type File struct {
	Profiles map[string]Profile `mapstructure:"profiles"`
}

// LoaderConfig holds optional file overrides.
type LoaderConfig struct {
	// ConfigFile is an explicit config file path. When empty, standard
	// locations are searched.
	ConfigFile string
	// EnvFile is an explicit .env file path. When empty, ./.env is used
	// if it exists.
	EnvFile string
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Load reads the configuration document: YAML file first, then a .env file,
// then PROCKIT_-prefixed environment variables, later layers overriding
// earlier ones.
func Load(opts ...LoaderOption) (*File, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}

	v := viper.New()

	configFile := lc.ConfigFile
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	envFile := lc.EnvFile
	if envFile == "" && exists(".env") {
		envFile = ".env"
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	v.SetEnvPrefix("PROCKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg File
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Lookup returns the named profile from the document.
func (f *File) Lookup(name string) (Profile, bool) {
	p, ok := f.Profiles[name]
	return p, ok
}

// findConfigFile searches for config.yml in standard locations.
func findConfigFile() string {
	searchPaths := []string{
		"./config.yml",
		"./config.yaml",
		"./config/config.yml",
		"./config/config.yaml",
	}

	for _, path := range searchPaths {
		if exists(path) {
			return path
		}
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
