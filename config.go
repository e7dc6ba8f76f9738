package concordion

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServeConfig holds the dev server's (C13) own settings.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the viper-backed configuration surface (C14): output
// directory, a namespace override (for testing the engine against a
// different command namespace URI), fail-fast behavior for multi-document
// runs, and the dev server's address. It is loaded from a
// ".concordion.yaml" file, if present, layered under CONCORDION_-prefixed
// environment variables and CLI flags, in that order of increasing
// precedence.
type Config struct {
	OutputDir string      `mapstructure:"output_dir"`
	Namespace string      `mapstructure:"namespace"`
	FailFast  bool        `mapstructure:"fail_fast"`
	Serve     ServeConfig `mapstructure:"serve"`
}

// LoadConfig builds a Config from ".concordion.yaml" (searched in the
// current directory and configDir, if non-empty), environment variables
// prefixed CONCORDION_, and the given viper instance's bound flags. Passing
// v as nil uses a fresh, package-local viper.Viper so repeated calls in
// tests don't share global state.
func LoadConfig(v *viper.Viper, configDir string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetConfigName(".concordion")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	v.SetEnvPrefix("CONCORDION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("output_dir", "")
	v.SetDefault("namespace", "")
	v.SetDefault("fail_fast", false)
	v.SetDefault("serve.addr", ":4783")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
