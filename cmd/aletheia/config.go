package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/metalagman/aletheia/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "ALETHEIA"

// initConfig wires .env, environment and the optional config file into viper.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("load .env")
	}

	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// VITE_API_URL is honoured for parity with the browser client's .env files.
	_ = viper.BindEnv("api.base_url", envPrefix+"_API_BASE_URL", "VITE_API_URL")

	if path := configPath(); path != "" {
		viper.SetConfigFile(path)
	}
}

// configPath returns the explicit --config file, or the first existing default.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	candidates := []string{
		filepath.Join(".aletheia", "config.yaml"),
		filepath.Join(viper.GetString("state_dir"), "config.yaml"),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func loadConfig() (config.Config, error) {
	if viper.ConfigFileUsed() != "" {
		if err := viper.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return config.Load(viper.GetViper())
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			settings := viper.AllSettings()
			delete(settings, "config")
			if api, ok := settings["api"].(map[string]any); ok {
				api["base_url"] = config.ResolveBaseURL(cfg.API.BaseURL, "")
			}
			out := struct {
				File     string         `yaml:"file,omitempty"`
				Settings map[string]any `yaml:"config"`
			}{File: viper.ConfigFileUsed(), Settings: settings}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}
