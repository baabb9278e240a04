package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

var settingsSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
})

// ValidateSettings validates raw config settings against the JSON schema.
func ValidateSettings(settings map[string]any) error {
	schema, err := settingsSchema()
	if err != nil {
		return fmt.Errorf("load config schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(settings))
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)

	return fmt.Errorf("config schema validation failed: %s", strings.Join(errs, "; "))
}

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
}

// Load validates the settings held by v and decodes them into a Config.
func Load(v *viper.Viper) (Config, error) {
	if err := ValidateSettings(v.AllSettings()); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
