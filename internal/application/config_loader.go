package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// ConfigLoader layers configuration sources over DefaultConfig.
type ConfigLoader struct {
	lookuper envconfig.Lookuper
}

// NewConfigLoader returns a loader reading the process environment.
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{lookuper: envconfig.OsLookuper()}
}

// NewConfigLoaderWithEnv returns a loader reading env instead of the
// process environment.
func NewConfigLoaderWithEnv(env map[string]string) *ConfigLoader {
	return &ConfigLoader{lookuper: envconfig.MapLookuper(env)}
}

// Load returns DefaultConfig overlaid with the YAML file at path (skipped
// when path is empty) and then the environment. The result is not validated
// so callers can apply flags first.
func (l *ConfigLoader) Load(ctx context.Context, path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l.lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("failed to process environment: %w", err)
	}
	return cfg, nil
}

// decodeYAML decodes data over cfg in strict mode so typos in keys are
// reported rather than ignored.
func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("YAML decode failed: %w", err)
	}
	return nil
}

// MarshalYAML renders cfg as YAML.
func MarshalYAML(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}
