package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFile returns ~/.mailnet/config.yaml.
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".mailnet", "config.yaml")
}

// LoadFile overlays the YAML file at path onto cfg.  Keys absent from
// the file leave cfg untouched; unknown keys are an error.  A missing
// file is an error only when required is set.
func LoadFile(path string, cfg *Config, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Marshal renders cfg as YAML, for --dump-config.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
