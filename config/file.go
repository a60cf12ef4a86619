package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays the YAML document at path onto cfg.  Keys missing
// from the file keep their current value; unknown keys are an error so
// that typos do not go unnoticed.
func LoadFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	if err := decode(cfg, f); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// LoadBytes is LoadFile for an in-memory document.
func LoadBytes(cfg *Config, data []byte) error {
	return decode(cfg, bytes.NewReader(data))
}

func decode(cfg *Config, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}
