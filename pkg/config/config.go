// Package config pkg/config/config.go
//
// Package config loads the JSON configuration files the daemon and its
// tools share. Decoding is strict: fields the target struct does not
// declare are rejected, so a typo in a config file fails at startup
// instead of silently falling back to a default.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a JSON configuration file into dst.
func Load(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	return nil
}

// LoadAndValidate loads a configuration file and, when the target
// implements Validator, lets it check itself and fill in defaults.
func LoadAndValidate(path string, cfg interface{}) error {
	if err := Load(path, cfg); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		return v.Validate()
	}

	return nil
}
