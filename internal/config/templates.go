package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Template renders Default in format, ready to be edited by hand.
func Template(format Format) (string, error) {
	return Encode(Default(), format)
}

func Encode(cfg Config, format Format) (string, error) {
	switch format {
	case FormatTOML:
		out, err := toml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("config encode toml: %w", err)
		}
		return string(out), nil
	case FormatYAML:
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("config encode yaml: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteTemplate writes a default config to path, choosing the format from
// its extension.
func WriteTemplate(path string, overwrite bool) error {
	template, err := Template(FormatFor(path))
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
