package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// readFile decodes a YAML or TOML config file into a map keyed by the
// environment variable names. Keys may be written in any case
// ("database_url" or "DATABASE_URL").
func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	raw := map[string]any{}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config file %s: unsupported extension %q", path, ext)
	}

	values := make(map[string]string, len(raw))

	for k, v := range raw {
		key := strings.ToUpper(k)

		switch val := v.(type) {
		case []any:
			parts := make([]string, len(val))
			for i, p := range val {
				parts[i] = fmt.Sprint(p)
			}

			values[key] = strings.Join(parts, ",")
		case nil:
		default:
			values[key] = fmt.Sprint(val)
		}
	}

	return values, nil
}
