package platform

import (
	"fmt"
	"os"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var defaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"config/config.yaml",
	"config/config.yml",
	".config/config.yaml",
	".config/config.yml",
}

// LoadConfig builds a Config from, in increasing precedence: defaults, the
// first YAML file found in the default locations, environment variables with
// the given namespace and --key=value arguments.
//
// Environment keys drop the namespace, lower-case and map "_" to ".", so
// CRUD_DB_DRIVER becomes db.driver.
func LoadConfig(namespace string, args []string, defaults map[string]any) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.LoadSources(namespace, args); err != nil {
		return nil, err
	}
	cfg.SetDefaults(defaults)
	return cfg, nil
}

// LoadSources merges file, environment and argument layers into c.
func (c *Config) LoadSources(namespace string, args []string) error {
	k := koanf.New(".")

	path, explicit := configPathFromArgs(args)
	if !explicit {
		path, explicit = findConfigFile()
	}
	if explicit {
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if namespace != "" {
		prefix := strings.ToUpper(strings.TrimSuffix(namespace, "_")) + "_"
		transform := func(s string) string {
			s = strings.TrimPrefix(s, prefix)
			return strings.ToLower(strings.ReplaceAll(s, "_", "."))
		}
		if err := k.Load(env.Provider(prefix, ".", transform), nil); err != nil {
			return fmt.Errorf("config: loading env: %w", err)
		}
	}

	if kv := ParseArgs(args); len(kv) > 0 {
		if err := k.Load(confmap.Provider(kv, "."), nil); err != nil {
			return fmt.Errorf("config: loading args: %w", err)
		}
	}

	raw := map[string]any{}
	if err := k.Unmarshal("", &raw); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}
	c.MergeNested(raw)
	return nil
}

// ParseArgs turns "--key=value", "--key value" and bare "--flag" arguments
// into a flat map. Anything not starting with "--" is ignored.
func ParseArgs(args []string) map[string]any {
	out := make(map[string]any)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") || len(arg) <= 2 {
			continue
		}
		key := strings.TrimPrefix(arg, "--")
		if name, value, found := strings.Cut(key, "="); found {
			out[name] = value
			continue
		}
		value := "true"
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			value = args[i+1]
			i++
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func configPathFromArgs(args []string) (string, bool) {
	kv := ParseArgs(args)
	if p, ok := kv["config"].(string); ok && p != "" && p != "true" {
		return p, true
	}
	return "", false
}

func findConfigFile() (string, bool) {
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}
