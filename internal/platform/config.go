package platform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Config is a flat, thread-safe property store keyed by dotted paths
// (e.g. "db.driver"). Layers merged later override earlier ones.
type Config struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfig returns an empty store.
func NewConfig() *Config {
	return &Config{values: make(map[string]any)}
}

// Set stores a single value.
func (c *Config) Set(path string, value any) {
	c.mu.Lock()
	c.values[normalizeKey(path)] = value
	c.mu.Unlock()
}

// SetDefaults stores values only for paths that are still unset.
func (c *Config) SetDefaults(defaults map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range defaults {
		key := normalizeKey(k)
		if _, exists := c.values[key]; !exists {
			c.values[key] = v
		}
	}
}

// MergeNested flattens a nested map (as decoded from YAML) into the store.
func (c *Config) MergeNested(values map[string]any) {
	flat := make(map[string]any)
	flatten("", values, flat)
	c.mu.Lock()
	for k, v := range flat {
		c.values[k] = v
	}
	c.mu.Unlock()
}

// MergeYAML decodes a YAML document and merges it into the store.
func (c *Config) MergeYAML(data []byte) error {
	var raw map[string]any
	if err := yamlv3.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: yaml: %w", err)
	}
	c.MergeNested(raw)
	return nil
}

// Keys returns every stored path in lexical order.
func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the raw value stored under path.
func (c *Config) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[normalizeKey(path)]
	return v, ok
}

// GetString returns the value formatted as a string.
func (c *Config) GetString(path string) (string, bool) {
	raw, ok := c.Get(path)
	if !ok {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// GetInt returns the value as an int.
func (c *Config) GetInt(path string) (int, bool, error) {
	raw, ok := c.Get(path)
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case uint64:
		return int(v), true, nil
	case float64:
		return int(v), true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, true, err
	default:
		return 0, true, fmt.Errorf("config: %s: cannot convert %T to int", path, raw)
	}
}

// GetBool returns the value as a bool.
func (c *Config) GetBool(path string) (bool, bool, error) {
	raw, ok := c.Get(path)
	if !ok {
		return false, false, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, true, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, true, err
	case int:
		return v != 0, true, nil
	case int64:
		return v != 0, true, nil
	case float64:
		return v != 0, true, nil
	default:
		return false, true, fmt.Errorf("config: %s: cannot convert %T to bool", path, raw)
	}
}

// GetDuration returns the value as a time.Duration. Strings use
// time.ParseDuration syntax; integers are taken as nanoseconds.
func (c *Config) GetDuration(path string) (time.Duration, bool, error) {
	raw, ok := c.Get(path)
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case time.Duration:
		return v, true, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		return d, true, err
	case int:
		return time.Duration(v), true, nil
	case int64:
		return time.Duration(v), true, nil
	default:
		return 0, true, fmt.Errorf("config: %s: cannot convert %T to duration", path, raw)
	}
}

// GetStringSlice accepts []string, []any or a comma separated string.
func (c *Config) GetStringSlice(path string) ([]string, bool) {
	raw, ok := c.Get(path)
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out, true
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, true
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, true
	default:
		return []string{fmt.Sprint(v)}, true
	}
}

func (c *Config) GetStringOrDef(path, def string) string {
	if v, ok := c.GetString(path); ok && v != "" {
		return v
	}
	return def
}

func (c *Config) GetIntOrDef(path string, def int) int {
	if v, ok, err := c.GetInt(path); ok && err == nil {
		return v
	}
	return def
}

func (c *Config) GetBoolOrDef(path string, def bool) bool {
	if v, ok, err := c.GetBool(path); ok && err == nil {
		return v
	}
	return def
}

func (c *Config) GetDurationOrDef(path string, def time.Duration) time.Duration {
	if v, ok, err := c.GetDuration(path); ok && err == nil {
		return v
	}
	return def
}

func (c *Config) GetStringSliceOrDef(path string, def []string) []string {
	if v, ok := c.GetStringSlice(path); ok && len(v) > 0 {
		return v
	}
	return def
}

// GetPort reads a listen address and normalizes it to ":port" form.
func (c *Config) GetPort(path, def string) string {
	port, _ := c.GetString(path)
	return NormalizePort(port, def)
}

// Unmarshal decodes the subtree rooted at path into target using the
// "koanf" struct tag. An empty path decodes the whole store.
func (c *Config) Unmarshal(path string, target any) error {
	if target == nil {
		return fmt.Errorf("config: nil target")
	}
	tree := c.tree()
	if path != "" {
		sub, ok := subtree(tree, normalizeKey(path))
		if !ok {
			sub = map[string]any{}
		}
		tree = sub
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "koanf",
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("config: decoder: %w", err)
	}
	if err := decoder.Decode(tree); err != nil {
		return fmt.Errorf("config: decode %q: %w", path, err)
	}
	return nil
}

// NormalizePort makes sure the address carries a colon and falls back to
// def, then to ":8080".
func NormalizePort(port, def string) string {
	p := strings.TrimSpace(port)
	if p == "" {
		p = strings.TrimSpace(def)
	}
	if p == "" {
		return ":8080"
	}
	if strings.Contains(p, ":") {
		return p
	}
	return ":" + p
}

func (c *Config) tree() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	root := make(map[string]any)
	for key, value := range c.values {
		insertNested(root, strings.Split(key, "."), value)
	}
	return root
}

func insertNested(node map[string]any, parts []string, value any) {
	head := parts[0]
	if len(parts) == 1 {
		if _, isMap := node[head].(map[string]any); !isMap {
			node[head] = value
		}
		return
	}
	child, ok := node[head].(map[string]any)
	if !ok {
		child = make(map[string]any)
		node[head] = child
	}
	insertNested(child, parts[1:], value)
}

func subtree(root map[string]any, path string) (map[string]any, bool) {
	current := root
	for _, segment := range strings.Split(path, ".") {
		next, ok := current[segment].(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func flatten(prefix string, values map[string]any, out map[string]any) {
	for k, v := range values {
		path := normalizeKey(k)
		if prefix != "" {
			path = prefix + "." + path
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(path, nested, out)
			continue
		}
		out[path] = v
	}
}

func normalizeKey(path string) string {
	segments := strings.Split(strings.Trim(path, "."), ".")
	for i := range segments {
		segments[i] = strings.ToLower(strings.TrimSpace(segments[i]))
	}
	return strings.Join(segments, ".")
}
