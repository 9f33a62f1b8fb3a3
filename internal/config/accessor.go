package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// toTree renders cfg as the generic JSON tree the path accessors walk.
func toTree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByPath retrieves a config value by dot-notation path (e.g. "chat.model").
func GetByPath(cfg *Config, path string) (any, error) {
	tree, err := toTree(cfg)
	if err != nil {
		return nil, err
	}
	var current any = tree
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot traverse into %T at %s", current, key)
		}
		if current, ok = m[key]; !ok {
			return nil, fmt.Errorf("key not found: %s", path)
		}
	}
	return current, nil
}

// SetByPath sets an existing leaf value. String input is converted to the
// type the field already holds, so "8080" sets a port and "1234" stays a
// string for a key field.
func SetByPath(cfg *Config, path string, value any) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	tree, err := toTree(cfg)
	if err != nil {
		return err
	}

	parts := strings.Split(path, ".")
	parent := tree
	for _, key := range parts[:len(parts)-1] {
		child, ok := parent[key].(map[string]any)
		if !ok {
			return fmt.Errorf("key not found: %s", path)
		}
		parent = child
	}

	leaf := parts[len(parts)-1]
	old, ok := parent[leaf]
	if !ok {
		// omitempty fields are absent from the tree until set.
		if !optionalPaths[path] {
			return fmt.Errorf("key not found: %s", path)
		}
		old = ""
	}
	if _, isSection := old.(map[string]any); isSection {
		return fmt.Errorf("%s is a section, not a value", path)
	}
	converted, err := convertLike(old, value)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	parent[leaf] = converted

	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

// optionalPaths are omitempty string fields with an empty default.
var optionalPaths = map[string]bool{
	"general.logFile":       true,
	"openai.language":       true,
	"chat.systemPrompt":     true,
	"tools.weather.baseUrl": true,
	"tools.search.baseUrl":  true,
}

// convertLike converts v to the JSON type of like.
func convertLike(like, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	switch like.(type) {
	case bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("expected a boolean, got %q", s)
		}
		return b, nil
	case float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", s)
		}
		return f, nil
	default:
		return s, nil
	}
}

// Sanitize returns a copy of the config with sensitive values masked.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	for _, secret := range []*string{
		&out.OpenAI.APIKey,
		&out.Tools.Weather.APIKey,
		&out.Tools.Search.APIKey,
		&out.Tools.Music.YouTubeAPIKey,
		&out.Tools.Music.SpotifyClientSecret,
	} {
		if *secret != "" {
			*secret = maskString(*secret)
		}
	}
	if out.Server.Auth.PasswordHash != "" {
		out.Server.Auth.PasswordHash = "***"
	}
	return &out
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// ListPaths returns every leaf path with its current value.
func ListPaths(cfg *Config) map[string]any {
	tree, err := toTree(cfg)
	if err != nil {
		return nil
	}
	result := make(map[string]any)
	flattenMap("", tree, result)
	return result
}

// SortedPaths returns the keys of ListPaths in lexical order.
func SortedPaths(cfg *Config) []string {
	paths := ListPaths(cfg)
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func flattenMap(prefix string, m map[string]any, result map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flattenMap(path, sub, result)
			continue
		}
		result[path] = v
	}
}
