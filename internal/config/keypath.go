package config

import (
	"fmt"
	"slices"
	"strings"
)

// Sections are the top-level keys of the config file.
var Sections = []string{"transport", "api", "identity", "relay", "logging", "hooks"}

// Key addresses one value in the raw config file, e.g. relay.rateLimit.rps.
type Key []string

// ParseKey splits a dotted key and checks that it starts at a known section.
func ParseKey(raw string) (Key, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty key"}
	}
	k := Key(strings.Split(raw, "."))
	if slices.Contains(k, "") {
		return nil, &ConfigError{Message: fmt.Sprintf("key %q has an empty segment", raw)}
	}
	if !slices.Contains(Sections, k[0]) {
		return nil, &ConfigError{Message: fmt.Sprintf("unknown section %q (want one of %s)", k[0], strings.Join(Sections, ", "))}
	}
	return k, nil
}

func (k Key) String() string { return strings.Join(k, ".") }

// Leaf is the last segment of the key.
func (k Key) Leaf() string { return k[len(k)-1] }

// Lookup returns the value stored under k.
func Lookup(root map[string]any, k Key) (any, bool) {
	var cur any = root
	for _, seg := range k {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Assign stores value under k. Missing or scalar parents become maps.
func Assign(root map[string]any, k Key, value any) {
	m := root
	for _, seg := range k[:len(k)-1] {
		child, ok := m[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[seg] = child
		}
		m = child
	}
	m[k.Leaf()] = value
}

// Remove deletes the value under k and drops parents left empty. It reports
// whether anything was there.
func Remove(root map[string]any, k Key) bool {
	if len(k) == 1 {
		_, ok := root[k[0]]
		delete(root, k[0])
		return ok
	}
	child, ok := root[k[0]].(map[string]any)
	if !ok || !Remove(child, k[1:]) {
		return false
	}
	if len(child) == 0 {
		delete(root, k[0])
	}
	return true
}
