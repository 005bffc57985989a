// Package triggers matches automation entity state changes against a
// declarative, hot-reloadable trigger configuration.
package triggers

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// StateFilter accepts a scalar or a sequence in YAML and normalizes to a
// list.
type StateFilter []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *StateFilter) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*f = StateFilter{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*f = StateFilter(list)
		return nil
	default:
		return fmt.Errorf("state_filter must be a string or list of strings")
	}
}

// Contains reports whether state passes the filter. An empty filter passes
// everything.
func (f StateFilter) Contains(state string) bool {
	if len(f) == 0 {
		return true
	}
	for _, s := range f {
		if s == state {
			return true
		}
	}
	return false
}

// Trigger is one configured entity trigger.
type Trigger struct {
	// Name identifies the trigger in logs and refresh events.
	Name string `yaml:"name"`

	// EntityPattern matches entity ids: "/.../" is a regex, a pattern
	// containing '*' is a glob, anything else is an exact match.
	EntityPattern string `yaml:"entity_pattern"`

	// StateFilter restricts matching to these new states. Empty matches any.
	StateFilter StateFilter `yaml:"state_filter"`

	// DebounceSeconds suppresses re-matches within this window.
	DebounceSeconds int `yaml:"debounce_seconds"`

	// compiled is set during validation for regex and glob patterns.
	compiled *regexp.Regexp
}

// matchEntity evaluates the entity pattern against an entity id.
func (t *Trigger) matchEntity(entityID string) bool {
	if t.compiled != nil {
		return t.compiled.MatchString(entityID)
	}
	return t.EntityPattern == entityID
}

// Config is a validated trigger configuration snapshot. Snapshots are
// immutable; reloads build a new one.
type Config struct {
	Triggers []Trigger `yaml:"triggers"`
}

// Parse decodes and validates a trigger configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse trigger config; %w", err)
	}

	for i := range cfg.Triggers {
		if err := validateTrigger(&cfg.Triggers[i]); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Load reads and parses the trigger configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger config; %w", err)
	}
	return Parse(data)
}

// validateTrigger checks required fields and compiles the pattern. Errors
// cite the trigger name.
func validateTrigger(t *Trigger) error {
	if t.Name == "" {
		return fmt.Errorf("trigger missing name")
	}
	if t.EntityPattern == "" {
		return fmt.Errorf("trigger %q missing entity_pattern", t.Name)
	}
	if t.DebounceSeconds < 0 {
		return fmt.Errorf("trigger %q has negative debounce_seconds", t.Name)
	}

	pattern := t.EntityPattern
	switch {
	case strings.HasPrefix(pattern, "/"):
		body := strings.TrimSuffix(pattern[1:], "/")
		re, err := regexp.Compile(body)
		if err != nil {
			return fmt.Errorf("trigger %q has invalid regex; %w", t.Name, err)
		}
		t.compiled = re
	case strings.Contains(pattern, "*"):
		re, err := regexp.Compile("^" + globToRegexp(pattern) + "$")
		if err != nil {
			return fmt.Errorf("trigger %q has invalid glob; %w", t.Name, err)
		}
		t.compiled = re
	}
	return nil
}

// globToRegexp escapes the pattern and widens '*' to '.*'.
func globToRegexp(pattern string) string {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return strings.Join(parts, ".*")
}
