package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/webharvest/webharvest/internal/model"
)

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("1.5s", "500ms") or a bare number of seconds, so that config
// files written for the common case stay terse.
type Duration time.Duration

// Duration returns the standard library form.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}

	var secs float64
	if err := node.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

// selectorSpec decodes a selector that is written either as a bare
// expression string (CSS, text content, single match) or as a mapping
// with selector/kind/attr/repeating keys.
type selectorSpec struct {
	model.Selector
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *selectorSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var expr string
		if err := node.Decode(&expr); err != nil {
			return err
		}
		s.Selector = model.Selector{Expr: expr}
		return nil
	}
	return node.Decode(&s.Selector)
}

// paginationSpec mirrors model.PaginationRule with the flexible selector
// form for next_selector.
type paginationSpec struct {
	Enabled      bool         `yaml:"enabled"`
	NextSelector selectorSpec `yaml:"next_selector"`
	MaxPages     int          `yaml:"max_pages"`
}

// TargetSpec is the YAML shape of one named target. Selectors keep
// document order, which storage writers rely on for column order.
type TargetSpec struct {
	BaseURL    string            `yaml:"base_url"`
	Selectors  selectorList      `yaml:"selectors"`
	Pagination paginationSpec    `yaml:"pagination"`
	RateLimit  *Duration         `yaml:"rate_limit"`
	MaxRetries *int              `yaml:"max_retries"`
	Timeout    *Duration         `yaml:"timeout"`
	Headers    map[string]string `yaml:"headers"`
	UserAgent  string            `yaml:"user_agent"`
}

// selectorList decodes a YAML mapping of field name to selector while
// preserving the document order of the keys. A plain map decode would
// lose the order Go maps do not keep.
type selectorList model.SelectorMap

// UnmarshalYAML implements yaml.Unmarshaler by walking the mapping node's
// key/value pairs directly.
func (l *selectorList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: selectors must be a mapping", node.Line)
	}
	out := make(selectorList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]

		var name string
		if err := keyNode.Decode(&name); err != nil {
			return fmt.Errorf("line %d: selector key: %w", keyNode.Line, err)
		}
		var spec selectorSpec
		if err := valNode.Decode(&spec); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		out = append(out, model.Field{Name: name, Selector: spec.Selector})
	}
	*l = out
	return nil
}

// Load reads and parses the configuration file at path, fills unset
// scraper values with defaults, and validates every target definition.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration bytes. Split from Load for tests and for
// callers that carry config over other transports.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	cfg.applyDefaults()

	// Validate eagerly so a broken target fails the invocation before
	// any network activity, not at its turn in a multi-target run.
	for _, name := range cfg.TargetNames() {
		if _, err := cfg.Target(name); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// TargetNames returns the configured target names, sorted for stable
// iteration and error ordering.
func (c *Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Target resolves a named target against the scraper defaults and
// returns the validated model form the orchestrator consumes.
func (c *Config) Target(name string) (*model.Target, error) {
	spec, ok := c.Targets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTargetNotFound, name)
	}

	t := c.NewTarget()
	t.Name = name
	t.BaseURL = spec.BaseURL
	t.Fields = model.SelectorMap(spec.Selectors)
	t.Headers = spec.Headers
	if spec.UserAgent != "" {
		t.UserAgent = spec.UserAgent
	}
	if spec.RateLimit != nil {
		t.RateLimit = time.Duration(*spec.RateLimit)
	}
	if spec.MaxRetries != nil {
		t.MaxRetries = *spec.MaxRetries
	}
	if spec.Timeout != nil {
		t.Timeout = time.Duration(*spec.Timeout)
	}

	if spec.Pagination.Enabled {
		t.Pagination = model.PaginationRule{
			Enabled:      true,
			NextSelector: spec.Pagination.NextSelector.Selector,
			MaxPages:     spec.Pagination.MaxPages,
		}
		if t.Pagination.MaxPages == 0 {
			t.Pagination.MaxPages = DefaultMaxPages
		}
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	return &t, nil
}

// NewTarget returns an unnamed target carrying only the scraper
// defaults. Batch and ad-hoc modes start from this prototype.
func (c *Config) NewTarget() model.Target {
	return model.Target{
		RateLimit:  time.Duration(c.Scraper.RateLimit),
		MaxRetries: *c.Scraper.MaxRetries,
		Timeout:    time.Duration(c.Scraper.Timeout),
		UserAgent:  c.Scraper.UserAgent,
	}
}
