package replica

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is the document form of the clone options:
//
//	logMode: silent
//	performanceConfig:
//	  robustTypeChecking: true
//	ignoreCloningMethods: false
//	letCustomizerThrow: false
//	async: true
//	fully: false
//	force: false
type Config struct {
	LogMode              string            `yaml:"logMode"`
	PerformanceConfig    PerformanceConfig `yaml:"performanceConfig"`
	IgnoreCloningMethods bool              `yaml:"ignoreCloningMethods"`
	LetCustomizerThrow   bool              `yaml:"letCustomizerThrow"`
	Async                bool              `yaml:"async"`
	Fully                bool              `yaml:"fully"`
	Force                bool              `yaml:"force"`
}

// PerformanceConfig selects classifier behaviour.
type PerformanceConfig struct {
	RobustTypeChecking bool `yaml:"robustTypeChecking"`
}

// LoadConfig parses a YAML options document. Unknown fields are rejected.
func LoadConfig(data []byte) (*Config, error) {
	var cfg Config
	if len(data) == 0 {
		return &cfg, nil
	}
	node := yaml.Node{}
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := checkConfigKeys(&node); err != nil {
		return nil, err
	}
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

var configKeys = map[string]map[string]bool{
	"": {
		"logMode": true, "performanceConfig": true, "ignoreCloningMethods": true,
		"letCustomizerThrow": true, "async": true, "fully": true, "force": true,
	},
	"performanceConfig": {"robustTypeChecking": true},
}

func checkConfigKeys(doc *yaml.Node) error {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	return checkMapping(doc.Content[0], "")
}

func checkMapping(n *yaml.Node, section string) error {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	allowed := configKeys[section]
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if !allowed[key] {
			return fmt.Errorf("config line %d: unknown field %q: %w", n.Content[i].Line, key, ErrMisuse)
		}
		if _, nested := configKeys[key]; nested && section == "" {
			if err := checkMapping(n.Content[i+1], key); err != nil {
				return err
			}
		}
	}
	return nil
}

// Options converts the document into functional options.
func (c *Config) Options() []Option {
	opts := []Option{
		WithRobustTypeChecking(c.PerformanceConfig.RobustTypeChecking),
		WithIgnoreCloningMethods(c.IgnoreCloningMethods),
		WithLetCustomizerThrow(c.LetCustomizerThrow),
		WithForce(c.Force),
	}
	if c.LogMode != "" {
		opts = append(opts, WithLogMode(c.LogMode))
	}
	return opts
}

// Clone runs the entry point the document selects. extra options are applied
// after the document's own, so they win. Async documents yield the *Result of
// the async call, never the bare clone.
func (c *Config) Clone(ctx context.Context, v Value, extra ...Option) (Value, error) {
	opts := append(c.Options(), extra...)
	if c.Async {
		clone := CloneAsync
		if c.Fully {
			clone = CloneFullyAsync
		}
		r, err := clone(ctx, v, opts...)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	if c.Fully {
		return CloneFully(v, opts...)
	}
	return Clone(v, opts...)
}
