package retry

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Operation names with their own retry policy.
const (
	OpCreateRun  = "create_run"
	OpBulkUpdate = "bulk_update"
	OpStatus     = "status"
)

// Policies maps an operation name to its retry policy.
type Policies map[string]Config

// LoadPolicies loads the YAML mapping under the top-level "retry" key.
func LoadPolicies(data []byte) (Policies, error) {
	var doc struct {
		Retry Policies `yaml:"retry"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for name, cfg := range doc.Retry {
		doc.Retry[name] = applyDefaults(cfg)
	}
	return doc.Retry, nil
}

// Get returns the policy of op, or the default policy if op has none.
func (p Policies) Get(op string) (Config, error) {
	if p == nil {
		return DefaultConfig(), fmt.Errorf("no retry policies configured")
	}
	cfg, ok := p[op]
	if !ok {
		return DefaultConfig(), fmt.Errorf("retry policy for %s not found", op)
	}
	return applyDefaults(cfg), nil
}

// For is Get without the error, for callers that accept the default.
func (p Policies) For(op string) Config {
	cfg, _ := p.Get(op)
	return cfg
}
