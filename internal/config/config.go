// Package config loads the ingest pipeline configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/soniakeys/unit"
	"gopkg.in/yaml.v3"

	"github.com/lofar-msss/obsdb/internal/retry"
	"github.com/lofar-msss/obsdb/internal/runs"
)

// Campaign modes.
const (
	// ModeRuns groups descriptors into template runs before persisting.
	ModeRuns = "runs"
	// ModeSingle persists every descriptor on its own.
	ModeSingle = "single"
)

// DefaultRadius is the default catalog match radius in radians.
const DefaultRadius = 0.05

// Campaign selects the descriptors of one observing campaign and says how
// to ingest them.
type Campaign struct {
	Name      string   `yaml:"name" json:"name"`
	Title     string   `yaml:"title" json:"title"`
	Survey    string   `yaml:"survey" json:"survey"`
	Mode      string   `yaml:"mode" json:"mode"`
	Templates []string `yaml:"templates" json:"templates"`
}

// Survey describes a survey created by create-survey.
type Survey struct {
	Name          string `yaml:"name" json:"name"`
	Description   string `yaml:"description" json:"description"`
	BeamsPerField int    `yaml:"beams_per_field" json:"beams_per_field"`
}

// Config is the pipeline configuration file.
type Config struct {
	Surveys          []Survey            `yaml:"surveys" json:"surveys"`
	Campaigns        map[string]Campaign `yaml:"campaigns" json:"campaigns"`
	Templates        []runs.Template     `yaml:"templates" json:"templates"`
	CalibratorRadius float64             `yaml:"calibrator_radius" json:"calibrator_radius"`
	FieldRadius      float64             `yaml:"field_radius" json:"field_radius"`
	Retry            retry.Policies      `yaml:"retry" json:"retry"`
}

// Default returns the MSSS configuration: the LBA campaign matched against
// the wide and narrow templates, and the HBA campaign ingested per
// observation.
func Default() Config {
	return Config{
		Surveys: []Survey{
			{Name: "MSSS LBA", Description: "Multifrequency Snapshot Sky Survey, low band", BeamsPerField: 9},
			{Name: "MSSS HBA", Description: "Multifrequency Snapshot Sky Survey, high band", BeamsPerField: 9},
		},
		Campaigns: map[string]Campaign{
			"lba": {Name: "MSSS", Survey: "MSSS LBA", Mode: ModeRuns, Templates: []string{"wide", "narrow"}},
			"hba": {Name: "MSSS_HBA_2013", Title: "MSSS HBA Survey", Survey: "MSSS HBA", Mode: ModeSingle},
		},
		Templates:        runs.DefaultTemplates(),
		CalibratorRadius: DefaultRadius,
		FieldRadius:      DefaultRadius,
	}
}

func applyDefaults(cfg Config) Config {
	def := Default()
	if len(cfg.Surveys) == 0 {
		cfg.Surveys = def.Surveys
	}
	if len(cfg.Campaigns) == 0 {
		cfg.Campaigns = def.Campaigns
	}
	if len(cfg.Templates) == 0 {
		cfg.Templates = def.Templates
	}
	if cfg.CalibratorRadius <= 0 {
		cfg.CalibratorRadius = def.CalibratorRadius
	}
	if cfg.FieldRadius <= 0 {
		cfg.FieldRadius = def.FieldRadius
	}
	for name, c := range cfg.Campaigns {
		if c.Mode == "" {
			c.Mode = ModeRuns
		}
		if c.Mode == ModeRuns && len(c.Templates) == 0 {
			for _, t := range cfg.Templates {
				c.Templates = append(c.Templates, t.Name)
			}
		}
		cfg.Campaigns[name] = c
	}
	return cfg
}

// Load parses YAML bytes, fills defaults and validates the result.
func Load(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg = applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads a config file. An empty path yields Default().
func LoadFile(path string) (Config, error) {
	if path == "" {
		return applyDefaults(Default()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Load(data)
}

// Validate checks templates and campaign references.
func (c Config) Validate() error {
	names := make(map[string]bool)
	for _, t := range c.Templates {
		if err := t.Validate(); err != nil {
			return err
		}
		if names[t.Name] {
			return fmt.Errorf("duplicate template %s", t.Name)
		}
		names[t.Name] = true
	}
	for key, camp := range c.Campaigns {
		if camp.Name == "" {
			return fmt.Errorf("campaign %s: name is required", key)
		}
		if camp.Survey == "" {
			return fmt.Errorf("campaign %s: survey is required", key)
		}
		switch camp.Mode {
		case ModeRuns:
			for _, t := range camp.Templates {
				if !names[t] {
					return fmt.Errorf("campaign %s: unknown template %s", key, t)
				}
			}
		case ModeSingle:
		default:
			return fmt.Errorf("campaign %s: unknown mode %q", key, camp.Mode)
		}
	}
	return nil
}

// ErrUnknownCampaign is returned by Campaign for a missing key.
var ErrUnknownCampaign = errors.New("unknown campaign")

// Campaign returns the campaign configured under key.
func (c Config) Campaign(key string) (Campaign, error) {
	camp, ok := c.Campaigns[key]
	if !ok {
		return Campaign{}, fmt.Errorf("%w: %s", ErrUnknownCampaign, key)
	}
	return camp, nil
}

// TemplatesFor returns the templates of camp in its priority order.
func (c Config) TemplatesFor(camp Campaign) []runs.Template {
	byName := make(map[string]runs.Template, len(c.Templates))
	for _, t := range c.Templates {
		byName[t.Name] = t
	}
	out := make([]runs.Template, 0, len(camp.Templates))
	for _, name := range camp.Templates {
		if t, ok := byName[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// SurveyByName returns the configured survey called name.
func (c Config) SurveyByName(name string) (Survey, bool) {
	for _, s := range c.Surveys {
		if s.Name == name {
			return s, true
		}
	}
	return Survey{}, false
}

// CalibratorAngle returns the calibrator match radius.
func (c Config) CalibratorAngle() unit.Angle { return unit.Angle(c.CalibratorRadius) }

// FieldAngle returns the field match radius.
func (c Config) FieldAngle() unit.Angle { return unit.Angle(c.FieldRadius) }

// RetryPolicy returns the retry policy of op, falling back to the default.
func (c Config) RetryPolicy(op string) retry.Config {
	return c.Retry.For(op)
}
