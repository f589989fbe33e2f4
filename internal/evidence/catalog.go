// Package evidence scores patch families by the merge indicators found in
// their discussion.
package evidence

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Indicator is one phrase pattern with its base weight
type Indicator struct {
	Category      string  `yaml:"category" json:"category"`
	Pattern       string  `yaml:"pattern" json:"pattern"`
	Weight        float64 `yaml:"weight" json:"weight"`
	BoostEligible bool    `yaml:"boost_eligible" json:"boost_eligible"`

	re  *regexp.Regexp
	who int
}

// Tier is a labelled lower bound on the score
type Tier struct {
	Label string  `yaml:"label" json:"label"`
	Min   float64 `yaml:"min" json:"min"`
}

// Catalog is the data-driven scoring table
type Catalog struct {
	BoostFactor float64     `yaml:"boost_factor" json:"boost_factor"`
	Saturation  float64     `yaml:"saturation" json:"saturation"`
	Tiers       []Tier      `yaml:"tiers" json:"tiers"`
	Indicators  []Indicator `yaml:"indicators" json:"indicators"`
}

// Default returns the built-in catalog
func Default() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in evidence catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes, compiles and validates a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if err := c.compile(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) compile() error {
	for i := range c.Indicators {
		ind := &c.Indicators[i]
		re, err := regexp.Compile(ind.Pattern)
		if err != nil {
			return fmt.Errorf("indicator %q: compiling pattern: %w", ind.Category, err)
		}
		ind.re = re
		ind.who = re.SubexpIndex("who")
	}
	return nil
}

// Validate checks weights, constants and tier layout. Tiers must be listed
// with strictly descending minimums from at most 1 down to exactly 0 so that
// they partition [0,1].
func (c *Catalog) Validate() error {
	if len(c.Indicators) == 0 {
		return fmt.Errorf("catalog has no indicators")
	}
	if c.BoostFactor <= 1 {
		return fmt.Errorf("boost_factor must be > 1, got %v", c.BoostFactor)
	}
	if c.Saturation <= 0 || math.IsInf(c.Saturation, 0) || math.IsNaN(c.Saturation) {
		return fmt.Errorf("saturation must be a positive number, got %v", c.Saturation)
	}
	seen := make(map[string]bool)
	for _, ind := range c.Indicators {
		if ind.Category == "" {
			return fmt.Errorf("indicator with pattern %q has no category", ind.Pattern)
		}
		if seen[ind.Category] {
			return fmt.Errorf("duplicate indicator category %q", ind.Category)
		}
		seen[ind.Category] = true
		if !(ind.Weight > 0) || math.IsInf(ind.Weight, 0) {
			return fmt.Errorf("indicator %q: weight must be positive, got %v", ind.Category, ind.Weight)
		}
		if ind.re == nil {
			return fmt.Errorf("indicator %q: pattern not compiled", ind.Category)
		}
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("catalog has no tiers")
	}
	if c.Tiers[0].Min > 1 {
		return fmt.Errorf("tier %q: min must be <= 1, got %v", c.Tiers[0].Label, c.Tiers[0].Min)
	}
	for i := 1; i < len(c.Tiers); i++ {
		if !(c.Tiers[i].Min < c.Tiers[i-1].Min) {
			return fmt.Errorf("tier %q: minimums must strictly descend", c.Tiers[i].Label)
		}
	}
	if last := c.Tiers[len(c.Tiers)-1]; last.Min != 0 {
		return fmt.Errorf("lowest tier %q must have min 0, got %v", last.Label, last.Min)
	}
	return nil
}

// Label maps a score in [0,1] to its tier
func (c *Catalog) Label(score float64) string {
	for _, t := range c.Tiers {
		if score >= t.Min {
			return t.Label
		}
	}
	return c.Tiers[len(c.Tiers)-1].Label
}

// Threshold returns the minimum of the named tier.
func (c *Catalog) Threshold(label string) (float64, bool) {
	for _, t := range c.Tiers {
		if t.Label == label {
			return t.Min, true
		}
	}
	return 0, false
}

// Saturate maps a raw evidence sum onto [0,1]. Monotone in sum.
func (c *Catalog) Saturate(sum float64) float64 {
	if sum <= 0 {
		return 0
	}
	s := 1 - math.Exp(-sum/c.Saturation)
	if s > 1 {
		return 1
	}
	return s
}
