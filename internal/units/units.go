// Package units normalizes torque magnitudes written in free-form unit text to
// newton-meters.
package units

import "strings"

const (
	// FootPoundToNewtonMeter converts ft-lb to Nm.
	FootPoundToNewtonMeter = 1.35582
	// InchPoundToNewtonMeter converts in-lb to Nm.
	InchPoundToNewtonMeter = 0.113
)

// Family is a recognized torque unit family.
type Family int

const (
	Unknown Family = iota
	FootPound
	InchPound
	NewtonMeter
)

func (f Family) String() string {
	switch f {
	case FootPound:
		return "ft-lb"
	case InchPound:
		return "in-lb"
	case NewtonMeter:
		return "Nm"
	default:
		return "unknown"
	}
}

// Synonyms holds the configurable token sets for each unit family. An empty
// set falls back to its default.
type Synonyms struct {
	FtLb []string `mapstructure:"ft_lb"`
	InLb []string `mapstructure:"in_lb"`
	Nm   []string `mapstructure:"nm"`
}

// DefaultSynonyms returns the token sets used when none are configured.
func DefaultSynonyms() Synonyms {
	return Synonyms{
		FtLb: []string{"ft/lb", "ft-lb", "ft.lb", "ft lb", "ft/lbs", "ft-lbs", "ft.lbs", "ft lbs"},
		InLb: []string{"in/lb", "in-lb", "in.lb", "in lb", "in/lbs", "in-lbs", "in.lbs", "in lbs"},
		Nm:   []string{"nm", "n.m", "n*m", "nm.", "n.m."},
	}
}

// Converter maps unit text to a Family and scales values to Nm. It is
// immutable after construction and safe for concurrent use.
type Converter struct {
	ftLb map[string]struct{}
	inLb map[string]struct{}
	nm   map[string]struct{}
}

// NewConverter builds a Converter from the given synonym sets.
func NewConverter(s Synonyms) *Converter {
	def := DefaultSynonyms()

	return &Converter{
		ftLb: tokenSet(s.FtLb, def.FtLb),
		inLb: tokenSet(s.InLb, def.InLb),
		nm:   tokenSet(s.Nm, def.Nm),
	}
}

func tokenSet(tokens, fallback []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tok = normalizeToken(tok)
		if tok != "" {
			set[tok] = struct{}{}
		}
	}

	if len(set) == 0 && fallback != nil {
		return tokenSet(fallback, nil)
	}

	return set
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Family reports which unit family unitText belongs to.
func (c *Converter) Family(unitText string) Family {
	tok := normalizeToken(unitText)

	if _, ok := c.ftLb[tok]; ok {
		return FootPound
	}
	if _, ok := c.inLb[tok]; ok {
		return InchPound
	}
	if _, ok := c.nm[tok]; ok {
		return NewtonMeter
	}

	return Unknown
}

// Normalize converts value expressed in unitText to Nm. Unrecognized units
// are returned unchanged, as if already in Nm.
func (c *Converter) Normalize(value float64, unitText string) float64 {
	switch c.Family(unitText) {
	case FootPound:
		return value * FootPoundToNewtonMeter
	case InchPound:
		return value * InchPoundToNewtonMeter
	default:
		return value
	}
}
