package model

import (
	"fmt"
	"strings"
)

type Compound string

const (
	CompoundSoft         Compound = "SOFT"
	CompoundMedium       Compound = "MEDIUM"
	CompoundHard         Compound = "HARD"
	CompoundIntermediate Compound = "INTERMEDIATE"
)

const (
	// DefaultDegradation is used for compounds without a known coefficient
	DefaultDegradation = 0.05
	// IntermediateDegradation is fixed, independent of track and team
	IntermediateDegradation = 0.02
)

var (
	// seconds slower than SOFT
	paceOffsets = map[Compound]float64{
		CompoundSoft:         0.0,
		CompoundMedium:       0.5,
		CompoundHard:         1.0,
		CompoundIntermediate: 0.0,
	}
	// factor applied to track baseline degradation
	degradationMultipliers = map[Compound]float64{
		CompoundSoft:   1.0,
		CompoundMedium: 0.7,
		CompoundHard:   0.4,
	}
	// tire age after which the compound is considered worn out (display only)
	cliffAges = map[Compound]int{
		CompoundSoft: 25,
	}
)

var Compounds = []Compound{
	CompoundSoft, CompoundMedium, CompoundHard, CompoundIntermediate,
}

// ParseCompound accepts the compound names case-insensitively.
// INTER is accepted as alias for INTERMEDIATE.
func ParseCompound(s string) (Compound, error) {
	c := Compound(strings.ToUpper(strings.TrimSpace(s)))
	if c == "INTER" {
		return CompoundIntermediate, nil
	}
	if c.Known() {
		return c, nil
	}
	return c, fmt.Errorf("unknown compound %q", s)
}

func (c Compound) Known() bool {
	_, ok := paceOffsets[c]
	return ok
}

// PaceOffset returns the seconds per lap this compound is slower than SOFT.
// Unknown compounds have no offset.
func (c Compound) PaceOffset() float64 {
	return paceOffsets[c]
}

// DegradationMultiplier returns the multiplier and whether the compound has one.
// INTERMEDIATE and unknown compounds use fixed coefficients instead.
func (c Compound) DegradationMultiplier() (float64, bool) {
	m, ok := degradationMultipliers[c]
	return m, ok
}

func (c Compound) CliffAge() int {
	if age, ok := cliffAges[c]; ok {
		return age
	}
	return 40
}

func (c Compound) Wet() bool {
	return c == CompoundIntermediate
}

func (c Compound) String() string {
	return string(c)
}
