package domain

import (
	"fmt"
	"strings"
)

// UnitClass decides which dimensions of a measurement multiply into its total.
type UnitClass string

const (
	UnitVolume UnitClass = "volume"
	UnitArea   UnitClass = "area"
	UnitLinear UnitClass = "linear"
	UnitCount  UnitClass = "count"
)

// Dimension names one numeric field of a MeasurementLine.
type Dimension string

const (
	DimCount   Dimension = "count"
	DimLength  Dimension = "length"
	DimBreadth Dimension = "breadth"
	DimHeight  Dimension = "height"
)

// AllDimensions in column order.
var AllDimensions = []Dimension{DimCount, DimLength, DimBreadth, DimHeight}

var classDimensions = map[UnitClass][]Dimension{
	UnitVolume: {DimCount, DimLength, DimBreadth, DimHeight},
	UnitArea:   {DimCount, DimLength, DimBreadth},
	UnitLinear: {DimCount, DimLength},
	UnitCount:  {DimCount},
}

// Dimensions returns the fields that take part in the total for this class.
// Fields outside this set are never multiplied in.
func (c UnitClass) Dimensions() []Dimension {
	return classDimensions[c]
}

// Uses reports whether d is one of the class's dimensions.
func (c UnitClass) Uses(d Dimension) bool {
	for _, x := range classDimensions[c] {
		if x == d {
			return true
		}
	}
	return false
}

var unitAliases = map[string]UnitClass{
	"cum": UnitVolume, "m3": UnitVolume, "cubicmetre": UnitVolume, "cubicmeter": UnitVolume,
	"cft": UnitVolume, "cuft": UnitVolume, "cubicfeet": UnitVolume,

	"sqm": UnitArea, "m2": UnitArea, "squaremetre": UnitArea, "squaremeter": UnitArea,
	"sqft": UnitArea, "sft": UnitArea, "squarefeet": UnitArea,

	"m": UnitLinear, "rm": UnitLinear, "rmt": UnitLinear, "metre": UnitLinear, "meter": UnitLinear,
	"lm": UnitLinear, "ft": UnitLinear, "rft": UnitLinear, "runningmetre": UnitLinear,

	"nos": UnitCount, "no": UnitCount, "each": UnitCount, "ea": UnitCount, "pcs": UnitCount,
	"set": UnitCount, "sets": UnitCount, "unit": UnitCount, "units": UnitCount, "number": UnitCount,
}

// NormalizeUnit lowercases a unit and drops spaces, dots and superscripts ("Cu. M" -> "cum").
func NormalizeUnit(unit string) string {
	r := strings.NewReplacer(" ", "", ".", "", "²", "2", "³", "3", "-", "")
	return r.Replace(strings.ToLower(strings.TrimSpace(unit)))
}

// ParseUnitClass maps a unit string to its class.
func ParseUnitClass(unit string) (UnitClass, error) {
	n := NormalizeUnit(unit)
	if c, ok := unitAliases[n]; ok {
		return c, nil
	}
	return "", Validation("unit", fmt.Sprintf("unknown unit %q", unit))
}
