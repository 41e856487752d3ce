package enums

import "fmt"

// DefectType classifies the structural damage found in a drone image.
type DefectType string

const (
	DefectTypeCrack         DefectType = "crack"
	DefectTypeSpalling      DefectType = "spalling"
	DefectTypePaintDamage   DefectType = "paint-damage"
	DefectTypeRebarExposure DefectType = "rebar-exposure"
)

var validDefectTypes = []DefectType{
	DefectTypeCrack,
	DefectTypeSpalling,
	DefectTypePaintDamage,
	DefectTypeRebarExposure,
}

// String implements fmt.Stringer.
func (d DefectType) String() string {
	return string(d)
}

// IsValid reports whether the value matches the canonical defect type set.
func (d DefectType) IsValid() bool {
	for _, candidate := range validDefectTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDefectType converts raw input into DefectType.
func ParseDefectType(value string) (DefectType, error) {
	for _, candidate := range validDefectTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid defect type %q", value)
}
