package widget

import "strings"

// Variant names one of the fixed widget templates.
type Variant string

const (
	// DefaultTemplate is the bundled template used until the instance has
	// been customized from the settings screen.
	DefaultTemplate Variant = "default"

	VariantDayNight        Variant = "daynight"
	VariantDynamicDayNight Variant = "dynamic_daynight"
	VariantDay             Variant = "day"
	VariantDynamicDay      Variant = "dynamic_day"
	VariantNight           Variant = "night"
	VariantDynamicNight    Variant = "dynamic_night"
)

// Variants lists the six themed templates.
var Variants = []Variant{
	VariantDayNight, VariantDynamicDayNight,
	VariantDay, VariantDynamicDay,
	VariantNight, VariantDynamicNight,
}

// SelectLayout maps a stored theme and the dynamic-color flag to a template.
// Unrecognized themes use the system (day/night following) variant.
func SelectLayout(theme string, dynamic bool) Variant {
	switch strings.ToLower(strings.TrimSpace(theme)) {
	case "day", "light":
		if dynamic {
			return VariantDynamicDay
		}
		return VariantDay
	case "night", "dark":
		if dynamic {
			return VariantDynamicNight
		}
		return VariantNight
	default:
		// "system" and anything written by a newer version.
		if dynamic {
			return VariantDynamicDayNight
		}
		return VariantDayNight
	}
}
