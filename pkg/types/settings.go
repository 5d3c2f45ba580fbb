package types

import (
	"fmt"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 4

// SiteIDNone is used when running without multiple sites.
const SiteIDNone = "none"

// Settings represents the run configuration stored per site. Scenario files
// may override any field through SettingsOverride.
type Settings struct {
	// Storage state of charge thresholds (0-1) that select the charging
	// regime. Below BufferLow every device may charge the storage, at or
	// above BufferHigh nothing charges it.
	BufferLow  float64 `json:"bufferLow" yaml:"bufferLow"`
	BufferHigh float64 `json:"bufferHigh" yaml:"bufferHigh"`

	// Timestep in seconds.
	Timestep int `json:"timestep" yaml:"timestep"`

	// Supply temperature required for domestic hot water in degrees
	// Celsius. Heat pumps whose maximum flow temperature is lower cannot
	// serve hot water.
	DHWTemperature float64 `json:"dhwTemperature" yaml:"dhwTemperature"`

	// Maximum number of independent buildings or networks dispatched at
	// the same time.
	Parallelism int `json:"parallelism" yaml:"parallelism"`
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: storage buffer thresholds
			if s.BufferLow == 0 {
				s.BufferLow = 0.1
				migrated = true
			}
			if s.BufferHigh == 0 {
				s.BufferHigh = 0.98
				migrated = true
			}
		case 2:
			// version 2: configurable timestep
			if s.Timestep == 0 {
				s.Timestep = 3600
				migrated = true
			}
		case 3:
			// version 3: hot water temperature for heat pump eligibility
			if s.DHWTemperature == 0 {
				s.DHWTemperature = 60
				migrated = true
			}
		case 4:
			// version 4: parallel dispatch
			if s.Parallelism == 0 {
				s.Parallelism = 4
				migrated = true
			}
		default:
			return s, migrated, fmt.Errorf("unknown settings version: %d", version)
		}
	}
	return s, migrated, nil
}

// DefaultSettings returns the zero settings migrated to the current version.
func DefaultSettings() Settings {
	s, _, _ := MigrateSettings(Settings{}, 0)
	return s
}

// SettingsOverride holds the settings a scenario sets explicitly. Nil
// fields keep the base value, so an explicit zero such as bufferLow: 0 is
// kept.
type SettingsOverride struct {
	BufferLow      *float64 `json:"bufferLow,omitempty" yaml:"bufferLow,omitempty"`
	BufferHigh     *float64 `json:"bufferHigh,omitempty" yaml:"bufferHigh,omitempty"`
	Timestep       *int     `json:"timestep,omitempty" yaml:"timestep,omitempty"`
	DHWTemperature *float64 `json:"dhwTemperature,omitempty" yaml:"dhwTemperature,omitempty"`
	Parallelism    *int     `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`
}

// Merge returns s with every field set in o applied on top.
func (s Settings) Merge(o SettingsOverride) Settings {
	if o.BufferLow != nil {
		s.BufferLow = *o.BufferLow
	}
	if o.BufferHigh != nil {
		s.BufferHigh = *o.BufferHigh
	}
	if o.Timestep != nil {
		s.Timestep = *o.Timestep
	}
	if o.DHWTemperature != nil {
		s.DHWTemperature = *o.DHWTemperature
	}
	if o.Parallelism != nil {
		s.Parallelism = *o.Parallelism
	}
	return s
}

// Validate checks the settings are usable for a run.
func (s Settings) Validate() error {
	if s.BufferLow < 0 || s.BufferHigh > 1 {
		return fmt.Errorf("buffer thresholds must be within [0,1]")
	}
	if s.BufferLow >= s.BufferHigh {
		return fmt.Errorf("bufferLow (%f) must be below bufferHigh (%f)", s.BufferLow, s.BufferHigh)
	}
	if _, err := NewTimer(s.Timestep); err != nil {
		return err
	}
	if s.DHWTemperature <= 0 {
		return fmt.Errorf("dhwTemperature must be positive")
	}
	if s.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1")
	}
	return nil
}
