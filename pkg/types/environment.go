package types

import (
	"fmt"
	"math"
)

// Environment is the resolved weather shared by all buildings of a run.
type Environment struct {
	Timer Timer
	// OutdoorTemperature in degrees Celsius.
	OutdoorTemperature []float64
	// SolarRadiation in W/m2.
	SolarRadiation []float64
}

// Validate checks both series cover the year.
func (e Environment) Validate() error {
	steps := e.Timer.Steps()
	if len(e.OutdoorTemperature) != steps {
		return fmt.Errorf("outdoor temperature has %d values, expected %d", len(e.OutdoorTemperature), steps)
	}
	if len(e.SolarRadiation) != steps {
		return fmt.Errorf("solar radiation has %d values, expected %d", len(e.SolarRadiation), steps)
	}
	for i, v := range e.OutdoorTemperature {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("outdoor temperature is not finite at step %d", i)
		}
	}
	return TimeSeries(e.SolarRadiation).Validate(e.Timer, "solar radiation")
}
