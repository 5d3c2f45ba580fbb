package types

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// SecondsPerYear is the simulated horizon. Leap days are not modelled.
const SecondsPerYear = 365 * 24 * 3600

// Timer describes the fixed simulation clock shared by every building in a
// run.
type Timer struct {
	// Timestep is the length of one step in seconds.
	Timestep int `json:"timestep"`
}

// NewTimer validates the timestep and returns a Timer for it.
func NewTimer(timestep int) (Timer, error) {
	if timestep <= 0 {
		return Timer{}, fmt.Errorf("timestep must be positive, got %d", timestep)
	}
	if SecondsPerYear%timestep != 0 {
		return Timer{}, fmt.Errorf("timestep %d does not evenly divide a year", timestep)
	}
	return Timer{Timestep: timestep}, nil
}

// Steps returns the number of steps in the simulated year.
func (t Timer) Steps() int {
	return SecondsPerYear / t.Timestep
}

// Seconds returns the timestep as a float for energy conversions.
func (t Timer) Seconds() float64 {
	return float64(t.Timestep)
}

// HourOfDay returns the hour (0-23) that step i falls in.
func (t Timer) HourOfDay(i int) int {
	return (i * t.Timestep / 3600) % 24
}

// DayOfYear returns the zero-based day that step i falls in.
func (t Timer) DayOfYear(i int) int {
	return i * t.Timestep / 86400
}

// TimeSeries is a power series in W with one value per timestep.
type TimeSeries []float64

// NewTimeSeries returns a zeroed series covering the whole year.
func NewTimeSeries(t Timer) TimeSeries {
	return make(TimeSeries, t.Steps())
}

// ConstantSeries returns a series with v at every step.
func ConstantSeries(t Timer, v float64) TimeSeries {
	ts := NewTimeSeries(t)
	for i := range ts {
		ts[i] = v
	}
	return ts
}

// Validate checks that the series covers the year and holds finite
// non-negative values. name is used in the returned error.
func (ts TimeSeries) Validate(t Timer, name string) error {
	if len(ts) != t.Steps() {
		return fmt.Errorf("%s has %d values, expected %d", name, len(ts), t.Steps())
	}
	for i, v := range ts {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite at step %d", name, i)
		}
		if v < 0 {
			return fmt.Errorf("%s is negative at step %d: %f", name, i, v)
		}
	}
	return nil
}

// EnergyKWH integrates the series over the year.
func (ts TimeSeries) EnergyKWH(t Timer) float64 {
	if len(ts) == 0 {
		return 0
	}
	return floats.Sum(ts) * t.Seconds() / 3.6e6
}

// Max returns the largest value, or 0 for an empty series.
func (ts TimeSeries) Max() float64 {
	if len(ts) == 0 {
		return 0
	}
	return floats.Max(ts)
}

// Add returns the element-wise sum of the given series. All series must
// have the same length.
func Add(series ...TimeSeries) TimeSeries {
	if len(series) == 0 {
		return nil
	}
	out := make(TimeSeries, len(series[0]))
	for _, s := range series {
		floats.Add(out, s)
	}
	return out
}

// Scale returns a copy of ts multiplied by f.
func (ts TimeSeries) Scale(f float64) TimeSeries {
	out := make(TimeSeries, len(ts))
	floats.ScaleTo(out, f, ts)
	return out
}
