package scenario

import (
	"fmt"
	"math"

	"github.com/raterudder/citysim/pkg/types"
	"gonum.org/v1/gonum/floats"
)

const (
	// heatingBase is the outdoor temperature above which no space heating
	// is needed, in degrees Celsius.
	heatingBase = 15.0

	meanOutdoor      = 9.0
	seasonalSwing    = 9.0
	dailySwing       = 3.0
	coldestDay       = 15
	sunniestDay      = 172
	defaultPeakSolar = 800.0
)

// residentialShape is the relative electricity or hot water use per hour of
// the day.
var residentialShape = [24]float64{
	0.4, 0.3, 0.3, 0.3, 0.3, 0.5,
	1.0, 1.6, 1.4, 0.9, 0.8, 0.8,
	0.9, 0.8, 0.8, 0.9, 1.1, 1.6,
	2.0, 1.9, 1.6, 1.3, 0.9, 0.6,
}

// hour returns the fractional hour of the day at the middle of step i.
func hour(timer types.Timer, i int) float64 {
	return math.Mod((float64(i)+0.5)*timer.Seconds()/3600, 24)
}

// day returns the fractional day of the year at the middle of step i.
func day(timer types.Timer, i int) float64 {
	return (float64(i) + 0.5) * timer.Seconds() / 86400
}

// Environment resolves the weather of a scenario. Explicit series win, then
// a constant outdoor temperature, then a synthetic year with the coldest day
// in mid January and the afternoon warmer than the night.
func Environment(timer types.Timer, spec types.EnvironmentSpec) (types.Environment, error) {
	steps := timer.Steps()
	env := types.Environment{Timer: timer}

	switch {
	case len(spec.OutdoorTemperature) > 0:
		env.OutdoorTemperature = spec.OutdoorTemperature
	case spec.ConstantOutdoorTemperature != nil:
		env.OutdoorTemperature = types.ConstantSeries(timer, *spec.ConstantOutdoorTemperature)
	default:
		env.OutdoorTemperature = make([]float64, steps)
		for i := range env.OutdoorTemperature {
			season := -seasonalSwing * math.Cos(2*math.Pi*(day(timer, i)-coldestDay)/365)
			daily := dailySwing * math.Sin(2*math.Pi*(hour(timer, i)-9)/24)
			env.OutdoorTemperature[i] = meanOutdoor + season + daily
		}
	}

	if len(spec.SolarRadiation) > 0 {
		env.SolarRadiation = spec.SolarRadiation
	} else {
		peak := spec.PeakSolarRadiation
		if peak == 0 {
			peak = defaultPeakSolar
		}
		env.SolarRadiation = make([]float64, steps)
		for i := range env.SolarRadiation {
			h := hour(timer, i)
			if h < 6 || h > 18 {
				continue
			}
			season := 0.6 + 0.4*math.Cos(2*math.Pi*(day(timer, i)-sunniestDay)/365)
			env.SolarRadiation[i] = peak * season * math.Sin(math.Pi*(h-6)/12)
		}
	}

	if err := env.Validate(); err != nil {
		return types.Environment{}, err
	}
	return env, nil
}

// Demand resolves a demand spec to a power series.
func Demand(env types.Environment, spec types.DemandSpec, name string) (types.TimeSeries, error) {
	timer := env.Timer
	var ts types.TimeSeries
	switch {
	case len(spec.Values) > 0:
		ts = types.TimeSeries(spec.Values)
	case spec.Constant != 0:
		ts = types.ConstantSeries(timer, spec.Constant)
	case spec.Profile != "":
		weights, err := shape(env, spec.Profile)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if spec.AnnualKWH <= 0 {
			return nil, fmt.Errorf("%s: profile %s requires a positive annualKWH", name, spec.Profile)
		}
		total := floats.Sum(weights)
		if total == 0 {
			return nil, fmt.Errorf("%s: profile %s is zero for the whole year", name, spec.Profile)
		}
		// weights become W so that the series integrates to AnnualKWH
		floats.Scale(spec.AnnualKWH*3.6e6/(total*timer.Seconds()), weights)
		ts = weights
	default:
		ts = types.NewTimeSeries(timer)
	}
	if err := ts.Validate(timer, name); err != nil {
		return nil, err
	}
	return ts, nil
}

func shape(env types.Environment, profile types.DemandProfile) ([]float64, error) {
	timer := env.Timer
	w := make([]float64, timer.Steps())
	switch profile {
	case types.ProfileConstant:
		for i := range w {
			w[i] = 1
		}
	case types.ProfileHeatingDays:
		for i, t := range env.OutdoorTemperature {
			w[i] = max(0, heatingBase-t)
		}
	case types.ProfileResidential:
		for i := range w {
			w[i] = residentialShape[int(hour(timer, i))]
		}
	default:
		return nil, fmt.Errorf("unknown demand profile: %q", profile)
	}
	return w, nil
}
