package device

import (
	"fmt"
	"math"

	"github.com/raterudder/citysim/pkg/types"
)

// ThermalStorage is a fully mixed hot water tank. Its state is a single
// temperature bounded by tMin and tMax; standby losses go to the
// surrounding air through the cylinder surface.
type ThermalStorage struct {
	mass     float64
	cp       float64
	tMin     float64
	tMax     float64
	tSurr    float64
	kLoss    float64
	area     float64
	dt       float64
	current  float64
	temp     types.TimeSeries
	charge   types.TimeSeries
	dischrg  types.TimeSeries
	losses   types.TimeSeries
	written  []bool
	tInitial float64
}

// CylinderArea returns the outer surface of an upright cylinder holding
// mass kg of water at density rho with height to diameter ratio hd.
func CylinderArea(mass, rho, hd float64) float64 {
	v := mass / rho
	d := math.Cbrt(4 * v / (math.Pi * hd))
	h := hd * d
	return math.Pi*d*h + 2*math.Pi*d*d/4
}

// NewThermalStorage builds a storage from its spec.
func NewThermalStorage(timer types.Timer, spec types.DeviceSpec) *ThermalStorage {
	return &ThermalStorage{
		mass:     spec.Mass,
		cp:       spec.SpecificHeat,
		tMin:     spec.TMin,
		tMax:     spec.TMax,
		tSurr:    spec.SurroundingTemperature,
		kLoss:    spec.LossCoefficient,
		area:     CylinderArea(spec.Mass, spec.Density, spec.HeightDiameterRatio),
		dt:       timer.Seconds(),
		current:  spec.TInit,
		tInitial: spec.TInit,
		temp:     types.NewTimeSeries(timer),
		charge:   types.NewTimeSeries(timer),
		dischrg:  types.NewTimeSeries(timer),
		losses:   types.NewTimeSeries(timer),
		written:  make([]bool, timer.Steps()),
	}
}

// Temperature is the current storage temperature.
func (s *ThermalStorage) Temperature() float64 {
	return s.current
}

// InitialTemperature is the temperature before the first timestep.
func (s *ThermalStorage) InitialTemperature() float64 {
	return s.tInitial
}

// SOC is the state of charge in [0,1] relative to the usable band.
func (s *ThermalStorage) SOC() float64 {
	return (s.current - s.tMin) / (s.tMax - s.tMin)
}

// Loss is the standby loss in W at the current temperature.
func (s *ThermalStorage) Loss() float64 {
	return s.kLoss * s.area * (s.current - s.tSurr)
}

// capacity is the heat capacity in J/K.
func (s *ThermalStorage) capacity() float64 {
	return s.mass * s.cp
}

// MaxCharge is the largest input power that keeps the temperature at or
// below tMax given qOut is drawn in the same timestep.
func (s *ThermalStorage) MaxCharge(qOut float64) float64 {
	return max(0, s.capacity()*(s.tMax-s.current)/s.dt+s.Loss()+qOut)
}

// MaxDischarge is the largest output power that keeps the temperature at
// or above tMin given qIn is charged in the same timestep.
func (s *ThermalStorage) MaxDischarge(qIn float64) float64 {
	return max(0, s.capacity()*(s.current-s.tMin)/s.dt-s.Loss()+qIn)
}

// MinCharge is the input power needed to hold the temperature at tMin
// against standby losses while qOut is drawn.
func (s *ThermalStorage) MinCharge(qOut float64) float64 {
	return max(0, s.Loss()+qOut-s.capacity()*(s.current-s.tMin)/s.dt)
}

func (s *ThermalStorage) precondition(t int, format string, args ...any) error {
	return &types.PreconditionError{
		Device:   types.DeviceThermalStorage,
		Timestep: t,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Transition advances the storage by one timestep with qIn charged and
// qOut discharged. It never clamps: if the resulting temperature would
// leave [tMin, tMax] it returns a PreconditionError and leaves the state
// unchanged.
func (s *ThermalStorage) Transition(t int, qIn, qOut float64) error {
	if t < 0 || t >= len(s.temp) {
		return s.precondition(t, "timestep out of range")
	}
	if s.written[t] {
		return s.precondition(t, "timestep already committed")
	}
	if qIn < 0 || qOut < 0 {
		return s.precondition(t, "negative flows (in=%.3f, out=%.3f)", qIn, qOut)
	}
	slack := tolerance * s.capacity() / s.dt
	if limit := s.MaxCharge(qOut); qIn > limit+slack {
		return s.precondition(t, "charge %.3f W exceeds maximum charge %.3f W", qIn, limit)
	}
	if limit := s.MaxDischarge(qIn); qOut > limit+slack {
		return s.precondition(t, "discharge %.3f W exceeds maximum discharge %.3f W", qOut, limit)
	}
	loss := s.Loss()
	next := s.current + (qIn-qOut-loss)*s.dt/s.capacity()
	switch {
	case next > s.tMax+tolerance:
		return s.precondition(t, "temperature %.4f C would exceed maximum %.4f C", next, s.tMax)
	case next < s.tMin-tolerance:
		return s.precondition(t, "temperature %.4f C would fall below minimum %.4f C", next, s.tMin)
	}
	// snap floating point noise onto the bounds
	next = max(s.tMin, min(s.tMax, next))

	s.current = next
	s.temp[t] = next
	s.charge[t] = qIn
	s.dischrg[t] = qOut
	s.losses[t] = loss
	s.written[t] = true
	return nil
}

// TemperatureSeries is the temperature at the end of each timestep.
func (s *ThermalStorage) TemperatureSeries() types.TimeSeries {
	return s.temp
}

// Charge is the input power per timestep.
func (s *ThermalStorage) Charge() types.TimeSeries {
	return s.charge
}

// Discharge is the output power per timestep.
func (s *ThermalStorage) Discharge() types.TimeSeries {
	return s.dischrg
}

// Losses is the standby loss per timestep.
func (s *ThermalStorage) Losses() types.TimeSeries {
	return s.losses
}

// Bounds returns the usable temperature band.
func (s *ThermalStorage) Bounds() (float64, float64) {
	return s.tMin, s.tMax
}
