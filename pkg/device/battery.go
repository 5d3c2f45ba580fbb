package device

import (
	"fmt"

	"github.com/raterudder/citysim/pkg/types"
)

// Battery is an electrical storage with separate charge and discharge
// efficiencies and a constant relative self discharge per timestep.
type Battery struct {
	capacity  float64 // J
	stored    float64 // J
	etaCh     float64
	etaDch    float64
	selfDis   float64
	pChMax    float64
	pDchMax   float64
	dt        float64
	soc       types.TimeSeries
	charge    types.TimeSeries
	discharge types.TimeSeries
	written   []bool
}

// NewBattery builds a battery from its spec.
func NewBattery(timer types.Timer, spec types.DeviceSpec) *Battery {
	capacity := spec.CapacityKWH * 3.6e6
	return &Battery{
		capacity:  capacity,
		stored:    spec.SOCInit * capacity,
		etaCh:     spec.EtaCharge,
		etaDch:    spec.EtaDischarge,
		selfDis:   spec.SelfDischarge,
		pChMax:    spec.MaxChargePower,
		pDchMax:   spec.MaxDischargePower,
		dt:        timer.Seconds(),
		soc:       types.NewTimeSeries(timer),
		charge:    types.NewTimeSeries(timer),
		discharge: types.NewTimeSeries(timer),
		written:   make([]bool, timer.Steps()),
	}
}

// SOC is the current state of charge in [0,1].
func (b *Battery) SOC() float64 {
	return b.stored / b.capacity
}

func (b *Battery) retained() float64 {
	return b.stored * (1 - b.selfDis)
}

// MaxCharge is the largest charging power in W for the next timestep.
func (b *Battery) MaxCharge() float64 {
	return max(0, min(b.pChMax, (b.capacity-b.retained())/(b.etaCh*b.dt)))
}

// MaxDischarge is the largest discharging power in W for the next
// timestep, measured at the terminals.
func (b *Battery) MaxDischarge() float64 {
	return max(0, min(b.pDchMax, b.retained()*b.etaDch/b.dt))
}

func (b *Battery) precondition(t int, format string, args ...any) error {
	return &types.PreconditionError{
		Device:   types.DeviceBattery,
		Timestep: t,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Commit applies one timestep of charging pIn or discharging pOut. Only one
// of them may be non-zero and each timestep may only be committed once.
func (b *Battery) Commit(t int, pIn, pOut float64) error {
	if t < 0 || t >= len(b.soc) {
		return b.precondition(t, "timestep out of range")
	}
	if b.written[t] {
		return b.precondition(t, "timestep already committed")
	}
	switch {
	case pIn < 0 || pOut < 0:
		return b.precondition(t, "negative power (in=%.3f, out=%.3f)", pIn, pOut)
	case pIn > 0 && pOut > 0:
		return b.precondition(t, "cannot charge and discharge in the same timestep")
	case pIn > b.MaxCharge()+tolerance:
		return b.precondition(t, "charge %.3f W exceeds limit %.3f W", pIn, b.MaxCharge())
	case pOut > b.MaxDischarge()+tolerance:
		return b.precondition(t, "discharge %.3f W exceeds limit %.3f W", pOut, b.MaxDischarge())
	}
	next := b.retained() + (pIn*b.etaCh-pOut/b.etaDch)*b.dt
	b.stored = max(0, min(b.capacity, next))
	b.soc[t] = b.SOC()
	b.charge[t] = pIn
	b.discharge[t] = pOut
	b.written[t] = true
	return nil
}

// SOCSeries is the state of charge at the end of each timestep.
func (b *Battery) SOCSeries() types.TimeSeries {
	return b.soc
}

// ChargePower is the charging power per timestep.
func (b *Battery) ChargePower() types.TimeSeries {
	return b.charge
}

// DischargePower is the discharging power per timestep.
func (b *Battery) DischargePower() types.TimeSeries {
	return b.discharge
}
