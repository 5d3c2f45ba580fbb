package device

import (
	"fmt"

	"github.com/raterudder/citysim/pkg/types"
)

// tolerance absorbs floating point noise when checking device bounds, in W
// for powers and K for temperatures.
const tolerance = 1e-6

// Allocation splits the thermal output of a supply device in one timestep
// by what it served.
type Allocation struct {
	SpaceHeating float64 `json:"spaceHeating"`
	DHW          float64 `json:"dhw"`
	Network      float64 `json:"network"`
	Charge       float64 `json:"charge"`
}

// Total returns the full thermal output.
func (a Allocation) Total() float64 {
	return a.SpaceHeating + a.DHW + a.Network + a.Charge
}

// ThermalDevice is a heat supply device that the dispatcher can run at a
// part load between its lower activation limit and nominal output.
type ThermalDevice interface {
	Kind() types.DeviceKind
	// MaxOutput is the nominal thermal output in W.
	MaxOutput() float64
	// LowerActivationLimit is the minimum part load as a fraction of
	// MaxOutput. Below it the device stays off.
	LowerActivationLimit() float64
	SetLowerActivationLimit(float64)
	// Output returns the thermal output the device would deliver for the
	// requested control value at timestep t without recording anything.
	Output(t int, control float64) float64
	// Consumption is the fuel or electrical input power needed to deliver
	// thermal output q at timestep t.
	Consumption(t int, q float64) float64
	// Commit records the output for timestep t. Each timestep may only be
	// committed once.
	Commit(t int, a Allocation) error
	ThermalOutput() types.TimeSeries
}

var (
	_ ThermalDevice = (*Boiler)(nil)
	_ ThermalDevice = (*ElectricHeater)(nil)
	_ ThermalDevice = (*CHP)(nil)
	_ ThermalDevice = (*HeatPump)(nil)
)

// supply holds the state shared by every thermal supply device.
type supply struct {
	kind     types.DeviceKind
	qNominal float64
	lal      float64
	thermal  types.TimeSeries
	written  []bool
}

func newSupply(kind types.DeviceKind, timer types.Timer, qNominal, lal float64) supply {
	return supply{
		kind:     kind,
		qNominal: qNominal,
		lal:      lal,
		thermal:  types.NewTimeSeries(timer),
		written:  make([]bool, timer.Steps()),
	}
}

func (s *supply) Kind() types.DeviceKind {
	return s.kind
}

func (s *supply) MaxOutput() float64 {
	return s.qNominal
}

func (s *supply) LowerActivationLimit() float64 {
	return s.lal
}

func (s *supply) SetLowerActivationLimit(lal float64) {
	s.lal = lal
}

func (s *supply) ThermalOutput() types.TimeSeries {
	return s.thermal
}

// Output applies the part load rule: full output when the request reaches
// the nominal output, off when it is below the lower activation limit,
// otherwise exactly the request.
func (s *supply) Output(_ int, control float64) float64 {
	switch {
	case control <= 0:
		return 0
	case control >= s.qNominal:
		return s.qNominal
	case control < s.lal*s.qNominal:
		return 0
	}
	return control
}

func (s *supply) precondition(t int, format string, args ...any) error {
	return &types.PreconditionError{
		Device:   s.kind,
		Timestep: t,
		Message:  fmt.Sprintf(format, args...),
	}
}

// record validates and stores the thermal output for t.
func (s *supply) record(t int, a Allocation) (float64, error) {
	if t < 0 || t >= len(s.thermal) {
		return 0, s.precondition(t, "timestep out of range")
	}
	if s.written[t] {
		return 0, s.precondition(t, "timestep already committed")
	}
	if a.SpaceHeating < 0 || a.DHW < 0 || a.Network < 0 || a.Charge < 0 {
		return 0, s.precondition(t, "negative allocation %+v", a)
	}
	q := a.Total()
	if q > s.qNominal+tolerance {
		return 0, s.precondition(t, "output %.3f W exceeds nominal %.3f W", q, s.qNominal)
	}
	if q > 0 && q < s.lal*s.qNominal-tolerance {
		return 0, s.precondition(t, "output %.3f W below lower activation limit %.3f W", q, s.lal*s.qNominal)
	}
	q = min(q, s.qNominal)
	s.thermal[t] = q
	s.written[t] = true
	return q, nil
}
