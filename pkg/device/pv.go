package device

import (
	"github.com/raterudder/citysim/pkg/types"
)

// PV is a photovoltaic array with constant module and inverter efficiency.
type PV struct {
	output types.TimeSeries
}

// NewPV computes the AC output of an array for the radiation series.
func NewPV(timer types.Timer, spec types.DeviceSpec, radiation []float64) *PV {
	out := types.NewTimeSeries(timer)
	for i := range out {
		out[i] = max(0, spec.Area*spec.Eta*radiation[i]*spec.InverterEta)
	}
	return &PV{output: out}
}

// Output is the AC power in W per timestep.
func (p *PV) Output() types.TimeSeries {
	return p.output
}
