package device

import (
	"github.com/raterudder/citysim/pkg/types"
)

const kelvin = 273.15

// HeatPump is an air source heat pump whose coefficient of performance
// follows a fraction of the Carnot efficiency between the outdoor air and
// the required sink temperature.
type HeatPump struct {
	supply
	grade       float64
	flowTemp    float64
	maxFlowTemp float64
	maxCOP      float64
	dhwTemp     float64
	outdoor     []float64
	electric    types.TimeSeries
	dhwCapable  bool
}

// NewHeatPump returns a heat pump drawing heat from the outdoor
// temperature series. dhwTemp is the temperature required for hot water;
// if maxFlowTemp is below it the heat pump cannot serve hot water.
func NewHeatPump(timer types.Timer, spec types.DeviceSpec, outdoor []float64, dhwTemp float64) *HeatPump {
	return &HeatPump{
		supply:      newSupply(types.DeviceHeatPump, timer, spec.QNominal, spec.LowerActivationLimit),
		grade:       spec.QualityGrade,
		flowTemp:    spec.FlowTemperature,
		maxFlowTemp: spec.MaxFlowTemperature,
		maxCOP:      spec.MaxCOP,
		dhwTemp:     dhwTemp,
		outdoor:     outdoor,
		electric:    types.NewTimeSeries(timer),
		dhwCapable:  spec.MaxFlowTemperature >= dhwTemp,
	}
}

// ServesDHW reports whether the heat pump reaches the hot water temperature.
func (h *HeatPump) ServesDHW() bool {
	return h.dhwCapable
}

// COP returns the coefficient of performance at timestep t for the given
// sink temperature, bounded to [1, maxCOP].
func (h *HeatPump) COP(t int, sink float64) float64 {
	lift := sink - h.outdoor[t]
	if lift <= 0 {
		return h.maxCOP
	}
	cop := h.grade * (sink + kelvin) / lift
	return max(1, min(h.maxCOP, cop))
}

// Commit records the output. Hot water is produced at the hot water
// temperature, everything else at the flow temperature.
func (h *HeatPump) Commit(t int, a Allocation) error {
	if a.DHW > 0 && !h.dhwCapable {
		return h.precondition(t, "cannot serve hot water at %.1f C with max flow temperature %.1f C", h.dhwTemp, h.maxFlowTemp)
	}
	if _, err := h.record(t, a); err != nil {
		return err
	}
	low := a.SpaceHeating + a.Network + a.Charge
	h.electric[t] = h.Consumption(t, low) + a.DHW/h.COP(t, h.dhwTemp)
	return nil
}

// Consumption is the electrical input for thermal output q at the flow
// temperature.
func (h *HeatPump) Consumption(t int, q float64) float64 {
	return q / h.COP(t, h.flowTemp)
}

// ElectricInput is the electrical power drawn in W per timestep.
func (h *HeatPump) ElectricInput() types.TimeSeries {
	return h.electric
}
