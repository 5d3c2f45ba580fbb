package device

import (
	"github.com/raterudder/citysim/pkg/types"
)

// Boiler is a fuel fired boiler with constant thermal efficiency.
type Boiler struct {
	supply
	eta  float64
	fuel types.TimeSeries
}

// NewBoiler returns a boiler with nominal output qNominal (W), efficiency
// eta and lower activation limit lal.
func NewBoiler(timer types.Timer, qNominal, eta, lal float64) *Boiler {
	return &Boiler{
		supply: newSupply(types.DeviceBoiler, timer, qNominal, lal),
		eta:    eta,
		fuel:   types.NewTimeSeries(timer),
	}
}

// Commit records the output and the fuel it burned.
func (b *Boiler) Commit(t int, a Allocation) error {
	q, err := b.record(t, a)
	if err != nil {
		return err
	}
	b.fuel[t] = b.Consumption(t, q)
	return nil
}

func (b *Boiler) Consumption(_ int, q float64) float64 {
	return q / b.eta
}

// FuelInput is the fuel power in W per timestep.
func (b *Boiler) FuelInput() types.TimeSeries {
	return b.fuel
}

// ElectricHeater converts electricity to heat with a constant efficiency.
type ElectricHeater struct {
	supply
	eta      float64
	electric types.TimeSeries
}

// NewElectricHeater returns an electric heater with nominal output qNominal.
func NewElectricHeater(timer types.Timer, qNominal, eta, lal float64) *ElectricHeater {
	return &ElectricHeater{
		supply:   newSupply(types.DeviceElectricHeater, timer, qNominal, lal),
		eta:      eta,
		electric: types.NewTimeSeries(timer),
	}
}

func (h *ElectricHeater) Commit(t int, a Allocation) error {
	q, err := h.record(t, a)
	if err != nil {
		return err
	}
	h.electric[t] = h.Consumption(t, q)
	return nil
}

func (h *ElectricHeater) Consumption(_ int, q float64) float64 {
	return q / h.eta
}

// ElectricInput is the electrical power drawn in W per timestep.
func (h *ElectricHeater) ElectricInput() types.TimeSeries {
	return h.electric
}
