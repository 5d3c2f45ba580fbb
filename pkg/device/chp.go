package device

import (
	"math"

	"github.com/raterudder/citysim/pkg/types"
)

// CHP is a combined heat and power unit. Its electrical output follows the
// thermal output at a constant power to heat ratio.
type CHP struct {
	supply
	pNominal float64
	etaTotal float64
	electric types.TimeSeries
	fuel     types.TimeSeries
}

// PowerToHeatRatio estimates the power to heat ratio of a gas engine CHP
// from its nominal thermal output. Larger units reach higher electrical
// efficiencies.
func PowerToHeatRatio(qNominal float64) float64 {
	kw := qNominal / 1000
	return min(0.9, 0.3+0.08*math.Log1p(kw))
}

// NewCHP returns a CHP unit. When pNominal is zero it is derived from
// qNominal with PowerToHeatRatio.
func NewCHP(timer types.Timer, qNominal, pNominal, etaTotal, lal float64) *CHP {
	if pNominal == 0 {
		pNominal = qNominal * PowerToHeatRatio(qNominal)
	}
	return &CHP{
		supply:   newSupply(types.DeviceCHP, timer, qNominal, lal),
		pNominal: pNominal,
		etaTotal: etaTotal,
		electric: types.NewTimeSeries(timer),
		fuel:     types.NewTimeSeries(timer),
	}
}

// PNominal is the electrical output at nominal thermal output.
func (c *CHP) PNominal() float64 {
	return c.pNominal
}

// Sigma is the power to heat ratio in use.
func (c *CHP) Sigma() float64 {
	return c.pNominal / c.qNominal
}

func (c *CHP) Commit(t int, a Allocation) error {
	q, err := c.record(t, a)
	if err != nil {
		return err
	}
	c.electric[t] = q * c.Sigma()
	c.fuel[t] = c.Consumption(t, q)
	return nil
}

// Consumption is the fuel input for thermal output q.
func (c *CHP) Consumption(_ int, q float64) float64 {
	return (q + q*c.Sigma()) / c.etaTotal
}

// ElectricOutput is the electrical power generated in W per timestep.
func (c *CHP) ElectricOutput() types.TimeSeries {
	return c.electric
}

// FuelInput is the fuel power in W per timestep.
func (c *CHP) FuelInput() types.TimeSeries {
	return c.fuel
}
