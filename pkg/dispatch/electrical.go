package dispatch

import (
	"github.com/raterudder/citysim/pkg/types"
)

// ElectricalResults splits the electrical balance of a building per
// timestep. All values are in W.
type ElectricalResults struct {
	// PVSelf is PV output consumed on site, including battery charging.
	PVSelf   types.TimeSeries
	PVFeedIn types.TimeSeries
	// CHPSelf is CHP output consumed on site, including battery charging.
	CHPSelf   types.TimeSeries
	CHPFeedIn types.TimeSeries

	// Grid import split by consumer.
	GridImport   types.TimeSeries
	GridImportHP types.TimeSeries
	GridImportEH types.TimeSeries

	BatteryChargePV  types.TimeSeries
	BatteryChargeCHP types.TimeSeries
	BatteryDischarge types.TimeSeries
}

func newElectricalResults(timer types.Timer) *ElectricalResults {
	return &ElectricalResults{
		PVSelf:           types.NewTimeSeries(timer),
		PVFeedIn:         types.NewTimeSeries(timer),
		CHPSelf:          types.NewTimeSeries(timer),
		CHPFeedIn:        types.NewTimeSeries(timer),
		GridImport:       types.NewTimeSeries(timer),
		GridImportHP:     types.NewTimeSeries(timer),
		GridImportEH:     types.NewTimeSeries(timer),
		BatteryChargePV:  types.NewTimeSeries(timer),
		BatteryChargeCHP: types.NewTimeSeries(timer),
		BatteryDischarge: types.NewTimeSeries(timer),
	}
}

// GridImportTotal is the import summed over all consumers at t.
func (r *ElectricalResults) GridImportTotal(t int) float64 {
	return r.GridImport[t] + r.GridImportHP[t] + r.GridImportEH[t]
}

// BatteryCharge is the total battery charging at t.
func (r *ElectricalResults) BatteryCharge(t int) float64 {
	return r.BatteryChargePV[t] + r.BatteryChargeCHP[t]
}

// electricalDemand is the remaining electrical demand in one timestep.
type electricalDemand struct {
	building float64
	heatPump float64
	heater   float64
}

func (e *electricalDemand) total() float64 {
	return e.building + e.heatPump + e.heater
}

// take covers the building, then the heat pump, then the electric heater
// with p and returns the amount used.
func (e *electricalDemand) take(p float64) float64 {
	used := 0.0
	for _, v := range []*float64{&e.building, &e.heatPump, &e.heater} {
		x := min(p-used, *v)
		*v -= x
		used += x
	}
	return used
}

// dispatchElectrical balances timestep t. Sources are used in the order
// PV, CHP, battery, grid. Surplus charges the battery before it is fed in.
// It only fails if the battery rejects the committed power.
func (b *Building) dispatchElectrical(t int) error {
	r := b.electrical
	e := electricalDemand{building: b.electric[t]}
	if hp := b.devices.HeatPump; hp != nil {
		e.heatPump = hp.ElectricInput()[t]
	}
	if h := b.devices.Heater; h != nil {
		e.heater = h.ElectricInput()[t]
	}

	var pv, chp float64
	if b.devices.PV != nil {
		pv = b.devices.PV.Output()[t]
	}
	if b.devices.CHP != nil {
		chp = b.devices.CHP.ElectricOutput()[t]
	}
	pvUsed := e.take(pv)
	chpUsed := e.take(chp)
	pvSurplus := pv - pvUsed
	chpSurplus := chp - chpUsed

	if bat := b.devices.Battery; bat != nil {
		var pIn, pOut float64
		if e.total() > 0 {
			pOut = min(e.total(), bat.MaxDischarge())
			e.take(pOut)
		} else if surplus := pvSurplus + chpSurplus; surplus > 0 {
			pIn = min(surplus, bat.MaxCharge())
			fromPV := min(pIn, pvSurplus)
			fromCHP := pIn - fromPV
			pvSurplus -= fromPV
			chpSurplus -= fromCHP
			pvUsed += fromPV
			chpUsed += fromCHP
			r.BatteryChargePV[t] = fromPV
			r.BatteryChargeCHP[t] = fromCHP
		}
		if err := bat.Commit(t, pIn, pOut); err != nil {
			return b.deviceError(err)
		}
		r.BatteryDischarge[t] = pOut
	}

	r.PVSelf[t] = pvUsed
	r.PVFeedIn[t] = pvSurplus
	r.CHPSelf[t] = chpUsed
	r.CHPFeedIn[t] = chpSurplus
	r.GridImport[t] = e.building
	r.GridImportHP[t] = e.heatPump
	r.GridImportEH[t] = e.heater
	return nil
}
