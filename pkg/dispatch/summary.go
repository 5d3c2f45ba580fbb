package dispatch

import (
	"github.com/raterudder/citysim/pkg/types"
	"gonum.org/v1/gonum/floats"
)

// Summary returns the annual totals of the building.
func (b *Building) Summary() types.BuildingSummary {
	timer := b.timer
	kwh := func(ts types.TimeSeries) float64 {
		return ts.EnergyKWH(timer)
	}
	s := types.BuildingSummary{
		ID:            b.id,
		Configuration: b.config.String(),
		ElectricKWH:   kwh(b.electric),
	}
	if !b.fromNetwork {
		s.SpaceHeatingKWH = kwh(b.spaceHeating)
		s.DHWKWH = kwh(b.dhw)
		s.PeakThermalDemandW = types.Add(b.spaceHeating, b.dhw).Max()
	}
	s.NetworkKWH = kwh(b.networkServed)

	d := b.devices
	if d.Boiler != nil {
		s.BoilerThermalKWH = kwh(d.Boiler.ThermalOutput())
		s.BoilerFuelKWH = kwh(d.Boiler.FuelInput())
	}
	if d.CHP != nil {
		s.CHPThermalKWH = kwh(d.CHP.ThermalOutput())
		s.CHPElectricKWH = kwh(d.CHP.ElectricOutput())
		s.CHPFuelKWH = kwh(d.CHP.FuelInput())
	}
	if d.HeatPump != nil {
		s.HPThermalKWH = kwh(d.HeatPump.ThermalOutput())
		s.HPElectricKWH = kwh(d.HeatPump.ElectricInput())
	}
	if d.Heater != nil {
		s.EHThermalKWH = kwh(d.Heater.ThermalOutput())
		s.EHElectricKWH = kwh(d.Heater.ElectricInput())
	}
	if tes := d.Storage; tes != nil {
		s.TESChargeKWH = kwh(tes.Charge())
		s.TESDischargeKWH = kwh(tes.Discharge())
		temps := tes.TemperatureSeries()
		s.TESMinTemperature = floats.Min(temps)
		s.TESMaxTemperature = floats.Max(temps)
		s.TESFinalTemperature = tes.Temperature()
		for _, c := range tes.Charge() {
			if c > 0 {
				s.StepsStorageCharging++
			}
		}
	}
	if bat := d.Battery; bat != nil {
		s.BatteryChargeKWH = kwh(bat.ChargePower())
		s.BatteryDischargeKWH = kwh(bat.DischargePower())
		s.BatteryFinalSOC = bat.SOC()
	}
	if d.PV != nil {
		s.PVKWH = kwh(d.PV.Output())
	}

	r := b.electrical
	s.PVSelfKWH = kwh(r.PVSelf)
	s.PVFeedInKWH = kwh(r.PVFeedIn)
	s.CHPSelfKWH = kwh(r.CHPSelf)
	s.CHPFeedInKWH = kwh(r.CHPFeedIn)
	s.GridImportKWH = kwh(r.GridImport) + kwh(r.GridImportHP) + kwh(r.GridImportEH)
	s.GridImportHPKWH = kwh(r.GridImportHP)
	s.GridImportEHKWH = kwh(r.GridImportEH)
	s.PeakGridImportW = types.Add(r.GridImport, r.GridImportHP, r.GridImportEH).Max()
	return s
}
