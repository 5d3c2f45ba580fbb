package scenario

import (
	"github.com/raterudder/citysim/pkg/types"
)

// Demo returns a small district: an energy centre with a CHP feeding a row
// of houses over a heating network, and a detached heat pump home.
func Demo() types.Scenario {
	return types.Scenario{
		Name: "demo",
		Buildings: []types.BuildingSpec{
			{
				ID:           "energy-centre",
				SpaceHeating: types.DemandSpec{Profile: types.ProfileHeatingDays, AnnualKWH: 35000},
				DHW:          types.DemandSpec{Profile: types.ProfileResidential, AnnualKWH: 5000},
				Electric:     types.DemandSpec{Profile: types.ProfileResidential, AnnualKWH: 8000},
				Devices: []types.DeviceSpec{
					{Kind: types.DeviceCHP, QNominal: 20000, PNominal: 10000, LowerActivationLimit: 0.5},
					{Kind: types.DeviceBoiler, QNominal: 50000, Eta: 0.92},
					{
						Kind:                   types.DeviceThermalStorage,
						Mass:                   3000,
						TInit:                  60,
						TMin:                   45,
						TMax:                   85,
						SurroundingTemperature: 15,
					},
					{Kind: types.DevicePV, Area: 30},
					{Kind: types.DeviceBattery, CapacityKWH: 10, SOCInit: 0.5, MaxChargePower: 5000, MaxDischargePower: 5000},
				},
			},
			{
				ID:           "terrace",
				SpaceHeating: types.DemandSpec{Profile: types.ProfileHeatingDays, AnnualKWH: 60000},
				DHW:          types.DemandSpec{Profile: types.ProfileResidential, AnnualKWH: 8000},
				Electric:     types.DemandSpec{Profile: types.ProfileResidential, AnnualKWH: 12000},
				Devices: []types.DeviceSpec{
					{Kind: types.DevicePV, Area: 40},
				},
			},
			{
				ID:           "heat-pump-home",
				SpaceHeating: types.DemandSpec{Profile: types.ProfileHeatingDays, AnnualKWH: 9000},
				DHW:          types.DemandSpec{Profile: types.ProfileResidential, AnnualKWH: 2000},
				Electric:     types.DemandSpec{Profile: types.ProfileResidential, AnnualKWH: 3500},
				Devices: []types.DeviceSpec{
					{Kind: types.DeviceHeatPump, QNominal: 8000, LowerActivationLimit: 0.3},
					{Kind: types.DeviceElectricHeater, QNominal: 3000},
					{
						Kind:                   types.DeviceThermalStorage,
						Mass:                   400,
						TInit:                  45,
						TMin:                   25,
						TMax:                   55,
						SurroundingTemperature: 18,
					},
					{Kind: types.DevicePV, Area: 20},
					{Kind: types.DeviceBattery, CapacityKWH: 5, SOCInit: 0.2, MaxChargePower: 2500, MaxDischargePower: 2500},
				},
			},
		},
		Networks: []types.NetworkSpec{
			{
				ID:           "terrace-lhn",
				Kind:         types.NetworkHeating,
				Feeders:      []string{"energy-centre"},
				Consumers:    []string{"terrace"},
				LossFraction: 0.05,
			},
		},
	}
}
