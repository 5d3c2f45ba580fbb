package dispatch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/raterudder/citysim/pkg/types"
)

type column struct {
	name   string
	series types.TimeSeries
}

func (b *Building) columns() []column {
	d := b.devices
	r := b.electrical
	cols := []column{
		{"space_heating_w", b.spaceHeating},
		{"dhw_w", b.dhw},
		{"electric_w", b.electric},
		{"network_served_w", b.networkServed},
	}
	if d.Boiler != nil {
		cols = append(cols, column{"boiler_th_w", d.Boiler.ThermalOutput()}, column{"boiler_fuel_w", d.Boiler.FuelInput()})
	}
	if d.CHP != nil {
		cols = append(cols,
			column{"chp_th_w", d.CHP.ThermalOutput()},
			column{"chp_el_w", d.CHP.ElectricOutput()},
			column{"chp_fuel_w", d.CHP.FuelInput()},
		)
	}
	if d.HeatPump != nil {
		cols = append(cols, column{"hp_th_w", d.HeatPump.ThermalOutput()}, column{"hp_el_w", d.HeatPump.ElectricInput()})
	}
	if d.Heater != nil {
		cols = append(cols, column{"eh_th_w", d.Heater.ThermalOutput()}, column{"eh_el_w", d.Heater.ElectricInput()})
	}
	if tes := d.Storage; tes != nil {
		cols = append(cols,
			column{"tes_temperature_c", tes.TemperatureSeries()},
			column{"tes_charge_w", tes.Charge()},
			column{"tes_discharge_w", tes.Discharge()},
		)
	}
	if d.PV != nil {
		cols = append(cols, column{"pv_w", d.PV.Output()})
	}
	if bat := d.Battery; bat != nil {
		cols = append(cols,
			column{"battery_soc", bat.SOCSeries()},
			column{"battery_charge_w", bat.ChargePower()},
			column{"battery_discharge_w", bat.DischargePower()},
		)
	}
	return append(cols,
		column{"pv_self_w", r.PVSelf},
		column{"pv_feed_in_w", r.PVFeedIn},
		column{"chp_self_w", r.CHPSelf},
		column{"chp_feed_in_w", r.CHPFeedIn},
		column{"grid_import_w", r.GridImport},
		column{"grid_import_hp_w", r.GridImportHP},
		column{"grid_import_eh_w", r.GridImportEH},
	)
}

// WriteCSV writes one row per timestep with every result series of the
// building.
func (b *Building) WriteCSV(w io.Writer) error {
	cols := b.columns()
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(cols)+1)
	header = append(header, "timestep")
	for _, c := range cols {
		header = append(header, c.name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, len(cols)+1)
	for t := 0; t < b.timer.Steps(); t++ {
		row[0] = strconv.Itoa(t)
		for i, c := range cols {
			row[i+1] = strconv.FormatFloat(c.series[t], 'f', 3, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", t, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
