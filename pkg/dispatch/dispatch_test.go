package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/raterudder/citysim/pkg/device"
	"github.com/raterudder/citysim/pkg/log"
	"github.com/raterudder/citysim/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

type segment struct {
	n int
	v float64
}

func hourly(t *testing.T) types.Timer {
	timer, err := types.NewTimer(3600)
	require.NoError(t, err)
	return timer
}

func testEnv(timer types.Timer) types.Environment {
	return types.Environment{
		Timer:              timer,
		OutdoorTemperature: make([]float64, timer.Steps()),
		SolarRadiation:     make([]float64, timer.Steps()),
	}
}

// profile lays the segments out from the first timestep, zero afterwards.
func profile(timer types.Timer, segs ...segment) types.TimeSeries {
	ts := types.NewTimeSeries(timer)
	i := 0
	for _, s := range segs {
		for j := 0; j < s.n; j++ {
			ts[i] = s.v
			i++
		}
	}
	return ts
}

func tank(mass float64) types.DeviceSpec {
	return types.DeviceSpec{
		Kind:                   types.DeviceThermalStorage,
		Mass:                   mass,
		TInit:                  50,
		TMin:                   20,
		TMax:                   60,
		SurroundingTemperature: 20,
	}
}

type buildingInput struct {
	ctx      context.Context
	settings types.Settings
	env      types.Environment
	specs    []types.DeviceSpec
	sh       types.TimeSeries
	dhw      types.TimeSeries
	el       types.TimeSeries
}

func build(t *testing.T, in buildingInput) *Building {
	timer := in.env.Timer
	if in.settings == (types.Settings{}) {
		in.settings = types.DefaultSettings()
	}
	for _, ts := range []*types.TimeSeries{&in.sh, &in.dhw, &in.el} {
		if *ts == nil {
			*ts = types.NewTimeSeries(timer)
		}
	}
	if in.ctx == nil {
		in.ctx = context.Background()
	}
	set, err := device.NewSet(in.env, in.settings.DHWTemperature, in.specs)
	require.NoError(t, err)
	b, err := NewBuilding(in.ctx, BuildingConfig{
		ID:           "b1",
		Settings:     in.settings,
		Timer:        timer,
		Devices:      set,
		SpaceHeating: in.sh,
		DHW:          in.dhw,
		Electric:     in.el,
	})
	require.NoError(t, err)
	return b
}

// assertThermalBalance checks supply plus net storage discharge equals the
// demand served at every timestep.
func assertThermalBalance(t *testing.T, b *Building) {
	t.Helper()
	d := b.Devices()
	sh, dhw := b.ThermalDemand()
	for i := range sh {
		var supply float64
		for _, dev := range d.Supplies() {
			supply += dev.ThermalOutput()[i]
		}
		if d.Storage != nil {
			supply += d.Storage.Discharge()[i] - d.Storage.Charge()[i]
		}
		demand := sh[i] + dhw[i] + b.NetworkServed()[i]
		if !assert.InDelta(t, demand, supply, 1e-6, "thermal balance at timestep %d", i) {
			return
		}
	}
}

func assertElectricalBalance(t *testing.T, b *Building) {
	t.Helper()
	d := b.Devices()
	r := b.Electrical()
	for i := range b.electric {
		demand := b.electric[i]
		if d.HeatPump != nil {
			demand += d.HeatPump.ElectricInput()[i]
		}
		if d.Heater != nil {
			demand += d.Heater.ElectricInput()[i]
		}
		demand += r.BatteryCharge(i)
		supply := r.GridImportTotal(i) + r.PVSelf[i] + r.CHPSelf[i] + r.BatteryDischarge[i]
		if !assert.InDelta(t, demand, supply, 1e-6, "electrical balance at timestep %d", i) {
			return
		}
	}
}

func assertStorageBounds(t *testing.T, tes *device.ThermalStorage) {
	t.Helper()
	lo, hi := tes.Bounds()
	for i, temp := range tes.TemperatureSeries() {
		if !assert.True(t, temp >= lo && temp <= hi, "temperature %f out of bounds at %d", temp, i) {
			return
		}
	}
}

func TestClassifyRegime(t *testing.T) {
	tests := []struct {
		soc  float64
		want types.StorageRegime
	}{
		{0, types.RegimeAllCharge},
		{0.099, types.RegimeAllCharge},
		{0.1, types.RegimeEfficientOnlyCharge},
		{0.5, types.RegimeEfficientOnlyCharge},
		{0.9799, types.RegimeEfficientOnlyCharge},
		{0.98, types.RegimeNoCharge},
		{1, types.RegimeNoCharge},
	}
	for _, tt := range tests {
		got := ClassifyRegime(tt.soc, 0.1, 0.98)
		assert.Equal(t, tt.want, got, "soc %f", tt.soc)
		assert.Equal(t, got, ClassifyRegime(tt.soc, 0.1, 0.98), "classification must be repeatable")
	}
}

func TestDetectConfiguration(t *testing.T) {
	timer := hourly(t)
	env := testEnv(timer)
	boiler := types.DeviceSpec{Kind: types.DeviceBoiler, QNominal: 5000}
	heater := types.DeviceSpec{Kind: types.DeviceElectricHeater, QNominal: 3000}
	chp := types.DeviceSpec{Kind: types.DeviceCHP, QNominal: 3000}
	hp := types.DeviceSpec{Kind: types.DeviceHeatPump, QNominal: 6000}
	pv := types.DeviceSpec{Kind: types.DevicePV, Area: 10}

	tests := []struct {
		name    string
		specs   []types.DeviceSpec
		want    Configuration
		wantErr bool
	}{
		{"CHP With Storage", []types.DeviceSpec{chp, boiler, tank(500)}, ConfigCHPStorage, false},
		{"Heat Pump With Storage", []types.DeviceSpec{hp, heater, tank(500)}, ConfigHeatPumpStorage, false},
		{"Boiler With Storage", []types.DeviceSpec{boiler, tank(500)}, ConfigBoilerStorage, false},
		{"Heater With Storage", []types.DeviceSpec{heater, tank(500)}, ConfigBoilerStorage, false},
		{"Direct", []types.DeviceSpec{boiler, heater}, ConfigDirect, false},
		{"No Thermal Supply", []types.DeviceSpec{pv}, ConfigNone, false},
		{"CHP Without Storage", []types.DeviceSpec{chp, boiler}, 0, true},
		{"Heat Pump Without Storage", []types.DeviceSpec{hp}, 0, true},
		{"CHP And Heat Pump", []types.DeviceSpec{chp, hp, tank(500)}, 0, true},
		{"Heat Pump And Boiler", []types.DeviceSpec{hp, boiler, tank(500)}, 0, true},
		{"Storage Alone", []types.DeviceSpec{tank(500)}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := device.NewSet(env, 60, tt.specs)
			require.NoError(t, err)
			got, err := DetectConfiguration(set)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrUnsupportedConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoilerOnly(t *testing.T) {
	timer := hourly(t)
	b := build(t, buildingInput{
		env:   testEnv(timer),
		specs: []types.DeviceSpec{{Kind: types.DeviceBoiler, QNominal: 3000, Eta: 0.85, LowerActivationLimit: 0.2}},
		sh:    profile(timer, segment{100, 2999.999}),
	})
	assert.Equal(t, ConfigDirect, b.Configuration())
	assert.Equal(t, 0.0, b.Devices().Boiler.LowerActivationLimit(), "activation limit is reset without storage")

	_, err := b.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	boiler := b.Devices().Boiler
	for i := 0; i < 100; i++ {
		assert.InDelta(t, 2999.999, boiler.ThermalOutput()[i], 1e-9)
		assert.InDelta(t, 2999.999/0.85, boiler.FuelInput()[i], 1e-9)
	}
	for i := 100; i < timer.Steps(); i++ {
		require.Equal(t, 0.0, boiler.ThermalOutput()[i])
	}
	assertThermalBalance(t, b)

	s := b.Summary()
	assert.InDelta(t, 299.9999, s.BoilerThermalKWH, 1e-6)
	assert.InDelta(t, 299.9999, s.SpaceHeatingKWH, 1e-6)
	assert.Equal(t, "direct", s.Configuration)
}

func TestBoilerWithStorage(t *testing.T) {
	timer := hourly(t)
	sh := profile(timer,
		segment{100, 2999.999},
		segment{100, 2000},
		segment{10, 4000},
		segment{100, 2000},
		segment{10, 1000},
	)
	run := func(t *testing.T, settings types.Settings) *Building {
		b := build(t, buildingInput{
			settings: settings,
			env:      testEnv(timer),
			specs:    []types.DeviceSpec{{Kind: types.DeviceBoiler, QNominal: 3000, Eta: 0.85}, tank(1000)},
			sh:       sh,
		})
		require.Equal(t, ConfigBoilerStorage, b.Configuration())
		_, err := b.Run(context.Background(), RunOptions{})
		require.NoError(t, err)
		return b
	}
	spikeCovered := func(t *testing.T, b *Building) {
		boiler := b.Devices().Boiler
		tes := b.Devices().Storage
		for i := 200; i < 210; i++ {
			assert.InDelta(t, 3000.0, boiler.ThermalOutput()[i], 1e-9)
			assert.InDelta(t, 1000.0, tes.Discharge()[i], 1e-9)
			assert.Equal(t, 0.0, tes.Charge()[i])
		}
		assert.Less(t, tes.TemperatureSeries()[209], tes.TemperatureSeries()[199])
	}
	invariants := func(t *testing.T, b *Building) {
		assertThermalBalance(t, b)
		assertStorageBounds(t, b.Devices().Storage)
		for i, q := range b.Devices().Boiler.ThermalOutput() {
			require.LessOrEqual(t, q, 3000+1e-9, "timestep %d", i)
		}
	}

	// A boiler is not an efficient supply, so with the default thresholds
	// it only tops the storage up once the state of charge drops below
	// bufferLow.
	t.Run("Default Thresholds", func(t *testing.T) {
		settings := types.DefaultSettings()
		b := run(t, settings)
		tes := b.Devices().Storage
		lo, hi := tes.Bounds()
		socBefore := func(i int) float64 {
			temp := tes.InitialTemperature()
			if i > 0 {
				temp = tes.TemperatureSeries()[i-1]
			}
			return (temp - lo) / (hi - lo)
		}

		t.Run("Spike Is Covered By Storage", func(t *testing.T) {
			spikeCovered(t, b)
		})

		t.Run("No Recharge Above Low Threshold", func(t *testing.T) {
			for i := 0; i < 320; i++ {
				require.Equal(t, 0.0, tes.Charge()[i], "timestep %d", i)
			}
			assert.Less(t, tes.TemperatureSeries()[309], tes.TemperatureSeries()[209])
			assert.Greater(t, socBefore(320), settings.BufferLow)
		})

		t.Run("Tops Up Below Low Threshold", func(t *testing.T) {
			var charged []int
			for i, q := range tes.Charge() {
				if q > 0 {
					charged = append(charged, i)
				}
			}
			require.NotEmpty(t, charged, "storage is never topped up")
			for _, i := range charged {
				assert.Less(t, socBefore(i), settings.BufferLow, "charged at timestep %d", i)
				assert.InDelta(t, 3000.0, tes.Charge()[i], 1e-9, "boiler tops up at full output at %d", i)
			}
			for i := charged[0]; i < timer.Steps(); i++ {
				require.GreaterOrEqual(t, (tes.TemperatureSeries()[i]-lo)/(hi-lo), settings.BufferLow-0.001, "timestep %d", i)
			}
		})

		t.Run("Invariants", func(t *testing.T) {
			invariants(t, b)
		})
	})

	t.Run("Raised Low Threshold", func(t *testing.T) {
		settings := types.DefaultSettings()
		settings.BufferLow = 0.9
		b := run(t, settings)
		tes := b.Devices().Storage

		t.Run("Spike Is Covered By Storage", func(t *testing.T) {
			spikeCovered(t, b)
		})

		t.Run("Storage Recharges Afterwards", func(t *testing.T) {
			var charged float64
			for i := 210; i < 320; i++ {
				charged += tes.Charge()[i]
			}
			assert.Greater(t, charged, 0.0)
			assert.Greater(t, tes.TemperatureSeries()[309], tes.TemperatureSeries()[209])
		})

		t.Run("Invariants", func(t *testing.T) {
			invariants(t, b)
		})
	})
}

func TestPartLoadFloorWithStorage(t *testing.T) {
	timer := hourly(t)
	b := build(t, buildingInput{
		env:   testEnv(timer),
		specs: []types.DeviceSpec{{Kind: types.DeviceBoiler, QNominal: 3000, LowerActivationLimit: 0.5}, tank(1000)},
		sh:    types.ConstantSeries(timer, 1000),
	})
	assert.Equal(t, 0.5, b.Devices().Boiler.LowerActivationLimit(), "activation limit is kept with storage")

	_, err := b.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	var running int
	for i, q := range b.Devices().Boiler.ThermalOutput() {
		if q == 0 {
			continue
		}
		running++
		require.GreaterOrEqual(t, q, 1500-1e-6, "part load floor violated at %d", i)
	}
	assert.Greater(t, running, 0)
	assertThermalBalance(t, b)
	assertStorageBounds(t, b.Devices().Storage)
}

func TestActivationLimitWithEmptyStorage(t *testing.T) {
	timer := hourly(t)
	spec := tank(1000)
	spec.TInit = 20
	b := build(t, buildingInput{
		env: testEnv(timer),
		specs: []types.DeviceSpec{
			{Kind: types.DeviceCHP, QNominal: 3000, LowerActivationLimit: 0.5},
			spec,
		},
		sh: types.ConstantSeries(timer, 500),
	})
	require.Equal(t, ConfigCHPStorage, b.Configuration())

	_, err := b.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	chp := b.Devices().CHP
	tes := b.Devices().Storage
	assert.GreaterOrEqual(t, chp.ThermalOutput()[0], 1500.0, "chp starts at its activation limit")
	assert.GreaterOrEqual(t, tes.Charge()[0], 1000.0, "surplus goes into the storage")
	assert.Equal(t, 0.0, tes.Discharge()[0])
	for i, q := range chp.ThermalOutput() {
		if q > 0 {
			require.GreaterOrEqual(t, q, 1500-1e-6, "part load floor violated at %d", i)
		}
	}
	assertThermalBalance(t, b)
	assertStorageBounds(t, tes)
}

func TestNoBoilerChargingWhileDischarging(t *testing.T) {
	timer := hourly(t)
	spec := tank(1000)
	spec.TInit = 22
	b := build(t, buildingInput{
		env: testEnv(timer),
		specs: []types.DeviceSpec{
			{Kind: types.DeviceCHP, QNominal: 3000, LowerActivationLimit: 0.5},
			{Kind: types.DeviceBoiler, QNominal: 5000},
			spec,
		},
		sh: types.ConstantSeries(timer, 500),
	})
	tes := b.Devices().Storage
	require.Less(t, tes.SOC(), types.DefaultSettings().BufferLow, "every device may charge")

	_, err := b.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.InDelta(t, 500.0, tes.Discharge()[0], 1e-9)
	assert.InDelta(t, 3000.0, b.Devices().CHP.ThermalOutput()[0], 1e-9)
	assert.InDelta(t, 3000.0, tes.Charge()[0], 1e-9)
	assert.Equal(t, 0.0, b.Devices().Boiler.ThermalOutput()[0])
	for i := range tes.Charge() {
		if tes.Discharge()[i] > 0 {
			require.Equal(t, 0.0, b.Devices().Boiler.ThermalOutput()[i], "boiler charged while discharging at %d", i)
		}
	}
	assertThermalBalance(t, b)
	assertStorageBounds(t, tes)
}

func TestHeatPumpWithStorage(t *testing.T) {
	timer := hourly(t)
	spec := tank(300)
	spec.TMax = 55
	spec.TInit = 45
	b := build(t, buildingInput{
		env: testEnv(timer),
		specs: []types.DeviceSpec{
			{Kind: types.DeviceHeatPump, QNominal: 6000, LowerActivationLimit: 0.3},
			{Kind: types.DeviceElectricHeater, QNominal: 3000},
			spec,
		},
		sh:  types.ConstantSeries(timer, 3000),
		dhw: types.ConstantSeries(timer, 200),
	})
	require.Equal(t, ConfigHeatPumpStorage, b.Configuration())
	require.False(t, b.Devices().HeatPump.ServesDHW())

	_, err := b.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	hp := b.Devices().HeatPump
	for i := 0; i < 48; i++ {
		q := hp.ThermalOutput()[i]
		assert.GreaterOrEqual(t, q, 3000.0-1e-6, "heat pump covers space heating at %d", i)
		assert.InDelta(t, q/hp.COP(i, 35), hp.ElectricInput()[i], 1e-9, "no hot water share at %d", i)
	}
	assertThermalBalance(t, b)
	assertElectricalBalance(t, b)
	assertStorageBounds(t, b.Devices().Storage)

	s := b.Summary()
	assert.Greater(t, s.HPElectricKWH, 0.0)
	assert.InDelta(t, s.HPElectricKWH+s.EHElectricKWH, s.GridImportHPKWH+s.GridImportEHKWH, 1e-6)
}

func TestEnergyBalanceError(t *testing.T) {
	timer := hourly(t)

	t.Run("Direct", func(t *testing.T) {
		sh := types.ConstantSeries(timer, 500)
		sh[5] = 2000
		b := build(t, buildingInput{
			env:   testEnv(timer),
			specs: []types.DeviceSpec{{Kind: types.DeviceBoiler, QNominal: 1000}},
			sh:    sh,
		})

		_, err := b.Run(context.Background(), RunOptions{})
		var be *types.EnergyBalanceError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, "b1", be.BuildingID)
		assert.Equal(t, 5, be.Timestep)
		assert.InDelta(t, 1000.0, be.Remaining, 1e-9)

		boiler := b.Devices().Boiler.ThermalOutput()
		assert.Equal(t, 500.0, boiler[4], "earlier results are kept")
		assert.Equal(t, 0.0, boiler[5])
	})

	t.Run("Storage Exhausted", func(t *testing.T) {
		spec := tank(1000)
		spec.TInit = 21
		b := build(t, buildingInput{
			env:   testEnv(timer),
			specs: []types.DeviceSpec{{Kind: types.DeviceBoiler, QNominal: 1000}, spec},
			sh:    types.ConstantSeries(timer, 2000),
		})
		require.Equal(t, ConfigBoilerStorage, b.Configuration())

		_, err := b.Run(context.Background(), RunOptions{})
		var be *types.EnergyBalanceError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, "b1", be.BuildingID)
		assert.Equal(t, 1, be.Timestep)

		tes := b.Devices().Storage
		assert.InDelta(t, 1000.0, tes.Discharge()[0], 1e-9, "storage covers the gap while it can")
		assert.InDelta(t, 1000-tes.MaxDischarge(0), be.Remaining, 1e-6)
		assert.Greater(t, be.Remaining, 0.0)
		assert.Less(t, be.Remaining, 1000.0)
		assert.Equal(t, 0.0, tes.Discharge()[1])
		assert.Equal(t, 0.0, b.Devices().Boiler.ThermalOutput()[1])
	})
}

func TestDevicePreconditionError(t *testing.T) {
	timer := hourly(t)
	b := build(t, buildingInput{
		env:   testEnv(timer),
		specs: []types.DeviceSpec{{Kind: types.DeviceBoiler, QNominal: 1000}},
		sh:    types.ConstantSeries(timer, 100),
	})
	require.NoError(t, b.Devices().Boiler.Commit(0, device.Allocation{SpaceHeating: 100}))

	_, err := b.Run(context.Background(), RunOptions{})
	var pe *types.PreconditionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "b1", pe.BuildingID)
	assert.Equal(t, types.DeviceBoiler, pe.Device)
	assert.Equal(t, 0, pe.Timestep)
	assert.ErrorContains(t, err, "in building b1")
}

// logRecords decodes the JSON log lines written to buf.
func logRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var recs []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var rec map[string]any
		require.NoError(t, dec.Decode(&rec))
		recs = append(recs, rec)
	}
	return recs
}

func TestConfigurationWarnings(t *testing.T) {
	timer := hourly(t)
	const hpWarning = "heat pump cannot reach hot water temperature and no electric heater is installed"
	capture := func() (context.Context, *bytes.Buffer) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
		return log.With(context.Background(), logger), &buf
	}
	find := func(recs []map[string]any, msg string) map[string]any {
		for _, rec := range recs {
			if rec["msg"] == msg {
				return rec
			}
		}
		return nil
	}
	hp := types.DeviceSpec{Kind: types.DeviceHeatPump, QNominal: 6000}
	heater := types.DeviceSpec{Kind: types.DeviceElectricHeater, QNominal: 3000}

	t.Run("Heat Pump Without Hot Water Backup", func(t *testing.T) {
		ctx, buf := capture()
		b := build(t, buildingInput{
			ctx:   ctx,
			env:   testEnv(timer),
			specs: []types.DeviceSpec{hp, tank(300)},
			dhw:   types.ConstantSeries(timer, 200),
		})
		require.False(t, b.Devices().HeatPump.ServesDHW())

		rec := find(logRecords(t, buf), hpWarning)
		require.NotNil(t, rec, "missing warning")
		assert.Equal(t, "WARN", rec["level"])
		assert.Equal(t, "b1", rec["buildingID"])
		assert.EqualValues(t, 60, rec["dhwTemperature"])
	})

	t.Run("Heat Pump With Electric Heater", func(t *testing.T) {
		ctx, buf := capture()
		build(t, buildingInput{
			ctx:   ctx,
			env:   testEnv(timer),
			specs: []types.DeviceSpec{hp, heater, tank(300)},
			dhw:   types.ConstantSeries(timer, 200),
		})
		assert.Nil(t, find(logRecords(t, buf), hpWarning))
	})

	t.Run("Heat Pump Without Hot Water Demand", func(t *testing.T) {
		ctx, buf := capture()
		build(t, buildingInput{
			ctx:   ctx,
			env:   testEnv(timer),
			specs: []types.DeviceSpec{hp, tank(300)},
		})
		assert.Nil(t, find(logRecords(t, buf), hpWarning))
	})

	t.Run("Activation Limit Reset Without Storage", func(t *testing.T) {
		ctx, buf := capture()
		b := build(t, buildingInput{
			ctx:   ctx,
			env:   testEnv(timer),
			specs: []types.DeviceSpec{{Kind: types.DeviceBoiler, QNominal: 3000, LowerActivationLimit: 0.2}},
		})
		require.Equal(t, ConfigDirect, b.Configuration())

		rec := find(logRecords(t, buf), "resetting lower activation limit to allow full part load operation")
		require.NotNil(t, rec, "missing warning")
		assert.Equal(t, "WARN", rec["level"])
		assert.Equal(t, "b1", rec["buildingID"])
		assert.Equal(t, string(types.DeviceBoiler), rec["device"])
		assert.EqualValues(t, 0.2, rec["lowerActivationLimit"])
	})
}

func TestNoThermalSupply(t *testing.T) {
	timer := hourly(t)

	t.Run("Standalone Fails", func(t *testing.T) {
		b := build(t, buildingInput{
			env: testEnv(timer),
			sh:  types.ConstantSeries(timer, 100),
		})
		_, err := b.Run(context.Background(), RunOptions{})
		var be *types.EnergyBalanceError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, 0, be.Timestep)
	})

	t.Run("Network Consumer", func(t *testing.T) {
		b := build(t, buildingInput{
			env: testEnv(timer),
			sh:  types.ConstantSeries(timer, 100),
			el:  types.ConstantSeries(timer, 400),
		})
		_, err := b.Run(context.Background(), RunOptions{FromNetwork: true})
		require.NoError(t, err)
		assert.Equal(t, 400.0, b.Electrical().GridImport[10])
		assert.Equal(t, 0.0, b.Summary().SpaceHeatingKWH, "heat is accounted at the feeder")
	})
}

func TestNetworkFeeder(t *testing.T) {
	timer := hourly(t)
	specs := []types.DeviceSpec{{Kind: types.DeviceBoiler, QNominal: 2000}}

	t.Run("Partial Leaves Remainder", func(t *testing.T) {
		b := build(t, buildingInput{env: testEnv(timer), specs: specs, sh: types.ConstantSeries(timer, 1000)})
		left, err := b.Run(context.Background(), RunOptions{
			Network: types.ConstantSeries(timer, 1500),
			Partial: true,
		})
		require.NoError(t, err)
		assert.InDelta(t, 500.0, left[0], 1e-9)
		assert.InDelta(t, 1000.0, b.NetworkServed()[0], 1e-9)
		assertThermalBalance(t, b)
	})

	t.Run("Last Feeder Must Cover", func(t *testing.T) {
		b := build(t, buildingInput{env: testEnv(timer), specs: specs, sh: types.ConstantSeries(timer, 1000)})
		_, err := b.Run(context.Background(), RunOptions{Network: types.ConstantSeries(timer, 1500)})
		var be *types.EnergyBalanceError
		require.True(t, errors.As(err, &be))
		assert.InDelta(t, 500.0, be.Remaining, 1e-9)
	})

	t.Run("Own Demand Before Network", func(t *testing.T) {
		b := build(t, buildingInput{env: testEnv(timer), specs: specs, sh: types.ConstantSeries(timer, 1800), dhw: types.ConstantSeries(timer, 200)})
		left, err := b.Run(context.Background(), RunOptions{
			Network: types.ConstantSeries(timer, 700),
			Partial: true,
		})
		require.NoError(t, err)
		assert.InDelta(t, 700.0, left[3], 1e-9)
		assert.Equal(t, 0.0, b.NetworkServed()[3])
	})
}

func TestElectricalDispatch(t *testing.T) {
	timer := hourly(t)
	env := testEnv(timer)
	for i := range env.SolarRadiation {
		if i%2 == 0 {
			env.SolarRadiation[i] = 1000
		}
	}
	b := build(t, buildingInput{
		env: env,
		specs: []types.DeviceSpec{
			{Kind: types.DevicePV, Area: 10, Eta: 0.2, InverterEta: 1},
			{Kind: types.DeviceBattery, CapacityKWH: 5, SOCInit: 0.5, EtaCharge: 1, EtaDischarge: 1, MaxChargePower: 600, MaxDischargePower: 5000},
		},
		el: types.ConstantSeries(timer, 1000),
	})

	_, err := b.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	r := b.Electrical()

	assert.InDelta(t, 2000.0, b.Devices().PV.Output()[0], 1e-9)
	assert.InDelta(t, 1600.0, r.PVSelf[0], 1e-9)
	assert.InDelta(t, 600.0, r.BatteryChargePV[0], 1e-9)
	assert.InDelta(t, 400.0, r.PVFeedIn[0], 1e-9)
	assert.Equal(t, 0.0, r.GridImport[0])

	assert.InDelta(t, 1000.0, r.BatteryDischarge[1], 1e-9)
	assert.Equal(t, 0.0, r.GridImport[1])

	assertElectricalBalance(t, b)
}

func TestCHPElectricity(t *testing.T) {
	timer := hourly(t)
	b := build(t, buildingInput{
		env: testEnv(timer),
		specs: []types.DeviceSpec{
			{Kind: types.DeviceCHP, QNominal: 3000, PNominal: 1500},
			{Kind: types.DeviceBoiler, QNominal: 10000},
			tank(500),
		},
		sh: types.ConstantSeries(timer, 3000),
		el: types.ConstantSeries(timer, 1000),
	})
	_, err := b.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	r := b.Electrical()
	chp := b.Devices().CHP
	assert.InDelta(t, 1500.0, chp.ElectricOutput()[0], 1e-9)
	assert.InDelta(t, 1000.0, r.CHPSelf[0], 1e-9)
	assert.InDelta(t, 500.0, r.CHPFeedIn[0], 1e-9)
	assertElectricalBalance(t, b)
	assertThermalBalance(t, b)
}

func TestDeterminism(t *testing.T) {
	timer := hourly(t)
	env := testEnv(timer)
	for i := range env.SolarRadiation {
		h := timer.HourOfDay(i)
		if h >= 8 && h <= 16 {
			env.SolarRadiation[i] = 600
		}
		env.OutdoorTemperature[i] = float64(i%24) - 5
	}
	sh := types.NewTimeSeries(timer)
	for i := range sh {
		sh[i] = 1500 + float64(i%37)*100
	}
	in := buildingInput{
		env: env,
		specs: []types.DeviceSpec{
			{Kind: types.DeviceCHP, QNominal: 4000, LowerActivationLimit: 0.4},
			{Kind: types.DeviceBoiler, QNominal: 8000},
			{Kind: types.DevicePV, Area: 20},
			{Kind: types.DeviceBattery, CapacityKWH: 4, SOCInit: 0.2, MaxChargePower: 2000, MaxDischargePower: 2000, SelfDischarge: 0.001},
			tank(800),
		},
		sh:  sh,
		dhw: types.ConstantSeries(timer, 300),
		el:  types.ConstantSeries(timer, 700),
	}

	first := build(t, in)
	second := build(t, in)
	_, err := first.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	_, err = second.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.Devices().CHP.ThermalOutput(), second.Devices().CHP.ThermalOutput())
	assert.Equal(t, first.Devices().Boiler.ThermalOutput(), second.Devices().Boiler.ThermalOutput())
	assert.Equal(t, first.Devices().Storage.TemperatureSeries(), second.Devices().Storage.TemperatureSeries())
	assert.Equal(t, first.Electrical(), second.Electrical())
	assert.Equal(t, first.Summary(), second.Summary())

	assertThermalBalance(t, first)
	assertElectricalBalance(t, first)
	assertStorageBounds(t, first.Devices().Storage)
}

func TestRunOnce(t *testing.T) {
	timer := hourly(t)
	b := build(t, buildingInput{env: testEnv(timer), specs: []types.DeviceSpec{{Kind: types.DeviceBoiler, QNominal: 1000}}})
	_, err := b.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	_, err = b.Run(context.Background(), RunOptions{})
	assert.ErrorContains(t, err, "already been run")
}

func TestRunCanceled(t *testing.T) {
	timer := hourly(t)
	b := build(t, buildingInput{env: testEnv(timer), specs: []types.DeviceSpec{{Kind: types.DeviceBoiler, QNominal: 1000}}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Run(ctx, RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteCSV(t *testing.T) {
	timer := hourly(t)
	b := build(t, buildingInput{
		env:   testEnv(timer),
		specs: []types.DeviceSpec{{Kind: types.DeviceBoiler, QNominal: 3000}, tank(500)},
		sh:    types.ConstantSeries(timer, 1234.5),
	})
	_, err := b.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, b.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, timer.Steps()+1)
	assert.True(t, strings.HasPrefix(lines[0], "timestep,space_heating_w,dhw_w,electric_w,network_served_w,boiler_th_w"))
	assert.Contains(t, lines[0], "tes_temperature_c")
	assert.True(t, strings.HasPrefix(lines[1], "0,1234.500,0.000,0.000,0.000,"))
}
