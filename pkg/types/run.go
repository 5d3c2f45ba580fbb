package types

import (
	"time"
)

// RunSummary is the persisted record of one simulation run.
type RunSummary struct {
	ID            string            `json:"id"`
	Scenario      string            `json:"scenario"`
	CreatedAt     time.Time         `json:"createdAt"`
	Duration      time.Duration     `json:"duration"`
	EngineVersion string            `json:"engineVersion"`
	Settings      Settings          `json:"settings"`
	Buildings     []BuildingSummary `json:"buildings"`
	Networks      []NetworkSummary  `json:"networks,omitempty"`
	Failure       *RunFailure       `json:"failure,omitempty"`
}

// RunFailure records why a run stopped early.
type RunFailure struct {
	BuildingID string `json:"buildingID,omitempty"`
	Timestep   int    `json:"timestep"`
	Message    string `json:"message"`
}

// BuildingSummary holds annual energy totals in kWh for one building.
type BuildingSummary struct {
	ID            string `json:"id"`
	Configuration string `json:"configuration"`
	NetworkID     string `json:"networkID,omitempty"`

	SpaceHeatingKWH float64 `json:"spaceHeatingKWH"`
	DHWKWH          float64 `json:"dhwKWH"`
	NetworkKWH      float64 `json:"networkKWH"`
	ElectricKWH     float64 `json:"electricKWH"`

	BoilerThermalKWH float64 `json:"boilerThermalKWH"`
	BoilerFuelKWH    float64 `json:"boilerFuelKWH"`
	CHPThermalKWH    float64 `json:"chpThermalKWH"`
	CHPElectricKWH   float64 `json:"chpElectricKWH"`
	CHPFuelKWH       float64 `json:"chpFuelKWH"`
	HPThermalKWH     float64 `json:"hpThermalKWH"`
	HPElectricKWH    float64 `json:"hpElectricKWH"`
	EHThermalKWH     float64 `json:"ehThermalKWH"`
	EHElectricKWH    float64 `json:"ehElectricKWH"`

	TESChargeKWH         float64 `json:"tesChargeKWH"`
	TESDischargeKWH      float64 `json:"tesDischargeKWH"`
	TESMinTemperature    float64 `json:"tesMinTemperature,omitempty"`
	TESMaxTemperature    float64 `json:"tesMaxTemperature,omitempty"`
	TESFinalTemperature  float64 `json:"tesFinalTemperature,omitempty"`
	BatteryChargeKWH     float64 `json:"batteryChargeKWH"`
	BatteryDischargeKWH  float64 `json:"batteryDischargeKWH"`
	BatteryFinalSOC      float64 `json:"batteryFinalSOC,omitempty"`
	PVKWH                float64 `json:"pvKWH"`
	PVSelfKWH            float64 `json:"pvSelfKWH"`
	PVFeedInKWH          float64 `json:"pvFeedInKWH"`
	CHPSelfKWH           float64 `json:"chpSelfKWH"`
	CHPFeedInKWH         float64 `json:"chpFeedInKWH"`
	GridImportKWH        float64 `json:"gridImportKWH"`
	GridImportHPKWH      float64 `json:"gridImportHPKWH"`
	GridImportEHKWH      float64 `json:"gridImportEHKWH"`
	PeakGridImportW      float64 `json:"peakGridImportW"`
	PeakThermalDemandW   float64 `json:"peakThermalDemandW"`
	StepsStorageCharging int     `json:"stepsStorageCharging"`
}

// NetworkSummary holds annual totals for one heating network.
type NetworkSummary struct {
	ID        string   `json:"id"`
	Feeders   []string `json:"feeders"`
	Consumers []string `json:"consumers"`
	DemandKWH float64  `json:"demandKWH"`
	// ServedKWH is keyed by feeder building ID.
	ServedKWH map[string]float64 `json:"servedKWH"`
}
