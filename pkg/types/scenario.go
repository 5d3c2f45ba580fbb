package types

// NetworkKind identifies the type of an energy network between buildings.
type NetworkKind string

const (
	// NetworkHeating is a local heating network relaying thermal demand from
	// consumer buildings to feeder buildings.
	NetworkHeating NetworkKind = "heating"
)

// Scenario describes a city district to simulate.
type Scenario struct {
	Name        string           `json:"name" yaml:"name"`
	Settings    SettingsOverride `json:"settings" yaml:"settings"`
	Environment EnvironmentSpec  `json:"environment" yaml:"environment"`
	Buildings   []BuildingSpec   `json:"buildings" yaml:"buildings"`
	Networks    []NetworkSpec    `json:"networks,omitempty" yaml:"networks,omitempty"`
}

// EnvironmentSpec describes the weather. Explicit values take precedence,
// otherwise a synthetic annual profile is generated.
type EnvironmentSpec struct {
	// OutdoorTemperature in degrees Celsius, one per timestep.
	OutdoorTemperature []float64 `json:"outdoorTemperature,omitempty" yaml:"outdoorTemperature,omitempty"`
	// ConstantOutdoorTemperature pins the outdoor temperature.
	ConstantOutdoorTemperature *float64 `json:"constantOutdoorTemperature,omitempty" yaml:"constantOutdoorTemperature,omitempty"`
	// SolarRadiation on the module plane in W/m2, one per timestep.
	SolarRadiation []float64 `json:"solarRadiation,omitempty" yaml:"solarRadiation,omitempty"`
	// PeakSolarRadiation scales the synthetic radiation profile.
	PeakSolarRadiation float64 `json:"peakSolarRadiation,omitempty" yaml:"peakSolarRadiation,omitempty"`
}

// BuildingSpec describes one building, its demands and its devices.
type BuildingSpec struct {
	ID           string       `json:"id" yaml:"id"`
	SpaceHeating DemandSpec   `json:"spaceHeating" yaml:"spaceHeating"`
	DHW          DemandSpec   `json:"dhw" yaml:"dhw"`
	Electric     DemandSpec   `json:"electric" yaml:"electric"`
	Devices      []DeviceSpec `json:"devices" yaml:"devices"`
}

// DemandProfile names a synthetic demand shape.
type DemandProfile string

const (
	ProfileConstant    DemandProfile = "constant"
	ProfileHeatingDays DemandProfile = "heatingDegree"
	ProfileResidential DemandProfile = "residential"
)

// DemandSpec describes a demand series. Values wins over Constant, which
// wins over a synthetic Profile scaled to AnnualKWH. An empty spec is
// zero demand.
type DemandSpec struct {
	Values    []float64     `json:"values,omitempty" yaml:"values,omitempty"`
	Constant  float64       `json:"constant,omitempty" yaml:"constant,omitempty"`
	Profile   DemandProfile `json:"profile,omitempty" yaml:"profile,omitempty"`
	AnnualKWH float64       `json:"annualKWH,omitempty" yaml:"annualKWH,omitempty"`
}

// NetworkSpec describes a local heating network.
type NetworkSpec struct {
	ID   string      `json:"id" yaml:"id"`
	Kind NetworkKind `json:"kind" yaml:"kind"`
	// Feeders are dispatched in order. Every feeder except the last may
	// leave demand for the next one.
	Feeders   []string `json:"feeders" yaml:"feeders"`
	Consumers []string `json:"consumers" yaml:"consumers"`
	// LossFraction is added on top of the relayed consumer demand.
	LossFraction float64 `json:"lossFraction,omitempty" yaml:"lossFraction,omitempty"`
}
