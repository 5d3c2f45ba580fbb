package types

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDevice is returned when a device kind is not recognised.
	ErrUnknownDevice = errors.New("unknown device kind")
	// ErrUnknownNetwork is returned when a network kind is not recognised.
	ErrUnknownNetwork = errors.New("unknown network kind")
	// ErrUnsupportedConfiguration is returned when a building's device set
	// matches none of the supported supply configurations.
	ErrUnsupportedConfiguration = errors.New("unsupported device configuration")
)

// EnergyBalanceError is returned when the devices of a building cannot
// cover its thermal demand at some timestep. Results before Timestep
// are kept.
type EnergyBalanceError struct {
	BuildingID string  `json:"buildingID"`
	Timestep   int     `json:"timestep"`
	Remaining  float64 `json:"remaining"`
	Message    string  `json:"message"`
}

func (e *EnergyBalanceError) Error() string {
	return fmt.Sprintf("energy balance violated in building %s at timestep %d (%.3f W uncovered): %s", e.BuildingID, e.Timestep, e.Remaining, e.Message)
}

// PreconditionError is returned when a device is asked to do something
// its current state does not allow, for example charging a storage past
// its maximum temperature or writing the same timestep twice.
//
// BuildingID is filled in by the dispatcher once the device is known to
// belong to a building.
type PreconditionError struct {
	BuildingID string
	Device     DeviceKind
	Timestep   int
	Message    string
}

func (e *PreconditionError) Error() string {
	if e.BuildingID != "" {
		return fmt.Sprintf("%s precondition failed in building %s at timestep %d: %s", e.Device, e.BuildingID, e.Timestep, e.Message)
	}
	return fmt.Sprintf("%s precondition failed at timestep %d: %s", e.Device, e.Timestep, e.Message)
}
