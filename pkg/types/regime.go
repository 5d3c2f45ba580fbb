package types

// StorageRegime selects which devices may charge the thermal storage in a
// timestep.
type StorageRegime int

const (
	// RegimeAllCharge lets every supply device charge the storage.
	RegimeAllCharge StorageRegime = iota + 1
	// RegimeEfficientOnlyCharge lets only CHP units and heat pumps charge
	// the storage.
	RegimeEfficientOnlyCharge
	// RegimeNoCharge blocks all charging.
	RegimeNoCharge
)

func (r StorageRegime) String() string {
	switch r {
	case RegimeAllCharge:
		return "allCharge"
	case RegimeEfficientOnlyCharge:
		return "efficientOnlyCharge"
	case RegimeNoCharge:
		return "noCharge"
	}
	return "unknown"
}

// Allows reports whether a device of the given efficiency class may charge
// the storage under this regime.
func (r StorageRegime) Allows(efficient bool) bool {
	switch r {
	case RegimeAllCharge:
		return true
	case RegimeEfficientOnlyCharge:
		return efficient
	}
	return false
}
