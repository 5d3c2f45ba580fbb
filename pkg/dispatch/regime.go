package dispatch

import (
	"github.com/raterudder/citysim/pkg/types"
)

// ClassifyRegime maps the storage state of charge onto the charging regime
// for the current timestep. low must be below high.
func ClassifyRegime(soc, low, high float64) types.StorageRegime {
	switch {
	case soc < low:
		return types.RegimeAllCharge
	case soc < high:
		return types.RegimeEfficientOnlyCharge
	}
	return types.RegimeNoCharge
}
