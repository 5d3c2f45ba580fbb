package dispatch

import (
	"github.com/raterudder/citysim/pkg/device"
)

// balanceTolerance is the uncovered demand in W that still counts as met.
const balanceTolerance = 1e-3

// thermalDemand is the remaining heat demand of a building in one
// timestep.
type thermalDemand struct {
	spaceHeating float64
	dhw          float64
	network      float64
}

func (d *thermalDemand) total() float64 {
	return d.spaceHeating + d.dhw + d.network
}

// servable is the demand a device can be asked for. Devices that cannot
// reach the hot water temperature skip the hot water share.
func (d *thermalDemand) servable(dhw bool) float64 {
	if dhw {
		return d.total()
	}
	return d.spaceHeating + d.network
}

// take offsets q against space heating, then hot water, then network
// demand and returns how q was split.
func (d *thermalDemand) take(q float64, dhw bool) device.Allocation {
	var a device.Allocation
	a.SpaceHeating = min(q, d.spaceHeating)
	d.spaceHeating -= a.SpaceHeating
	q -= a.SpaceHeating
	if dhw {
		a.DHW = min(q, d.dhw)
		d.dhw -= a.DHW
		q -= a.DHW
	}
	a.Network = min(q, d.network)
	d.network -= a.Network
	return a
}

// uncovered is the demand left that must be met within the building.
// Network demand only counts when no later feeder can take it.
func (d *thermalDemand) uncovered(partial bool) float64 {
	if partial {
		return d.spaceHeating + d.dhw
	}
	return d.total()
}

// chargeRequest is the storage charging asked of a device in the charging
// pass. The zero value means no charging was requested.
type chargeRequest struct {
	requested bool
	power     float64
}

// Power resolves the request to a power, zero when nothing was requested.
func (c chargeRequest) Power() float64 {
	if !c.requested {
		return 0
	}
	return c.power
}

// requestCharge asks dev, already running at current, for up to want more
// output to charge the storage, which has room left. An idle device has to
// start at its lower activation limit or not at all.
func requestCharge(t int, dev device.ThermalDevice, current, want, room float64) chargeRequest {
	spare := min(dev.MaxOutput()-current, room)
	extra := min(spare, want)
	if extra <= 0 {
		return chargeRequest{}
	}
	if dev.Output(t, current+extra) == 0 {
		floor := dev.LowerActivationLimit() * dev.MaxOutput()
		if floor <= 0 || floor > spare {
			return chargeRequest{}
		}
		extra = floor
	}
	return chargeRequest{requested: true, power: extra}
}
