package dispatch

import (
	"context"
	"log/slog"

	"github.com/raterudder/citysim/pkg/device"
	"github.com/raterudder/citysim/pkg/log"
)

// dispatchThermal covers the heat demand of timestep t and returns the
// network demand left for the next feeder. It runs two passes over the
// merit order: the first serves demand, the second tops up the storage
// from the spare capacity the regime allows. Nothing is committed unless
// the demand is met.
func (b *Building) dispatchThermal(ctx context.Context, t int, network float64, partial bool) (float64, error) {
	d := thermalDemand{
		spaceHeating: b.spaceHeating[t],
		dhw:          b.dhw[t],
		network:      network,
	}
	tes := b.devices.Storage
	allocs := make([]device.Allocation, len(b.order))

	var discharge float64
	for i, st := range b.order {
		if st.isStorage() {
			discharge = min(d.total(), tes.MaxDischarge(0))
			d.take(discharge, true)
			continue
		}
		q := st.device.Output(t, d.servable(st.dhw))
		allocs[i] = d.take(q, st.dhw)
	}

	var charge float64
	if tes != nil && d.uncovered(partial) > balanceTolerance {
		charge = b.startAtFloor(t, &d, allocs, partial, tes.MaxCharge(discharge))
	}
	if left := d.uncovered(partial); left > balanceTolerance {
		return 0, b.balanceError(t, left, "demand exceeds the %s supply", b.config)
	}

	if tes != nil {
		// standby losses at the minimum temperature must be replaced
		// whatever the regime
		need := tes.MinCharge(discharge) - charge
		for i, st := range b.order {
			if need <= 0 {
				break
			}
			if st.isStorage() {
				continue
			}
			room := tes.MaxCharge(discharge) - charge
			p := requestCharge(t, st.device, allocs[i].Total(), need, room).Power()
			allocs[i].Charge += p
			charge += p
			need -= p
		}
		if need > 1e-6 {
			return 0, b.balanceError(t, need, "storage cannot be held at its minimum temperature")
		}

		regime := ClassifyRegime(tes.SOC(), b.settings.BufferLow, b.settings.BufferHigh)
		for i, st := range b.order {
			if st.isStorage() || !regime.Allows(st.efficient) {
				continue
			}
			// heat from a boiler or heater is not cycled through the
			// storage in a step that draws on it
			if !st.efficient && discharge > 0 {
				continue
			}
			room := tes.MaxCharge(discharge) - charge
			if room <= 0 {
				break
			}
			p := requestCharge(t, st.device, allocs[i].Total(), room, room).Power()
			allocs[i].Charge += p
			charge += p
		}
		if charge > 0 && log.Ctx(ctx).Enabled(ctx, slog.LevelDebug) {
			log.Ctx(ctx).DebugContext(
				ctx,
				"charging storage",
				slog.Int("timestep", t),
				slog.String("regime", regime.String()),
				slog.Float64("soc", tes.SOC()),
				slog.Float64("charge", charge),
				slog.Float64("discharge", discharge),
			)
		}
	}

	for i, st := range b.order {
		if st.isStorage() {
			continue
		}
		if err := st.device.Commit(t, allocs[i]); err != nil {
			return 0, b.deviceError(err)
		}
	}
	if tes != nil {
		if err := tes.Transition(t, charge, discharge); err != nil {
			return 0, b.deviceError(err)
		}
	}
	if !partial {
		return 0, nil
	}
	return d.network, nil
}

// startAtFloor covers demand that stayed below the lower activation limit
// of every idle device. The first idle device that fits runs at its limit
// and the surplus goes into the storage, which has room left. It returns
// the power sent to the storage.
func (b *Building) startAtFloor(t int, d *thermalDemand, allocs []device.Allocation, partial bool, room float64) float64 {
	var charged float64
	for i, st := range b.order {
		if d.uncovered(partial) <= balanceTolerance {
			break
		}
		if st.isStorage() || allocs[i].Total() > 0 {
			continue
		}
		want := d.servable(st.dhw)
		floor := st.device.LowerActivationLimit() * st.device.MaxOutput()
		if want <= 0 || want >= floor || floor-want > room-charged {
			continue
		}
		if st.device.Output(t, floor) < floor {
			continue
		}
		a := d.take(want, st.dhw)
		a.Charge = floor - a.Total()
		allocs[i] = a
		charged += a.Charge
	}
	return charged
}
