package scenario

import (
	"context"
	"fmt"

	"github.com/raterudder/citysim/pkg/city"
	"github.com/raterudder/citysim/pkg/device"
	"github.com/raterudder/citysim/pkg/dispatch"
	"github.com/raterudder/citysim/pkg/types"
)

// Build resolves a scenario into a city ready to simulate. Scenario settings
// override base wherever they are set.
func Build(ctx context.Context, sc types.Scenario, base types.Settings) (*city.City, error) {
	settings := base.Merge(sc.Settings)
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	timer, err := types.NewTimer(settings.Timestep)
	if err != nil {
		return nil, err
	}
	env, err := Environment(timer, sc.Environment)
	if err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	buildings := make([]*dispatch.Building, 0, len(sc.Buildings))
	for _, spec := range sc.Buildings {
		b, err := building(ctx, settings, env, spec)
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", spec.ID, err)
		}
		buildings = append(buildings, b)
	}

	return city.New(city.Config{
		Scenario:  sc.Name,
		Settings:  settings,
		Timer:     timer,
		Buildings: buildings,
		Networks:  sc.Networks,
	})
}

func building(ctx context.Context, settings types.Settings, env types.Environment, spec types.BuildingSpec) (*dispatch.Building, error) {
	sh, err := Demand(env, spec.SpaceHeating, "space heating demand")
	if err != nil {
		return nil, err
	}
	dhw, err := Demand(env, spec.DHW, "hot water demand")
	if err != nil {
		return nil, err
	}
	el, err := Demand(env, spec.Electric, "electrical demand")
	if err != nil {
		return nil, err
	}
	set, err := device.NewSet(env, settings.DHWTemperature, spec.Devices)
	if err != nil {
		return nil, err
	}
	return dispatch.NewBuilding(ctx, dispatch.BuildingConfig{
		ID:           spec.ID,
		Settings:     settings,
		Timer:        env.Timer,
		Devices:      set,
		SpaceHeating: sh,
		DHW:          dhw,
		Electric:     el,
	})
}
