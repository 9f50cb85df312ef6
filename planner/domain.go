package planner

import (
	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/scenario"
)

// ForScenario returns the domain planner matching the scenario's vehicle
// class. Spacecraft options are ignored for aircraft scenarios.
func ForScenario(sc *scenario.Scenario, opts ...SpacecraftOption) (DomainPlanner, error) {
	if sc == nil {
		return nil, core.InvalidConfig("scenario", "nil scenario")
	}
	switch sc.Domain() {
	case model.DomainAircraft:
		return NewAircraftPlanner(sc)
	case model.DomainSpacecraft:
		return NewSpacecraftPlanner(sc, opts...)
	default:
		return nil, core.InvalidConfig("scenario", "exactly one of aircraft or spacecraft must be set")
	}
}
