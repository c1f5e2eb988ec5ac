package simulation

import "github.com/mpapenbr/racestrategy/pkg/model"

const (
	ReasonScheduled    = "Scheduled"
	ReasonSCAdvantage  = "SC ADVANTAGE"
	ReasonCriticalWear = "CRITICAL WEAR"
	ReasonWetTrack     = "WET TRACK"

	criticalWearAge = 25
)

// PitReason derives why a car would box now.
// The reason is informational only, it does not influence the pit loss.
func PitReason(c *Car) string {
	if last, ok := c.LastLap(); ok && last.Incident {
		return ReasonSCAdvantage
	}
	state := c.State()
	switch {
	case state.Compound == model.CompoundSoft && state.TireAge > criticalWearAge:
		return ReasonCriticalWear
	case state.IsRaining && !state.Compound.Wet():
		return ReasonWetTrack
	default:
		return ReasonScheduled
	}
}
