package model

const (
	DefaultLapCount = 57
	DefaultFuelBurn = 1.7 // kg per lap
	DefaultTrackDeg = 0.05
)

type (
	// TeamProfile holds multiplicative modifiers versus a nominal baseline car
	TeamProfile struct {
		Name              string  `json:"name"`
		PaceFactor        float64 `json:"paceFactor"`
		DegradationFactor float64 `json:"degradationFactor"`
	}
	// TrackProfile holds the per track tire wear rate and race distance
	TrackProfile struct {
		Name                string  `json:"name"`
		BaselineDegradation float64 `json:"baselineDegradation"`
		LapCount            int     `json:"lapCount"`
		FuelBurn            float64 `json:"fuelBurn"`
		// Tight circuits have a higher incident probability.
		// nil if the profile source does not say.
		Tight *bool `json:"tight,omitempty"`
	}
)

func DefaultTeamProfile(name string) TeamProfile {
	return TeamProfile{Name: name, PaceFactor: 1.0, DegradationFactor: 1.0}
}

func DefaultTrackProfile(name string) TrackProfile {
	return TrackProfile{
		Name:                name,
		BaselineDegradation: DefaultTrackDeg,
		LapCount:            DefaultLapCount,
		FuelBurn:            DefaultFuelBurn,
	}
}

// Laps returns the configured lap count or DefaultLapCount if not set
func (t TrackProfile) Laps() int {
	if t.LapCount > 0 {
		return t.LapCount
	}
	return DefaultLapCount
}

// IsTight reports whether the track is known to be a tight circuit
func (t TrackProfile) IsTight() bool {
	return t.Tight != nil && *t.Tight
}

// BurnRate returns the base fuel burn per lap or DefaultFuelBurn if not set
func (t TrackProfile) BurnRate() float64 {
	if t.FuelBurn > 0 {
		return t.FuelBurn
	}
	return DefaultFuelBurn
}
