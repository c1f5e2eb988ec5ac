package model

type (
	// CarState is the mutable state of a car during a simulated race
	CarState struct {
		Compound    Compound `json:"compound"`
		TireAge     int      `json:"tireAge"`
		Fuel        float64  `json:"fuel"`
		RaceTime    float64  `json:"raceTime"`
		IsRaining   bool     `json:"isRaining"`
		LapsDone    int      `json:"lapsDone"`
		LastPitCost float64  `json:"lastPitCost"`
	}

	// PitEvent describes a pit stop performed before the lap it is attached to
	PitEvent struct {
		Cost     float64  `json:"cost"`
		Reason   string   `json:"reason"`
		Compound Compound `json:"compound"`
	}

	// LapRecord is the history entry of a completed lap.
	LapRecord struct {
		Lap      int       `json:"lap"`
		LapTime  float64   `json:"lapTime"` // driving time without pit loss
		Compound Compound  `json:"compound"`
		TireAge  int       `json:"tireAge"` // tire age at the end of the lap
		Fuel     float64   `json:"fuel"`
		Rain     bool      `json:"rain"`
		Incident bool      `json:"incident"`
		Health   float64   `json:"tireHealth"` // display only
		Pit      *PitEvent `json:"pit,omitempty"`
	}
)

// Time returns the lap time including the pit loss if a pit stop was performed
func (r LapRecord) Time() float64 {
	if r.Pit != nil {
		return r.LapTime + r.Pit.Cost
	}
	return r.LapTime
}

func (r LapRecord) PitStop() bool {
	return r.Pit != nil
}
