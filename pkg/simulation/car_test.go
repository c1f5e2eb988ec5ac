//nolint:whitespace,lll,funlen,dupl // readability
package simulation

import (
	"fmt"
	"math"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racestrategy/pkg/model"
)

// scripted returns the given values in a cycle.
// Each lap draws: weather, incident, noise (unless noise is fixed)
type scripted struct {
	vals []float64
	idx  int
}

func (s *scripted) Float64() float64 {
	v := s.vals[s.idx%len(s.vals)]
	s.idx++
	return v
}

var (
	nominalTeam  = model.TeamProfile{Name: "nominal", PaceFactor: 1.0, DegradationFactor: 1.0}
	nominalTrack = model.TrackProfile{Name: "nominal", BaselineDegradation: 0.045, LapCount: 57, FuelBurn: 1.7}
	// start fuel penalty: 110 * 0.035
	firstLapBase = BaseLapTime + StartFuel*FuelPenalty
)

// a car without weather, incidents and noise
func quietCar(opts ...Option) *Car {
	base := []Option{
		WithRandom(NewRandom(1, 1)),
		WithIncidentProbability(0),
		WithFixedNoise(0),
	}
	return NewCar(nominalTeam, nominalTrack, 0, append(base, opts...)...)
}

func TestNewCar(t *testing.T) {
	c := quietCar()
	s := c.State()
	assert.Equal(t, model.CompoundSoft, s.Compound)
	assert.Equal(t, 0, s.TireAge)
	assert.Equal(t, StartFuel, s.Fuel)
	assert.Zero(t, s.RaceTime)
	assert.False(t, s.IsRaining)
	assert.Empty(t, c.History())
	assert.Empty(t, c.Diagnostics())

	assert.InDelta(t, 0.045, c.degradation(model.CompoundSoft), 1e-12)
	assert.InDelta(t, 0.045*0.7, c.degradation(model.CompoundMedium), 1e-12)
	assert.InDelta(t, 0.045*0.4, c.degradation(model.CompoundHard), 1e-12)
	assert.InDelta(t, 0.02, c.degradation(model.CompoundIntermediate), 1e-12)
	assert.InDelta(t, 0.05, c.degradation("ULTRA"), 1e-12)

	slow := NewCar(model.TeamProfile{PaceFactor: 1.02, DegradationFactor: 1.5}, nominalTrack, 0)
	assert.InDelta(t, 91.8, slow.basePace, 1e-9)
	assert.InDelta(t, 0.045*1.5, slow.degradation(model.CompoundSoft), 1e-12)
}

func TestFirstLapTimes(t *testing.T) {
	// weather draw 0.07 starts rain (p=0.1 at 100%) and keeps it (stop p=0.05)
	rainy := &scripted{vals: []float64{0.07, 0.9}}
	tests := []struct {
		name     string
		compound model.Compound
		rain     int
		incident float64
		want     float64
	}{
		{"soft dry", model.CompoundSoft, 0, 0, firstLapBase},
		{"medium dry", model.CompoundMedium, 0, 0, firstLapBase + 0.5},
		{"hard dry", model.CompoundHard, 0, 0, firstLapBase + 1.0},
		{"inter dry", model.CompoundIntermediate, 0, 0, firstLapBase + 5.0},
		{"soft wet", model.CompoundSoft, 100, 0, firstLapBase + 30.0},
		{"inter wet", model.CompoundIntermediate, 100, 0, firstLapBase + 10.0},
		{"soft incident", model.CompoundSoft, 0, 1, firstLapBase + 40.0},
		{"hard wet incident", model.CompoundHard, 100, 1, firstLapBase + 1.0 + 30.0 + 40.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rainy.idx = 0
			c := NewCar(nominalTeam, nominalTrack, tt.rain,
				WithRandom(rainy),
				WithIncidentProbability(tt.incident),
				WithFixedNoise(0),
				WithStartCompound(tt.compound))
			got := c.SimulateLap()
			assert.InDelta(t, tt.want, got, 1e-9)
			last, ok := c.LastLap()
			require.True(t, ok)
			assert.Equal(t, tt.rain > 0, last.Rain)
			assert.Equal(t, tt.incident > 0, last.Incident)
		})
	}
}

func TestDegradationAndCliff(t *testing.T) {
	c := quietCar()
	for i := 0; i < 25; i++ {
		c.SimulateLap()
	}
	h := c.History()
	// lap 20 is run with tire age 19: first lap past the soft cliff
	for i, r := range h {
		age := float64(r.TireAge - 1)
		fuel := StartFuel - float64(i)*1.7*1.05
		want := BaseLapTime + fuel*FuelPenalty + age*0.045
		if age > 18 {
			want += 0.1 * math.Exp(0.3*(age-18))
		}
		assert.InDelta(t, want, r.LapTime, 1e-9, "lap %d", r.Lap)
	}
}

func TestCliffPenalty(t *testing.T) {
	tests := []struct {
		compound model.Compound
		age      int
		want     float64
	}{
		{model.CompoundSoft, 18, 0},
		{model.CompoundSoft, 19, 0.1 * math.Exp(0.3)},
		{model.CompoundSoft, 25, 0.1 * math.Exp(0.3*7)},
		{model.CompoundMedium, 28, 0},
		{model.CompoundMedium, 30, 0.1 * math.Exp(0.6)},
		{model.CompoundHard, 60, 0},
		{model.CompoundIntermediate, 60, 0},
		{"ULTRA", 60, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s-%d", tt.compound, tt.age), func(t *testing.T) {
			assert.InDelta(t, tt.want, cliffPenalty(tt.compound, tt.age), 1e-12)
		})
	}
}

func TestNoCliffUnderIncident(t *testing.T) {
	c := quietCar(WithIncidentProbability(1))
	for i := 0; i < 25; i++ {
		c.SimulateLap()
	}
	last, _ := c.LastLap()
	age := float64(last.TireAge - 1)
	fuel := StartFuel - 24*1.7*0.4*1.05
	want := BaseLapTime + fuel*FuelPenalty + IncidentPenalty + age*0.045*IncidentDegScale
	assert.InDelta(t, want, last.LapTime, 1e-9)
}

func TestPitStopCost(t *testing.T) {
	t.Run("no incident", func(t *testing.T) {
		c := quietCar()
		c.SimulateLap()
		before := c.TotalRaceTime()
		cost := c.PitStop(model.CompoundHard, ReasonScheduled)
		assert.Equal(t, 22.0, cost)
		assert.Equal(t, before+22.0, c.TotalRaceTime())
	})
	t.Run("incident on previous lap", func(t *testing.T) {
		c := quietCar(WithIncidentProbability(1))
		c.SimulateLap()
		before := c.TotalRaceTime()
		cost := c.PitStop(model.CompoundHard, ReasonSCAdvantage)
		assert.Equal(t, 12.0, cost)
		assert.Equal(t, before+12.0, c.TotalRaceTime())
	})
	t.Run("before first lap", func(t *testing.T) {
		c := quietCar(WithIncidentProbability(1))
		assert.Equal(t, 22.0, c.PitStop(model.CompoundMedium, ReasonScheduled))
	})
}

func TestPitEventAttachedToNextLap(t *testing.T) {
	c := quietCar()
	c.SimulateLap()
	c.PitStop(model.CompoundHard, ReasonScheduled)
	require.NotNil(t, c.Pending())

	lapTime := c.SimulateLap()
	assert.Nil(t, c.Pending())

	h := c.History()
	require.Len(t, h, 2)
	assert.Nil(t, h[0].Pit)
	require.NotNil(t, h[1].Pit)
	assert.Equal(t, model.PitEvent{Cost: 22.0, Reason: ReasonScheduled, Compound: model.CompoundHard}, *h[1].Pit)
	assert.Equal(t, model.CompoundHard, h[1].Compound)
	assert.Equal(t, lapTime+22.0, h[1].Time())
	assert.True(t, h[1].PitStop())
	assert.InDelta(t, h[0].Time()+h[1].Time(), c.TotalRaceTime(), 1e-9)
}

func TestDoublePitStopAccumulates(t *testing.T) {
	c := quietCar()
	c.SimulateLap()
	c.PitStop(model.CompoundHard, ReasonScheduled)
	c.PitStop(model.CompoundMedium, ReasonWetTrack)
	c.SimulateLap()
	last, _ := c.LastLap()
	require.NotNil(t, last.Pit)
	assert.Equal(t, 44.0, last.Pit.Cost)
	assert.Equal(t, model.CompoundMedium, last.Pit.Compound)
}

func TestTireAge(t *testing.T) {
	c := NewCar(nominalTeam, nominalTrack, 50, WithRandom(NewRandom(7, 3)))
	pits := map[int]model.Compound{10: model.CompoundHard, 30: model.CompoundMedium, 31: model.CompoundSoft}
	for lap := 1; lap <= 57; lap++ {
		if compound, ok := pits[lap]; ok {
			c.PitStop(compound, ReasonScheduled)
			assert.Equal(t, 0, c.State().TireAge, "lap %d", lap)
		}
		before := c.State().TireAge
		c.SimulateLap()
		assert.Equal(t, before+1, c.State().TireAge, "lap %d", lap)
	}
	h := c.History()
	assert.Equal(t, 9, h[8].TireAge)
	assert.Equal(t, 1, h[9].TireAge)
	assert.Equal(t, 1, h[29].TireAge)
	assert.Equal(t, 1, h[30].TireAge)
	assert.Equal(t, 27, h[56].TireAge)
}

func TestCumulativeTimeNonDecreasing(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		c := NewCar(nominalTeam, model.TrackProfile{BaselineDegradation: 0.08, Tight: lo.ToPtr(true)}, 80,
			WithRandom(NewRandom(seed, 0)))
		prev := c.TotalRaceTime()
		for lap := 1; lap <= 57; lap++ {
			if lap%17 == 0 {
				c.PitStop(model.CompoundIntermediate, PitReason(c))
				assert.GreaterOrEqual(t, c.TotalRaceTime(), prev)
				prev = c.TotalRaceTime()
			}
			c.SimulateLap()
			assert.GreaterOrEqual(t, c.TotalRaceTime(), prev, "seed %d lap %d", seed, lap)
			prev = c.TotalRaceTime()
		}
	}
}

func TestFuelStrictlyDecreasing(t *testing.T) {
	rainy := &scripted{vals: []float64{0.07}}
	for _, compound := range append(model.Compounds, "ULTRA") {
		for _, rain := range []int{0, 100} {
			for _, incident := range []float64{0, 1} {
				for _, noise := range []float64{-0.1, 0, 0.1} {
					name := fmt.Sprintf("%s-rain%d-inc%v-noise%v", compound, rain, incident, noise)
					t.Run(name, func(t *testing.T) {
						c := NewCar(nominalTeam, nominalTrack, rain,
							WithRandom(rainy),
							WithIncidentProbability(incident),
							WithFixedNoise(noise),
							WithStartCompound(compound))
						prev := c.State().Fuel
						for lap := 0; lap < 30; lap++ {
							c.SimulateLap()
							assert.Less(t, c.State().Fuel, prev, "lap %d", lap+1)
							prev = c.State().Fuel
						}
					})
				}
			}
		}
	}
}

func TestFuelDecreasesWithTinyBurnRate(t *testing.T) {
	thrifty := nominalTrack
	thrifty.FuelBurn = 0.02
	tests := []struct {
		name     string
		compound model.Compound
		incident float64
		noise    float64
	}{
		{"positive noise", model.CompoundHard, 0, NoiseFactor},
		{"positive noise under incident", model.CompoundHard, 1, NoiseFactor},
		{"negative noise", model.CompoundSoft, 0, -NoiseFactor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCar(nominalTeam, thrifty, 0,
				WithRandom(&scripted{vals: []float64{0.9}}),
				WithIncidentProbability(tt.incident),
				WithFixedNoise(tt.noise),
				WithStartCompound(tt.compound))
			prev := c.State().Fuel
			for lap := 0; lap < 20; lap++ {
				c.SimulateLap()
				assert.LessOrEqual(t, c.State().Fuel, prev-MinLapBurn+1e-9, "lap %d", lap+1)
				prev = c.State().Fuel
			}
		})
	}
}

func TestFuelNotClamped(t *testing.T) {
	c := quietCar()
	for i := 0; i < 80; i++ {
		c.SimulateLap()
	}
	assert.Less(t, c.State().Fuel, 0.0)
}

func TestTireHealth(t *testing.T) {
	c := quietCar()
	for i := 0; i < 30; i++ {
		c.SimulateLap()
	}
	h := c.History()
	assert.Equal(t, 100.0, h[0].Health)
	assert.InDelta(t, 60.0, h[10].Health, 1e-9) // age 10 of 25
	assert.Equal(t, 0.0, h[29].Health)

	c = quietCar(WithStartCompound(model.CompoundHard))
	for i := 0; i < 11; i++ {
		c.SimulateLap()
	}
	last, _ := c.LastLap()
	assert.InDelta(t, 75.0, last.Health, 1e-9) // age 10 of 40
}

func TestTightCircuitIncidents(t *testing.T) {
	// incident draw 0.01: below 2% but above 0.5%
	draws := []float64{0.5, 0.01, 0.5}
	tight := nominalTrack
	tight.Tight = lo.ToPtr(true)

	c := NewCar(nominalTeam, tight, 0, WithRandom(&scripted{vals: draws}))
	c.SimulateLap()
	last, _ := c.LastLap()
	assert.True(t, last.Incident)

	c = NewCar(nominalTeam, nominalTrack, 0, WithRandom(&scripted{vals: draws}))
	c.SimulateLap()
	last, _ = c.LastLap()
	assert.False(t, last.Incident)
}

func TestIncidentsAreNotPersistent(t *testing.T) {
	// weather, incident, noise; incident only on the first lap
	c := NewCar(nominalTeam, nominalTrack, 0,
		WithRandom(&scripted{vals: []float64{0.5, 0.001, 0.5, 0.5, 0.9, 0.5}}))
	c.SimulateLap()
	c.SimulateLap()
	h := c.History()
	assert.True(t, h[0].Incident)
	assert.False(t, h[1].Incident)
}

func TestRainStops(t *testing.T) {
	// start raining on lap 1 (0.07 < 0.1), stop on lap 2 (0.01 < 0.05)
	c := NewCar(nominalTeam, nominalTrack, 100,
		WithRandom(&scripted{vals: []float64{0.07, 0.9, 0.5, 0.01, 0.9, 0.5}}))
	c.SimulateLap()
	c.SimulateLap()
	h := c.History()
	assert.True(t, h[0].Rain)
	assert.False(t, h[1].Rain)
}

func TestUnknownCompound(t *testing.T) {
	c := quietCar()
	c.PitStop("ULTRA", ReasonScheduled)
	c.SimulateLap()
	got := c.SimulateLap()
	// age 1, default degradation, no pace offset
	fuel := StartFuel - 1.7
	assert.InDelta(t, BaseLapTime+fuel*FuelPenalty+0.05, got, 1e-9)
	require.Len(t, c.Diagnostics(), 1)
	assert.Equal(t, model.CodeUnknownCompound, c.Diagnostics()[0].Code)
}

func TestSeededCarsAreReproducible(t *testing.T) {
	run := func() []model.LapRecord {
		c := NewCar(nominalTeam, nominalTrack, 40, WithRandom(NewRandom(42, 9)))
		for i := 0; i < 57; i++ {
			c.SimulateLap()
		}
		return c.History()
	}
	assert.Equal(t, run(), run())
}

func TestPitReason(t *testing.T) {
	c := quietCar(WithIncidentProbability(1))
	c.SimulateLap()
	assert.Equal(t, ReasonSCAdvantage, PitReason(c))

	c = quietCar()
	assert.Equal(t, ReasonScheduled, PitReason(c))
	for i := 0; i < 26; i++ {
		c.SimulateLap()
	}
	assert.Equal(t, ReasonCriticalWear, PitReason(c))

	c = NewCar(nominalTeam, nominalTrack, 100,
		WithRandom(&scripted{vals: []float64{0.07, 0.9}}), WithFixedNoise(0))
	c.SimulateLap()
	assert.Equal(t, ReasonWetTrack, PitReason(c))
}
