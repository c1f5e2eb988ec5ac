package simulation

import (
	"fmt"
	"math"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/model"
)

// physics constants
const (
	StartFuel        = 110.0 // kg
	BaseLapTime      = 90.0  // seconds for a car with pace factor 1.0
	FuelPenalty      = 0.035 // seconds per kg
	NoiseFactor      = 0.1   // noise amplitude relative to pace factor
	PitLoss          = 22.0  // seconds
	PitLossIncident  = 12.0  // seconds, pit loss under safety car
	IncidentPenalty  = 40.0  // seconds
	IncidentDegScale = 0.2
	RainStopProb     = 0.05 // per lap
	IncidentProb     = 0.005
	IncidentProbSC   = 0.02 // tight circuits
	DryInterPenalty  = 5.0
	WetSlickPenalty  = 30.0
	WetInterPenalty  = 10.0
	MinLapBurn       = 0.01 // kg, every lap uses at least this much fuel
	SoftCliffAge     = 18
	MediumCliffAge   = 28
	CliffBase        = 0.1
	CliffRate        = 0.3
	burnIncident     = 0.4
	burnRain         = 0.85
	burnSoft         = 1.05
	burnHard         = 0.95
	burnNoiseFactor  = 0.5
)

type (
	Option func(*Car)
	// Car owns the mutable race state of a single car.
	// A Car is not safe for concurrent use.
	Car struct {
		team         model.TeamProfile
		track        model.TrackProfile
		rainStart    float64 // probability per lap for rain to start
		incidentProb float64
		rnd          Random
		fixedNoise   *float64
		basePace     float64
		degCoeffs    map[model.Compound]float64
		state        model.CarState
		history      []model.LapRecord
		pending      *model.PitEvent
		diags        []model.Diagnostic
		l            *log.Logger
	}
)

// WithRandom sets the random source. Without this option a time seeded source is used.
func WithRandom(r Random) Option {
	return func(c *Car) {
		c.rnd = r
	}
}

// WithIncidentProbability overrides the per lap incident probability
func WithIncidentProbability(p float64) Option {
	return func(c *Car) {
		c.incidentProb = p
	}
}

// WithFixedNoise replaces the random lap time noise by a constant value
func WithFixedNoise(noise float64) Option {
	return func(c *Car) {
		c.fixedNoise = &noise
	}
}

func WithStartCompound(compound model.Compound) Option {
	return func(c *Car) {
		c.state.Compound = compound
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Car) {
		c.l = l
	}
}

// NewCar creates a car ready to start a race.
// rainProbability is the race wide rain chance in percent [0,100].
//
//nolint:whitespace // editor/linter issue
func NewCar(
	team model.TeamProfile,
	track model.TrackProfile,
	rainProbability int,
	opts ...Option,
) *Car {
	rain := math.Max(0, math.Min(100, float64(rainProbability)))
	c := &Car{
		team:      team,
		track:     track,
		rainStart: rain / 100 / 10,
		basePace:  BaseLapTime * team.PaceFactor,
		state: model.CarState{
			Compound: model.CompoundSoft,
			Fuel:     StartFuel,
		},
		incidentProb: IncidentProb,
		history:      make([]model.LapRecord, 0, track.Laps()),
		l:            log.Default().Named("sim"),
	}
	if track.IsTight() {
		c.incidentProb = IncidentProbSC
	}
	c.degCoeffs = make(map[model.Compound]float64)
	for _, compound := range model.Compounds {
		if m, ok := compound.DegradationMultiplier(); ok {
			c.degCoeffs[compound] = track.BaselineDegradation * team.DegradationFactor * m
		}
	}
	c.degCoeffs[model.CompoundIntermediate] = model.IntermediateDegradation

	for _, opt := range opts {
		opt(c)
	}
	if c.rnd == nil {
		c.rnd = newTimeSeededRandom()
	}
	c.checkCompound(c.state.Compound)
	return c
}

// SimulateLap advances the car by exactly one lap and returns the lap time.
// The lap time does not include the loss of a pit stop performed before this lap.
//
//nolint:funlen // keep the lap formula in one place
func (c *Car) SimulateLap() float64 {
	c.updateWeather()
	incident := bernoulli(c.rnd, c.incidentProb)
	noise := c.noise()

	compound := c.state.Compound
	age := c.state.TireAge

	lapTime := c.basePace
	lapTime += c.state.Fuel * FuelPenalty
	lapTime += compound.PaceOffset()
	lapTime += c.weatherPenalty()
	degScale := 1.0
	if incident {
		lapTime += IncidentPenalty
		degScale = IncidentDegScale
	}
	lapTime += float64(age) * c.degradation(compound) * degScale
	if !incident {
		lapTime += cliffPenalty(compound, age)
	}
	lapTime += noise

	c.state.Fuel -= c.fuelBurn(incident, noise)
	health := math.Max(0, 100-(float64(age)/float64(compound.CliffAge()))*100)

	c.state.TireAge++
	c.state.LapsDone++
	c.state.RaceTime += lapTime

	c.history = append(c.history, model.LapRecord{
		Lap:      c.state.LapsDone,
		LapTime:  lapTime,
		Compound: compound,
		TireAge:  c.state.TireAge,
		Fuel:     c.state.Fuel,
		Rain:     c.state.IsRaining,
		Incident: incident,
		Health:   health,
		Pit:      c.pending,
	})
	c.pending = nil
	return lapTime
}

// PitStop fits a new set of tires and returns the time lost.
// The loss is reduced if the previous lap was run under an incident.
// The pit event is attached to the next simulated lap.
func (c *Car) PitStop(compound model.Compound, reason string) float64 {
	cost := PitLoss
	if n := len(c.history); n > 0 && c.history[n-1].Incident {
		cost = PitLossIncident
	}
	c.checkCompound(compound)

	c.state.Compound = compound
	c.state.TireAge = 0
	c.state.RaceTime += cost
	c.state.LastPitCost = cost

	if c.pending != nil {
		// two stops without a lap in between, the lap carries both
		c.pending.Cost += cost
		c.pending.Compound = compound
		c.pending.Reason = reason
	} else {
		c.pending = &model.PitEvent{Cost: cost, Reason: reason, Compound: compound}
	}
	c.l.Debug("pit stop",
		log.Int("lap", c.state.LapsDone+1),
		log.String("compound", compound.String()),
		log.String("reason", reason),
		log.Float64("cost", cost))
	return cost
}

// State returns a copy of the current car state
func (c *Car) State() model.CarState {
	return c.state
}

// History returns a copy of the completed laps
func (c *Car) History() []model.LapRecord {
	ret := make([]model.LapRecord, len(c.history))
	copy(ret, c.history)
	return ret
}

// LastLap returns the most recent lap record
func (c *Car) LastLap() (model.LapRecord, bool) {
	if len(c.history) == 0 {
		return model.LapRecord{}, false
	}
	return c.history[len(c.history)-1], true
}

func (c *Car) TotalRaceTime() float64 {
	return c.state.RaceTime
}

// Pending returns the pit event which will be attached to the next lap, if any
func (c *Car) Pending() *model.PitEvent {
	return c.pending
}

// Diagnostics returns fallbacks applied by this car, e.g. unknown compounds
func (c *Car) Diagnostics() []model.Diagnostic {
	return c.diags
}

func (c *Car) Team() model.TeamProfile {
	return c.team
}

func (c *Car) Track() model.TrackProfile {
	return c.track
}

// two state markov chain: raining or dry
func (c *Car) updateWeather() {
	if c.state.IsRaining {
		if bernoulli(c.rnd, RainStopProb) {
			c.state.IsRaining = false
		}
	} else if bernoulli(c.rnd, c.rainStart) {
		c.state.IsRaining = true
	}
}

func (c *Car) noise() float64 {
	if c.fixedNoise != nil {
		return *c.fixedNoise
	}
	return uniform(c.rnd, NoiseFactor*c.team.PaceFactor)
}

func (c *Car) weatherPenalty() float64 {
	wet := c.state.Compound.Wet()
	switch {
	case !c.state.IsRaining && wet:
		return DryInterPenalty
	case c.state.IsRaining && !wet:
		return WetSlickPenalty
	case c.state.IsRaining && wet:
		return WetInterPenalty
	default:
		return 0
	}
}

func (c *Car) degradation(compound model.Compound) float64 {
	if coeff, ok := c.degCoeffs[compound]; ok {
		return coeff
	}
	return model.DefaultDegradation
}

func (c *Car) fuelBurn(incident bool, noise float64) float64 {
	burn := c.track.BurnRate()
	if incident {
		burn *= burnIncident
	}
	if c.state.IsRaining {
		burn *= burnRain
	}
	switch c.state.Compound {
	case model.CompoundSoft:
		burn *= burnSoft
	case model.CompoundHard:
		burn *= burnHard
	}
	return max(burn-noise*burnNoiseFactor, MinLapBurn)
}

func (c *Car) checkCompound(compound model.Compound) {
	if compound.Known() {
		return
	}
	c.diags = append(c.diags, model.Diagnostic{
		Code: model.CodeUnknownCompound,
		Message: fmt.Sprintf("compound %q unknown, using degradation %.2f and no pace offset",
			compound, model.DefaultDegradation),
	})
}

func cliffPenalty(compound model.Compound, age int) float64 {
	threshold := 0
	switch compound {
	case model.CompoundSoft:
		threshold = SoftCliffAge
	case model.CompoundMedium:
		threshold = MediumCliffAge
	default:
		return 0
	}
	if age <= threshold {
		return 0
	}
	return CliffBase * math.Exp(CliffRate*float64(age-threshold))
}
