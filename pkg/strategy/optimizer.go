package strategy

import (
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/simulation"
)

var meter = otel.Meter("racestrategy/strategy")

type (
	Option func(*Optimizer)
	// Optimizer runs races for a fixed team, track and weather setting.
	// It is safe for concurrent use, every race owns its own car and random source.
	Optimizer struct {
		team        model.TeamProfile
		track       model.TrackProfile
		rain        int
		laps        int
		seed        uint64
		parallelism int
		repetitions int
		carOpts     []simulation.Option
		diags       []model.Diagnostic

		l           *log.Logger
		tracer      trace.Tracer
		evaluations metric.Int64Counter
		duration    metric.Float64Histogram
	}
	// Evaluation is the outcome of a single race
	Evaluation struct {
		Minutes     float64
		Strategy    model.Strategy
		Car         *simulation.Car
		Diagnostics []model.Diagnostic
	}
)

func WithSeed(seed uint64) Option {
	return func(o *Optimizer) {
		o.seed = seed
	}
}

// WithParallelism limits the number of concurrent race evaluations.
// Values < 1 are ignored.
func WithParallelism(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithRepetitions sets the number of races per candidate. The candidate score
// is the mean of all races. Values < 1 are ignored.
func WithRepetitions(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.repetitions = n
		}
	}
}

// WithLaps overrides the lap count of the track
func WithLaps(laps int) Option {
	return func(o *Optimizer) {
		if laps > 0 {
			o.laps = laps
		}
	}
}

// WithCarOptions are applied to every car created by the optimizer
func WithCarOptions(opts ...simulation.Option) Option {
	return func(o *Optimizer) {
		o.carOpts = append(o.carOpts, opts...)
	}
}

// WithDiagnostics adds diagnostics collected while resolving the profiles.
// They are carried into every Evaluation and Report.
func WithDiagnostics(diags ...model.Diagnostic) Option {
	return func(o *Optimizer) {
		o.diags = append(o.diags, diags...)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *Optimizer) {
		o.l = l
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Optimizer) {
		o.tracer = tracer
	}
}

//nolint:whitespace // editor/linter issue
func NewOptimizer(
	team model.TeamProfile,
	track model.TrackProfile,
	rain int,
	opts ...Option,
) *Optimizer {
	ret := &Optimizer{
		team:        team,
		track:       track,
		rain:        rain,
		laps:        track.Laps(),
		parallelism: runtime.GOMAXPROCS(0),
		repetitions: 1,
		l:           log.Default().Named("strategy"),
	}
	//nolint:gosec // no crypto needed
	ret.seed = uint64(time.Now().UnixNano())
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("racestrategy")
	}
	ret.evaluations, _ = meter.Int64Counter("strategy_evaluations",
		metric.WithDescription("number of simulated races"))
	ret.duration, _ = meter.Float64Histogram("strategy_search",
		metric.WithDescription("duration of a strategy search"),
		metric.WithUnit("s"))
	return ret
}

func (o *Optimizer) Team() model.TeamProfile   { return o.team }
func (o *Optimizer) Track() model.TrackProfile { return o.track }
func (o *Optimizer) Rain() int                 { return o.rain }
func (o *Optimizer) Laps() int                 { return o.laps }
func (o *Optimizer) Seed() uint64              { return o.seed }
func (o *Optimizer) Repetitions() int          { return o.repetitions }

// Diagnostics returns the diagnostics passed with WithDiagnostics
func (o *Optimizer) Diagnostics() []model.Diagnostic {
	return slices.Clone(o.diags)
}

// Evaluate runs one full race. compounds[0] is the starting compound, each time a
// stop lap is reached the next compound is fitted. Stop laps are applied in lap
// order, duplicates count once. Laps outside the race and stops without a
// compound are skipped and reported as diagnostics.
//
//nolint:whitespace // editor/linter issue
func (o *Optimizer) Evaluate(
	stopLaps []int,
	compounds []model.Compound,
	rnd simulation.Random,
) Evaluation {
	laps := lo.Uniq(stopLaps)
	slices.Sort(laps)
	var diags []model.Diagnostic
	laps = lo.Filter(laps, func(lap int, _ int) bool {
		if lap >= 1 && lap <= o.laps {
			return true
		}
		diags = append(diags, model.Diagnostic{
			Code:    model.CodeMalformedStrategy,
			Message: fmt.Sprintf("stop at lap %d is outside the race, stop skipped", lap),
		})
		return false
	})
	s, more := model.NewStrategy(laps, compounds)
	diags = append(diags, more...)
	ret := o.EvaluateStrategy(s, rnd)
	ret.Diagnostics = append(slices.Clone(o.diags), append(diags, ret.Car.Diagnostics()...)...)
	return ret
}

// EvaluateStrategy runs one full race for s without further checks
func (o *Optimizer) EvaluateStrategy(s model.Strategy, rnd simulation.Random) Evaluation {
	opts := make([]simulation.Option, 0, len(o.carOpts)+3)
	opts = append(opts, o.carOpts...)
	opts = append(opts,
		simulation.WithRandom(rnd),
		simulation.WithStartCompound(s.Start),
		simulation.WithLogger(o.l.Named("sim")))
	car := simulation.NewCar(o.team, o.track, o.rain, opts...)

	next := 0
	for lap := 1; lap <= o.laps; lap++ {
		if next < len(s.Stops) && s.Stops[next].Lap == lap {
			car.PitStop(s.Stops[next].Compound, simulation.PitReason(car))
			next++
		}
		car.SimulateLap()
	}
	return Evaluation{
		Minutes:     car.TotalRaceTime() / 60,
		Strategy:    s,
		Car:         car,
		Diagnostics: append(slices.Clone(o.diags), car.Diagnostics()...),
	}
}

// Replay runs a single race for s using the random stream of the optimizer seed.
// The returned car holds the lap history including pit events and reasons.
func (o *Optimizer) Replay(s model.Strategy, stream uint64) *simulation.Car {
	return o.EvaluateStrategy(s, simulation.NewRandom(o.seed, stream)).Car
}
