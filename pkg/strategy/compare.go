package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/simulation"
)

var ErrInvalidRuns = errors.New("number of runs must be positive")

type (
	// Stats summarizes race times in minutes
	Stats struct {
		Mean   float64 `json:"mean"`
		StdDev float64 `json:"stdDev"`
		Min    float64 `json:"min"`
		Max    float64 `json:"max"`
	}
	// Comparison is a Monte-Carlo head-to-head of two strategies
	Comparison struct {
		A        model.Strategy `json:"a"`
		B        model.Strategy `json:"b"`
		Runs     int            `json:"runs"`
		Seed     uint64         `json:"seed"`
		StatsA   Stats          `json:"statsA"`
		StatsB   Stats          `json:"statsB"`
		WinRateA float64        `json:"winRateA"` // fraction of runs A was strictly faster
	}
)

// Compare races a and b runs times each. Run k of both strategies uses the same
// random stream (seed, k), so both face the same weather and incident draws as
// long as their laps consume the same random values.
//
//nolint:whitespace // editor/linter issue
func (o *Optimizer) Compare(
	ctx context.Context,
	a, b model.Strategy,
	runs int,
) (*Comparison, error) {
	if runs < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRuns, runs)
	}
	ctx, span := o.tracer.Start(ctx, "strategy.compare")
	defer span.End()
	span.SetAttributes(attribute.Int("runs", runs))

	timesA := make([]float64, runs)
	timesB := make([]float64, runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for k := range runs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			timesA[k] = o.EvaluateStrategy(a, simulation.NewRandom(o.seed, uint64(k))).Minutes
			timesB[k] = o.EvaluateStrategy(b, simulation.NewRandom(o.seed, uint64(k))).Minutes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.evaluations.Add(ctx, int64(2*runs))

	wins := lo.CountBy(lo.Range(runs), func(k int) bool {
		return timesA[k] < timesB[k]
	})
	return &Comparison{
		A:        a,
		B:        b,
		Runs:     runs,
		Seed:     o.seed,
		StatsA:   computeStats(timesA),
		StatsB:   computeStats(timesB),
		WinRateA: float64(wins) / float64(runs),
	}, nil
}

// computeStats returns the population statistics of values (must not be empty)
func computeStats(values []float64) Stats {
	mean := lo.Mean(values)
	variance := lo.SumBy(values, func(v float64) float64 {
		return (v - mean) * (v - mean)
	}) / float64(len(values))
	return Stats{
		Mean:   mean,
		StdDev: math.Sqrt(variance),
		Min:    lo.Min(values),
		Max:    lo.Max(values),
	}
}
