package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/simulation"
)

var ErrNoCandidates = errors.New("no candidates for this race distance")

// search grid
const (
	OneStopFirst  = 15 // first pit lap, inclusive
	OneStopLast   = 45 // exclusive
	TwoStopFirst  = 12
	TwoStopLast   = 30
	TwoStopGap    = 15 // minimum laps between both stops
	TwoStopSecond = 50 // exclusive upper bound of the second stop
)

var (
	OneStopSequences = [][]model.Compound{
		{model.CompoundSoft, model.CompoundHard},
		{model.CompoundSoft, model.CompoundMedium},
		{model.CompoundMedium, model.CompoundHard},
	}
	TwoStopSequences = [][]model.Compound{
		{model.CompoundSoft, model.CompoundHard, model.CompoundSoft},
		{model.CompoundSoft, model.CompoundMedium, model.CompoundSoft},
		{model.CompoundSoft, model.CompoundHard, model.CompoundMedium},
	}
)

type (
	// Best is the fastest candidate of a stop class
	Best struct {
		Minutes   float64        `json:"minutes"`
		Strategy  model.Strategy `json:"strategy"`
		Evaluated int            `json:"evaluated"`
	}
	scored struct {
		idx     int
		minutes float64
	}
)

// OneStopCandidates enumerates the 1-stop grid in search order.
// Stops not inside [1, laps-1] are dropped.
func OneStopCandidates(laps int) []model.Strategy {
	ret := []model.Strategy{}
	for lap := OneStopFirst; lap < OneStopLast; lap++ {
		if lap > laps-1 {
			break
		}
		for _, seq := range OneStopSequences {
			s, _ := model.NewStrategy([]int{lap}, seq)
			ret = append(ret, s)
		}
	}
	return ret
}

// TwoStopCandidates enumerates the 2-stop grid in search order.
// Stops not inside [1, laps-1] are dropped.
func TwoStopCandidates(laps int) []model.Strategy {
	ret := []model.Strategy{}
	for first := TwoStopFirst; first < TwoStopLast; first++ {
		for second := first + TwoStopGap; second < TwoStopSecond; second++ {
			if second > laps-1 {
				break
			}
			for _, seq := range TwoStopSequences {
				s, _ := model.NewStrategy([]int{first, second}, seq)
				ret = append(ret, s)
			}
		}
	}
	return ret
}

// FindOptimal1Stop returns the fastest strategy of the 1-stop grid.
// On equal times the candidate enumerated first wins.
func (o *Optimizer) FindOptimal1Stop(ctx context.Context) (Best, error) {
	return o.Search(ctx, "1-stop", OneStopCandidates(o.laps))
}

// FindOptimal2Stop returns the fastest strategy of the 2-stop grid.
// On equal times the candidate enumerated first wins.
func (o *Optimizer) FindOptimal2Stop(ctx context.Context) (Best, error) {
	return o.Search(ctx, "2-stop", TwoStopCandidates(o.laps))
}

// Search evaluates all candidates in parallel and returns the fastest one.
// Candidate i is raced with the random streams derived from (seed, i), so the
// result does not depend on the number of workers.
//
//nolint:whitespace // editor/linter issue
func (o *Optimizer) Search(
	ctx context.Context,
	class string,
	candidates []model.Strategy,
) (Best, error) {
	ctx, span := o.tracer.Start(ctx, "strategy.search")
	defer span.End()
	span.SetAttributes(
		attribute.String("class", class),
		attribute.Int("candidates", len(candidates)),
		attribute.Int("repetitions", o.repetitions))

	if len(candidates) == 0 {
		return Best{}, fmt.Errorf("%s: %w", class, ErrNoCandidates)
	}
	start := time.Now()
	results := make([]scored, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for i, c := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = scored{idx: i, minutes: o.score(gctx, i, c)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Best{}, err
	}
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Best{}, err
	}

	best := lo.MinBy(results, func(a, b scored) bool {
		return a.minutes < b.minutes
	})
	o.duration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("class", class)))
	o.l.Debug("search done",
		log.String("class", class),
		log.Int("candidates", len(candidates)),
		log.String("best", candidates[best.idx].String()),
		log.Float64("minutes", best.minutes),
		log.Duration("duration", time.Since(start)))
	return Best{
		Minutes:   best.minutes,
		Strategy:  candidates[best.idx],
		Evaluated: len(candidates),
	}, nil
}

// score returns the mean race time in minutes of candidate idx
func (o *Optimizer) score(ctx context.Context, idx int, s model.Strategy) float64 {
	sum := 0.0
	for r := range o.repetitions {
		rnd := simulation.NewRandom(o.seed, o.stream(idx, r))
		sum += o.EvaluateStrategy(s, rnd).Minutes
	}
	o.evaluations.Add(ctx, int64(o.repetitions))
	return sum / float64(o.repetitions)
}

// stream maps candidate and repetition to a PCG stream.
// With a single repetition candidate i uses stream i.
func (o *Optimizer) stream(idx, rep int) uint64 {
	return uint64(idx*o.repetitions + rep)
}
