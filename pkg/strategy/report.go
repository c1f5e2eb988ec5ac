package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/model"
)

const (
	ClassOneStop = "1-stop"
	ClassTwoStop = "2-stop"
)

// Report is the outcome of a full optimization run
type Report struct {
	ID          string             `json:"id"`
	Team        model.TeamProfile  `json:"team"`
	Track       model.TrackProfile `json:"track"`
	Rain        int                `json:"rain"`
	Laps        int                `json:"laps"`
	Seed        uint64             `json:"seed"`
	Repetitions int                `json:"repetitions"`
	OneStop     Best               `json:"oneStop"`
	TwoStop     Best               `json:"twoStop"`
	Winner      string             `json:"winner"`
	// Margin is the advantage of the winner in seconds, rounded to 0.1.
	// Zero if only one class has candidates.
	Margin      decimal.Decimal    `json:"marginSeconds"`
	Diagnostics []model.Diagnostic `json:"diagnostics,omitempty"`
	Started     time.Time          `json:"started"`
	Finished    time.Time          `json:"finished"`
}

// Found reports whether the stop class had any candidate for the race distance
func (b Best) Found() bool {
	return b.Evaluated > 0
}

// WinnerStrategy returns the fastest strategy of the report
func (r *Report) WinnerStrategy() Best {
	if r.Winner == ClassTwoStop {
		return r.TwoStop
	}
	return r.OneStop
}

// Optimize searches both stop classes and compares the winners.
// The 2-stop strategy has to be strictly faster to win. A class without
// candidates for the race distance is left empty and the other class wins.
// ErrNoCandidates is returned only if both classes are empty.
func (o *Optimizer) Optimize(ctx context.Context) (*Report, error) {
	ctx, span := o.tracer.Start(ctx, "strategy.optimize")
	defer span.End()

	ret := &Report{
		ID:          uuid.New().String(),
		Team:        o.team,
		Track:       o.track,
		Rain:        o.rain,
		Laps:        o.laps,
		Seed:        o.seed,
		Repetitions: o.repetitions,
		Diagnostics: slices.Clone(o.diags),
		Started:     time.Now(),
	}
	var err error
	if ret.OneStop, err = o.optionalSearch(ctx, ret, ClassOneStop, o.FindOptimal1Stop); err != nil {
		return nil, err
	}
	if ret.TwoStop, err = o.optionalSearch(ctx, ret, ClassTwoStop, o.FindOptimal2Stop); err != nil {
		return nil, err
	}
	switch {
	case !ret.OneStop.Found() && !ret.TwoStop.Found():
		return nil, fmt.Errorf("%d laps: %w", o.laps, ErrNoCandidates)
	case !ret.TwoStop.Found():
		ret.Winner = ClassOneStop
	case !ret.OneStop.Found():
		ret.Winner = ClassTwoStop
	default:
		ret.Winner = ClassOneStop
		if ret.TwoStop.Minutes < ret.OneStop.Minutes {
			ret.Winner = ClassTwoStop
		}
		ret.Margin = decimal.NewFromFloat(
			math.Abs(ret.OneStop.Minutes-ret.TwoStop.Minutes) * 60).Round(1)
	}
	ret.Finished = time.Now()

	o.l.Info("optimization done",
		log.String("id", ret.ID),
		log.String("team", o.team.Name),
		log.String("track", o.track.Name),
		log.String("winner", ret.Winner),
		log.Stringer("margin", ret.Margin),
		log.Duration("duration", ret.Finished.Sub(ret.Started)))
	return ret, nil
}

// optionalSearch runs search. An empty grid yields an empty Best and a
// diagnostic in r instead of an error.
//
//nolint:whitespace // editor/linter issue
func (o *Optimizer) optionalSearch(
	ctx context.Context,
	r *Report,
	class string,
	search func(context.Context) (Best, error),
) (Best, error) {
	best, err := search(ctx)
	if errors.Is(err, ErrNoCandidates) {
		r.Diagnostics = append(r.Diagnostics, model.Diagnostic{
			Code:    model.CodeEmptySearchGrid,
			Message: fmt.Sprintf("no %s candidates for %d laps", class, o.laps),
		})
		return Best{}, nil
	}
	return best, err
}
