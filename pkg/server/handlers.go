package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aarondl/opt/omit"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/profile"
	"github.com/mpapenbr/racestrategy/pkg/simulation"
	"github.com/mpapenbr/racestrategy/pkg/strategy"
)

var badRequestErrors = []error{
	errBadRequest,
	model.ErrInvalidStrategy,
	profile.ErrUnknownTeam,
	profile.ErrUnknownTrack,
	strategy.ErrInvalidRuns,
	strategy.ErrNoCandidates,
}

type (
	raceRequest struct {
		Team  string           `json:"team"`
		Track string           `json:"track"`
		Rain  omit.Val[int]    `json:"rain"`
		Laps  omit.Val[int]    `json:"laps"`
		Seed  omit.Val[uint64] `json:"seed"`
	}
	evaluateRequest struct {
		raceRequest
		Strategy string `json:"strategy"`
	}
	optimizeRequest struct {
		raceRequest
		Repetitions omit.Val[int] `json:"repetitions"`
	}
	compareRequest struct {
		raceRequest
		A    string        `json:"a"`
		B    string        `json:"b"`
		Runs omit.Val[int] `json:"runs"`
	}

	evaluateResponse struct {
		Minutes     float64            `json:"minutes"`
		Strategy    model.Strategy     `json:"strategy"`
		Seed        uint64             `json:"seed"`
		Laps        []model.LapRecord  `json:"laps"`
		Diagnostics []model.Diagnostic `json:"diagnostics,omitempty"`
	}
	compareResponse struct {
		*strategy.Comparison
		Diagnostics []model.Diagnostic `json:"diagnostics,omitempty"`
	}
)

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.optimizer(r.Context(), req.raceRequest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := parseStrategy(req.Strategy, o.Laps())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res := o.EvaluateStrategy(st, simulation.NewRandom(o.Seed(), 0))
	s.writeJSON(w, http.StatusOK, evaluateResponse{
		Minutes:     res.Minutes,
		Strategy:    res.Strategy,
		Seed:        o.Seed(),
		Laps:        res.Car.History(),
		Diagnostics: res.Diagnostics,
	})
}

func (s *Server) optimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reps := req.Repetitions.GetOr(1)
	if reps < 1 || reps > MaxRepetitions {
		s.writeError(w, r, fmt.Errorf("%w: repetitions must be in [1,%d]",
			errBadRequest, MaxRepetitions))
		return
	}
	o, err := s.optimizer(r.Context(), req.raceRequest, strategy.WithRepetitions(reps))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := o.Optimize(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.publisher != nil {
		if err := s.publisher.PublishReport(r.Context(), report); err != nil {
			s.l.Warn("could not publish report", log.String("id", report.ID), log.ErrorField(err))
		}
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	runs := req.Runs.GetOr(DefaultRuns)
	if runs > MaxRuns {
		s.writeError(w, r, fmt.Errorf("%w: at most %d runs", errBadRequest, MaxRuns))
		return
	}
	o, err := s.optimizer(r.Context(), req.raceRequest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := parseStrategy(req.A, o.Laps())
	if err != nil {
		s.writeError(w, r, fmt.Errorf("strategy a: %w", err))
		return
	}
	b, err := parseStrategy(req.B, o.Laps())
	if err != nil {
		s.writeError(w, r, fmt.Errorf("strategy b: %w", err))
		return
	}
	c, err := o.Compare(r.Context(), a, b, runs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.publisher != nil {
		track := o.Track().Name
		if err := s.publisher.PublishComparison(r.Context(), track, c); err != nil {
			s.l.Warn("could not publish comparison",
				log.String("track", track), log.ErrorField(err))
		}
	}
	s.writeJSON(w, http.StatusOK, compareResponse{Comparison: c, Diagnostics: o.Diagnostics()})
}

//nolint:whitespace // editor/linter issue
func (s *Server) optimizer(
	ctx context.Context,
	req raceRequest,
	opts ...strategy.Option,
) (*strategy.Optimizer, error) {
	if req.Team == "" || req.Track == "" {
		return nil, fmt.Errorf("%w: team and track are required", errBadRequest)
	}
	rain := req.Rain.GetOr(0)
	if rain < 0 || rain > 100 {
		return nil, fmt.Errorf("%w: rain must be in [0,100]", errBadRequest)
	}
	team, track, diags, err := s.resolver.Resolve(ctx, req.Team, req.Track)
	if err != nil {
		return nil, err
	}
	opts = append([]strategy.Option{
		strategy.WithSeed(req.Seed.GetOr(s.seed())),
		strategy.WithParallelism(s.parallelism),
		strategy.WithDiagnostics(diags...),
		strategy.WithLogger(s.l.Named("strategy")),
	}, opts...)
	if laps, ok := req.Laps.Get(); ok {
		if laps < 1 {
			return nil, fmt.Errorf("%w: laps must be positive", errBadRequest)
		}
		opts = append(opts, strategy.WithLaps(laps))
	}
	return strategy.NewOptimizer(team, track, rain, opts...), nil
}

func parseStrategy(text string, laps int) (model.Strategy, error) {
	st, err := model.ParseStrategy(text)
	if err != nil {
		return model.Strategy{}, err
	}
	if err := st.Validate(laps); err != nil {
		return model.Strategy{}, err
	}
	return st, nil
}
