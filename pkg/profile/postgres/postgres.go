//nolint:whitespace // can't make both editor and linter happy
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/profile"
	"github.com/mpapenbr/racestrategy/pkg/utils/cache"
	"github.com/mpapenbr/racestrategy/pkg/utils/cache/loadercache"
)

const (
	teamTable  = "team_profile"
	trackTable = "track_profile"
)

type (
	Option func(*repo)
	repo   struct {
		conn       bob.Executor
		expiration time.Duration
		teamCache  cache.Cache[string, model.TeamProfile]
		trackCache cache.Cache[string, model.TrackProfile]
		l          *log.Logger
	}
	// Repository is a profile.Source backed by the profile tables
	Repository interface {
		profile.Source
		UpsertTeams(ctx context.Context, teams []model.TeamProfile) error
		UpsertTracks(ctx context.Context, tracks []model.TrackProfile) error
	}
	teamRow struct {
		Name              string
		PaceFactor        decimal.Decimal
		DegradationFactor decimal.Decimal
	}
	trackRow struct {
		Name                string
		BaselineDegradation decimal.Decimal
		LapCount            int32
		FuelBurn            decimal.Decimal
		Tight               *bool
	}
)

var _ Repository = (*repo)(nil)

// WithExpiration sets how long looked up profiles are cached
func WithExpiration(d time.Duration) Option {
	return func(r *repo) {
		r.expiration = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *repo) {
		r.l = l
	}
}

func NewRepository(conn bob.Executor, opts ...Option) Repository {
	ret := &repo{
		conn:       conn,
		expiration: 5 * time.Minute,
		l:          log.Default().Named("profile.db"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	// unknown names are asked for on every resolve, keep the misses too
	notFound := func(err error) bool { return errors.Is(err, profile.ErrNotFound) }
	ret.teamCache = loadercache.New(
		loadercache.WithExpiration[string, model.TeamProfile](ret.expiration),
		loadercache.WithLogger[string, model.TeamProfile](ret.l),
		loadercache.WithCachedErrors[string, model.TeamProfile](notFound),
		loadercache.WithLoader(ret.loadTeam))
	ret.trackCache = loadercache.New(
		loadercache.WithExpiration[string, model.TrackProfile](ret.expiration),
		loadercache.WithLogger[string, model.TrackProfile](ret.l),
		loadercache.WithCachedErrors[string, model.TrackProfile](notFound),
		loadercache.WithLoader(ret.loadTrack))
	return ret
}

func (r *repo) Team(ctx context.Context, name string) (*model.TeamProfile, error) {
	return r.teamCache.Get(ctx, name)
}

func (r *repo) Track(ctx context.Context, name string) (*model.TrackProfile, error) {
	return r.trackCache.Get(ctx, name)
}

func (r *repo) Teams(ctx context.Context) ([]model.TeamProfile, error) {
	q := psql.Select(
		sm.Columns("name", "pace_factor", "degradation_factor"),
		sm.From(teamTable),
		sm.OrderBy("name").Asc(),
	)
	res, err := bob.All(ctx, r.conn, q, scan.StructMapper[teamRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]model.TeamProfile, len(res))
	for i := range res {
		ret[i] = res[i].toModel()
	}
	return ret, nil
}

func (r *repo) Tracks(ctx context.Context) ([]model.TrackProfile, error) {
	q := psql.Select(
		sm.Columns("name", "baseline_degradation", "lap_count", "fuel_burn", "tight"),
		sm.From(trackTable),
		sm.OrderBy("name").Asc(),
	)
	res, err := bob.All(ctx, r.conn, q, scan.StructMapper[trackRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]model.TrackProfile, len(res))
	for i := range res {
		ret[i] = res[i].toModel()
	}
	return ret, nil
}

// UpsertTeams inserts or updates the given teams
func (r *repo) UpsertTeams(ctx context.Context, teams []model.TeamProfile) error {
	for i := range teams {
		q := psql.Insert(
			im.Into(teamTable, "name", "pace_factor", "degradation_factor"),
			im.Values(
				psql.Arg(teams[i].Name),
				psql.Arg(decimal.NewFromFloat(teams[i].PaceFactor)),
				psql.Arg(decimal.NewFromFloat(teams[i].DegradationFactor))),
			im.OnConflict("name").DoUpdate(
				im.SetExcluded("pace_factor", "degradation_factor")),
		)
		if _, err := bob.Exec(ctx, r.conn, q); err != nil {
			return fmt.Errorf("upsert team %q: %w", teams[i].Name, err)
		}
		stored := teams[i]
		r.teamCache.Set(ctx, stored.Name, &stored)
	}
	return nil
}

// UpsertTracks inserts or updates the given tracks
func (r *repo) UpsertTracks(ctx context.Context, tracks []model.TrackProfile) error {
	for i := range tracks {
		t := tracks[i]
		q := psql.Insert(
			im.Into(trackTable, "name", "baseline_degradation", "lap_count", "fuel_burn", "tight"),
			im.Values(
				psql.Arg(t.Name),
				psql.Arg(decimal.NewFromFloat(t.BaselineDegradation)),
				psql.Arg(int32(t.Laps())),
				psql.Arg(decimal.NewFromFloat(t.BurnRate())),
				psql.Arg(t.Tight)),
			im.OnConflict("name").DoUpdate(
				im.SetExcluded("baseline_degradation", "lap_count", "fuel_burn", "tight")),
		)
		if _, err := bob.Exec(ctx, r.conn, q); err != nil {
			return fmt.Errorf("upsert track %q: %w", t.Name, err)
		}
		t.LapCount = t.Laps()
		t.FuelBurn = t.BurnRate()
		r.trackCache.Set(ctx, t.Name, &t)
	}
	return nil
}

func (r *repo) loadTeam(ctx context.Context, name string) (*model.TeamProfile, error) {
	q := psql.Select(
		sm.Columns("name", "pace_factor", "degradation_factor"),
		sm.From(teamTable),
		sm.Where(psql.Quote("name").EQ(psql.Arg(name))),
	)
	res, err := bob.One(ctx, r.conn, q, scan.StructMapper[teamRow]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ret := res.toModel()
	return &ret, nil
}

func (r *repo) loadTrack(ctx context.Context, name string) (*model.TrackProfile, error) {
	q := psql.Select(
		sm.Columns("name", "baseline_degradation", "lap_count", "fuel_burn", "tight"),
		sm.From(trackTable),
		sm.Where(psql.Quote("name").EQ(psql.Arg(name))),
	)
	res, err := bob.One(ctx, r.conn, q, scan.StructMapper[trackRow]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ret := res.toModel()
	return &ret, nil
}

func (t teamRow) toModel() model.TeamProfile {
	return model.TeamProfile{
		Name:              t.Name,
		PaceFactor:        t.PaceFactor.InexactFloat64(),
		DegradationFactor: t.DegradationFactor.InexactFloat64(),
	}
}

func (t trackRow) toModel() model.TrackProfile {
	return model.TrackProfile{
		Name:                t.Name,
		BaselineDegradation: t.BaselineDegradation.InexactFloat64(),
		LapCount:            int(t.LapCount),
		FuelBurn:            t.FuelBurn.InexactFloat64(),
		Tight:               t.Tight,
	}
}
