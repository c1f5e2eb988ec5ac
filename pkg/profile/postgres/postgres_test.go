//nolint:funlen // ok for this test code
package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/samber/lo"
	"github.com/stephenafamo/bob"
	"gotest.tools/v3/assert"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/profile"
	"github.com/mpapenbr/racestrategy/testsupport/testdb"
)

var (
	sampleTeams = []model.TeamProfile{
		{Name: "Red Bull Racing", PaceFactor: 1.0, DegradationFactor: 0.912},
		{Name: "Haas F1 Team", PaceFactor: 1.0158, DegradationFactor: 1.224},
	}
	sampleTracks = []model.TrackProfile{
		{Name: "Monaco", BaselineDegradation: 0.0187, LapCount: 78, FuelBurn: 1.35, Tight: lo.ToPtr(true)},
		{Name: "Bahrain", BaselineDegradation: 0.0812, LapCount: 57, FuelBurn: 1.7},
	}
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()
	pool := testdb.InitTestDB()
	t.Cleanup(pool.Close)
	db := bob.NewDB(stdlib.OpenDBFromPool(pool))
	r := NewRepository(db, WithLogger(log.NewNop()))
	ctx := context.Background()
	assert.NilError(t, r.UpsertTeams(ctx, sampleTeams))
	assert.NilError(t, r.UpsertTracks(ctx, sampleTracks))
	return r
}

func TestLookup(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	team, err := r.Team(ctx, "Haas F1 Team")
	assert.NilError(t, err)
	assert.DeepEqual(t, *team, sampleTeams[1])

	track, err := r.Track(ctx, "Monaco")
	assert.NilError(t, err)
	assert.DeepEqual(t, *track, sampleTracks[0])

	_, err = r.Team(ctx, "Brawn GP")
	assert.ErrorIs(t, err, profile.ErrNotFound)
	_, err = r.Track(ctx, "Imola")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestLoadAll(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	teams, err := r.Teams(ctx)
	assert.NilError(t, err)
	assert.DeepEqual(t, teams, []model.TeamProfile{sampleTeams[1], sampleTeams[0]})

	tracks, err := r.Tracks(ctx)
	assert.NilError(t, err)
	assert.DeepEqual(t, tracks, []model.TrackProfile{sampleTracks[1], sampleTracks[0]})
}

func TestUpsertInvalidatesCache(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	team, err := r.Team(ctx, "Haas F1 Team")
	assert.NilError(t, err)
	assert.Equal(t, team.DegradationFactor, 1.224)

	update := sampleTeams[1]
	update.DegradationFactor = 1.1
	assert.NilError(t, r.UpsertTeams(ctx, []model.TeamProfile{update}))

	team, err = r.Team(ctx, "Haas F1 Team")
	assert.NilError(t, err)
	assert.Equal(t, team.DegradationFactor, 1.1)

	teams, err := r.Teams(ctx)
	assert.NilError(t, err)
	assert.Equal(t, len(teams), 2)
}

func TestUpsertReplacesCachedMiss(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	_, err := r.Track(ctx, "Imola")
	assert.ErrorIs(t, err, profile.ErrNotFound)

	imola := model.TrackProfile{Name: "Imola", BaselineDegradation: 0.05, LapCount: 63}
	assert.NilError(t, r.UpsertTracks(ctx, []model.TrackProfile{imola}))

	track, err := r.Track(ctx, "Imola")
	assert.NilError(t, err)
	assert.Equal(t, track.LapCount, 63)
	assert.Equal(t, track.FuelBurn, model.DefaultFuelBurn)
}

func TestResolverWithRepository(t *testing.T) {
	r := newTestRepository(t)
	res := profile.NewResolver(r, profile.WithResolverLogger(log.NewNop()))
	team, track, diags, err := res.Resolve(context.Background(), "Williams", "Monaco")
	assert.NilError(t, err)
	assert.Equal(t, len(diags), 1)
	assert.Equal(t, team.PaceFactor, 1.0)
	assert.Equal(t, team.DegradationFactor, 1.0)
	assert.Assert(t, track.IsTight())

	// no tight flag stored, Bahrain is not in the default list
	_, track, _, err = res.Resolve(context.Background(), "Haas F1 Team", "Bahrain")
	assert.NilError(t, err)
	assert.Assert(t, track.Tight != nil && !*track.Tight)
}
