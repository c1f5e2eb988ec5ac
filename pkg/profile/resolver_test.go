//nolint:funlen // table tests
package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/model"
)

var (
	redBull = model.TeamProfile{Name: "Red Bull Racing", PaceFactor: 1.0, DegradationFactor: 0.9}
	haas    = model.TeamProfile{Name: "Haas F1 Team", PaceFactor: 1.016, DegradationFactor: 1.2}
	bahrain = model.TrackProfile{Name: "Bahrain", BaselineDegradation: 0.08, LapCount: 57, FuelBurn: 1.7}
	monaco  = model.TrackProfile{Name: "Monaco", BaselineDegradation: 0.02, LapCount: 78, FuelBurn: 1.35}
)

func newTestResolver(opts ...ResolverOption) *Resolver {
	src := NewStatic([]model.TeamProfile{redBull, haas}, []model.TrackProfile{bahrain, monaco})
	return NewResolver(src, append([]ResolverOption{WithResolverLogger(log.NewNop())}, opts...)...)
}

func TestResolverTeam(t *testing.T) {
	tests := []struct {
		name      string
		resolver  *Resolver
		team      string
		want      model.TeamProfile
		wantDiags int
		wantErr   error
	}{
		{name: "known", resolver: newTestResolver(), team: "Haas F1 Team", want: haas},
		{
			name:      "unknown uses neutral profile",
			resolver:  newTestResolver(),
			team:      "Brawn GP",
			want:      model.TeamProfile{Name: "Brawn GP", PaceFactor: 1.0, DegradationFactor: 1.0},
			wantDiags: 1,
		},
		{
			name:      "unknown uses configured reference team",
			resolver:  newTestResolver(WithReferenceTeam(ReferenceTeam)),
			team:      "Brawn GP",
			want:      model.TeamProfile{Name: "Brawn GP", PaceFactor: 1.0, DegradationFactor: 0.9},
			wantDiags: 1,
		},
		{
			name:      "reference team not in source",
			resolver:  newTestResolver(WithReferenceTeam("Tyrrell")),
			team:      "Brawn GP",
			want:      model.DefaultTeamProfile("Brawn GP"),
			wantDiags: 1,
		},
		{
			name:     "strict",
			resolver: newTestResolver(WithStrict(true)),
			team:     "Brawn GP",
			wantErr:  ErrUnknownTeam,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags, err := tt.resolver.Team(context.Background(), tt.team)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, diags, tt.wantDiags)
			for _, d := range diags {
				assert.Equal(t, model.CodeMissingTeamProfile, d.Code)
			}
		})
	}
}

func TestResolverTrack(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	got, diags, err := r.Track(ctx, "Bahrain")
	require.NoError(t, err)
	want := bahrain
	want.Tight = lo.ToPtr(false)
	assert.Equal(t, want, got)
	assert.Empty(t, diags)

	got, _, err = r.Track(ctx, "Monaco")
	require.NoError(t, err)
	assert.True(t, got.IsTight(), "Monaco is a default tight circuit")

	got, diags, err = r.Track(ctx, "Las Vegas")
	require.NoError(t, err)
	assert.True(t, got.IsTight())
	assert.Equal(t, model.DefaultLapCount, got.LapCount)
	require.Len(t, diags, 1)
	assert.Equal(t, model.CodeMissingTrackProfile, diags[0].Code)

	got, _, err = newTestResolver(WithTightCircuits("Bahrain")).Track(ctx, "Monaco")
	require.NoError(t, err)
	assert.False(t, got.IsTight())

	_, _, err = newTestResolver(WithStrict(true)).Track(ctx, "Imola")
	assert.ErrorIs(t, err, ErrUnknownTrack)
}

func TestResolverTrackTightFromSource(t *testing.T) {
	ctx := context.Background()
	open := monaco
	open.Tight = lo.ToPtr(false)
	street := bahrain
	street.Tight = lo.ToPtr(true)
	r := NewResolver(
		NewStatic(nil, []model.TrackProfile{open, street}),
		WithResolverLogger(log.NewNop()))

	got, _, err := r.Track(ctx, "Monaco")
	require.NoError(t, err)
	assert.False(t, got.IsTight(), "flag of the source wins over the default list")

	got, _, err = r.Track(ctx, "Bahrain")
	require.NoError(t, err)
	assert.True(t, got.IsTight())
}

func TestResolve(t *testing.T) {
	team, track, diags, err := newTestResolver().Resolve(context.Background(), "Brawn GP", "Imola")
	require.NoError(t, err)
	assert.Equal(t, "Brawn GP", team.Name)
	assert.Equal(t, "Imola", track.Name)
	assert.Len(t, diags, 2)
}

type failingSource struct{ *Static }

var errBroken = errors.New("broken")

func (failingSource) Team(context.Context, string) (*model.TeamProfile, error) {
	return nil, errBroken
}

func TestResolverSourceErrors(t *testing.T) {
	r := NewResolver(failingSource{NewStatic(nil, nil)}, WithResolverLogger(log.NewNop()))
	_, _, err := r.Team(context.Background(), "Haas F1 Team")
	assert.ErrorIs(t, err, errBroken)
	assert.NotErrorIs(t, err, ErrUnknownTeam)
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := NewStatic([]model.TeamProfile{redBull, haas}, []model.TrackProfile{monaco, bahrain})

	teams, err := s.Teams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.TeamProfile{haas, redBull}, teams)

	s.Replace([]model.TeamProfile{haas}, nil)
	_, err = s.Team(ctx, "Red Bull Racing")
	assert.ErrorIs(t, err, ErrNotFound)
	tracks, err := s.Tracks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.TrackProfile{bahrain, monaco}, tracks, "tracks are kept")
}
