//nolint:funlen // table tests
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/profile"
	"github.com/mpapenbr/racestrategy/pkg/strategy"
)

var (
	testTeams = []model.TeamProfile{
		{Name: "Red Bull Racing", PaceFactor: 1.0, DegradationFactor: 0.912},
		{Name: "Williams", PaceFactor: 1.012, DegradationFactor: 1.1},
	}
	testTracks = []model.TrackProfile{
		{Name: "Bahrain", BaselineDegradation: 0.08, LapCount: 57, FuelBurn: 1.7},
		{Name: "Monaco", BaselineDegradation: 0.02, LapCount: 78, FuelBurn: 1.35},
	}
)

type recordingPublisher struct {
	reports     []*strategy.Report
	comparisons map[string][]*strategy.Comparison
}

func (p *recordingPublisher) PublishReport(_ context.Context, r *strategy.Report) error {
	p.reports = append(p.reports, r)
	return nil
}

//nolint:whitespace // editor/linter issue
func (p *recordingPublisher) PublishComparison(
	_ context.Context,
	track string,
	c *strategy.Comparison,
) error {
	if p.comparisons == nil {
		p.comparisons = map[string][]*strategy.Comparison{}
	}
	p.comparisons[track] = append(p.comparisons[track], c)
	return nil
}

func newTestServer(strict bool, opts ...Option) http.Handler {
	res := profile.NewResolver(
		profile.NewStatic(testTeams, testTracks),
		profile.WithStrict(strict),
		profile.WithResolverLogger(log.NewNop()))
	opts = append([]Option{WithLogger(log.NewNop()), WithParallelism(2)}, opts...)
	return New(res, opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var ret T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret))
	return ret
}

func TestHealthAndListings(t *testing.T) {
	h := newTestServer(false)

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/teams", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testTeams, decodeBody[[]model.TeamProfile](t, rec))

	rec = do(t, h, http.MethodGet, "/v1/tracks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testTracks, decodeBody[[]model.TrackProfile](t, rec))

	rec = do(t, h, http.MethodGet, "/v1/evaluate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEvaluate(t *testing.T) {
	h := newTestServer(false)
	body := `{"team":"Williams","track":"Monaco","seed":7,"strategy":"40:MEDIUM,HARD"}`

	rec := do(t, h, http.MethodPost, "/v1/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[evaluateResponse](t, rec)
	assert.Equal(t, uint64(7), got.Seed)
	assert.Len(t, got.Laps, 78)
	assert.Equal(t, "40:MEDIUM,HARD", got.Strategy.String())
	assert.Greater(t, got.Minutes, 78*1.5)
	assert.Empty(t, got.Diagnostics)
	require.NotNil(t, got.Laps[39].Pit)
	assert.Equal(t, model.CompoundHard, got.Laps[39].Pit.Compound)

	// same seed, same race
	again := decodeBody[evaluateResponse](t, do(t, h, http.MethodPost, "/v1/evaluate", body))
	assert.Equal(t, got.Minutes, again.Minutes)
}

func TestEvaluateFallbackDiagnostics(t *testing.T) {
	h := newTestServer(false)
	rec := do(t, h, http.MethodPost, "/v1/evaluate",
		`{"team":"Brawn GP","track":"Bahrain","seed":1,"strategy":"28:SOFT,HARD"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[evaluateResponse](t, rec)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, model.CodeMissingTeamProfile, got.Diagnostics[0].Code)
}

func TestBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		path   string
		body   string
	}{
		{"broken json", false, "/v1/evaluate", `{"team":`},
		{"unknown field", false, "/v1/evaluate", `{"team":"Williams","track":"Bahrain","foo":1}`},
		{"missing track", false, "/v1/evaluate", `{"team":"Williams","strategy":"SOFT"}`},
		{"rain out of range", false, "/v1/evaluate",
			`{"team":"Williams","track":"Bahrain","rain":150,"strategy":"SOFT"}`},
		{"invalid laps", false, "/v1/evaluate",
			`{"team":"Williams","track":"Bahrain","laps":0,"strategy":"SOFT"}`},
		{"unparsable strategy", false, "/v1/evaluate",
			`{"team":"Williams","track":"Bahrain","strategy":"28:SOFT"}`},
		{"stop after finish", false, "/v1/evaluate",
			`{"team":"Williams","track":"Bahrain","strategy":"60:SOFT,HARD"}`},
		{"unknown team strict", true, "/v1/evaluate",
			`{"team":"Brawn GP","track":"Bahrain","strategy":"SOFT"}`},
		{"unknown track strict", true, "/v1/optimize", `{"team":"Williams","track":"Imola"}`},
		{"too many repetitions", false, "/v1/optimize",
			`{"team":"Williams","track":"Bahrain","repetitions":1000}`},
		{"race too short", false, "/v1/optimize", `{"team":"Williams","track":"Bahrain","laps":10}`},
		{"zero runs", false, "/v1/compare",
			`{"team":"Williams","track":"Bahrain","a":"SOFT","b":"HARD","runs":0}`},
		{"invalid b", false, "/v1/compare",
			`{"team":"Williams","track":"Bahrain","a":"SOFT","b":"SLICK"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(tt.strict), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody[map[string]string](t, rec)["error"])
		})
	}
}

func TestOptimize(t *testing.T) {
	pub := &recordingPublisher{}
	h := newTestServer(false, WithPublisher(pub))
	rec := do(t, h, http.MethodPost, "/v1/optimize",
		`{"team":"Red Bull Racing","track":"Bahrain","seed":42}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[map[string]any](t, rec)
	assert.Contains(t, []any{strategy.ClassOneStop, strategy.ClassTwoStop}, got["winner"])
	assert.InDelta(t, 42.0, got["seed"], 0)
	require.Len(t, pub.reports, 1)
	assert.Equal(t, pub.reports[0].ID, got["id"])
	assert.Equal(t, 1, pub.reports[0].OneStop.Strategy.NumStops())
	assert.Equal(t, 2, pub.reports[0].TwoStop.Strategy.NumStops())
}

func TestCompare(t *testing.T) {
	h := newTestServer(false)
	rec := do(t, h, http.MethodPost, "/v1/compare",
		`{"team":"Williams","track":"Bahrain","seed":3,"a":"28:SOFT,HARD","b":"SOFT","runs":20}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got strategy.Comparison
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 20, got.Runs)
	assert.Equal(t, uint64(3), got.Seed)
	// running soft tires for the whole race ends far beyond the cliff
	assert.InDelta(t, 1.0, got.WinRateA, 0)
	assert.Less(t, got.StatsA.Mean, got.StatsB.Mean)
}

func TestComparePublishes(t *testing.T) {
	pub := &recordingPublisher{}
	h := newTestServer(false, WithPublisher(pub))
	rec := do(t, h, http.MethodPost, "/v1/compare",
		`{"team":"Williams","track":"Bahrain","seed":3,"a":"28:SOFT,HARD","b":"SOFT","runs":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got strategy.Comparison
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, pub.comparisons["Bahrain"], 1)
	published := pub.comparisons["Bahrain"][0]
	assert.Equal(t, got.Runs, published.Runs)
	assert.Equal(t, got.Seed, published.Seed)
	assert.Equal(t, "28:SOFT,HARD", published.A.String())
	assert.Empty(t, pub.reports)
}
