package optimize

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/strategy"
)

func TestWriteReport(t *testing.T) {
	one, err := model.ParseStrategy("24:MEDIUM,HARD")
	require.NoError(t, err)
	two, err := model.ParseStrategy("16,35:SOFT,HARD,SOFT")
	require.NoError(t, err)
	r := &strategy.Report{
		Team:    model.TeamProfile{Name: "Ferrari"},
		Track:   model.TrackProfile{Name: "Bahrain"},
		Laps:    57,
		Seed:    42,
		OneStop: strategy.Best{Minutes: 91.5, Strategy: one, Evaluated: 90},
		TwoStop: strategy.Best{Minutes: 91.25, Strategy: two, Evaluated: 783},
		Winner:  strategy.ClassTwoStop,
		Margin:  decimal.RequireFromString("15"),
		Diagnostics: []model.Diagnostic{
			{Code: model.CodeMissingTeamProfile, Message: "using neutral profile"},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "Bahrain (57 laps, rain 0%)")
	assert.Contains(t, out, "24:MEDIUM,HARD")
	assert.Contains(t, out, "1:31:30.0")
	assert.Contains(t, out, "16,35:SOFT,HARD,SOFT")
	assert.Contains(t, out, "1:31:15.0")
	assert.Contains(t, out, "note: missing-team-profile: using neutral profile")
	assert.Contains(t, out, "2-STOP STRATEGY\nFaster by 15.0s\n")
}

func TestWriteReportWithoutTwoStop(t *testing.T) {
	one, err := model.ParseStrategy("18:SOFT,MEDIUM")
	require.NoError(t, err)
	r := &strategy.Report{
		Track:   model.TrackProfile{Name: "Monaco"},
		Laps:    25,
		OneStop: strategy.Best{Minutes: 38.5, Strategy: one, Evaluated: 30},
		Winner:  strategy.ClassOneStop,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "18:SOFT,MEDIUM")
	assert.Regexp(t, `2-stop\s+-\s+-\s+0\n`, out)
	assert.Contains(t, out, "1-STOP STRATEGY\nOnly candidate class for 25 laps\n")
	assert.NotContains(t, out, "Faster by")
}
