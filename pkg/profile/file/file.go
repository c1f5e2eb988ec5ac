// Package file reads team and track profiles from JSON or YAML files.
//
// Both files are objects keyed by name:
//
//	team:  {"Red Bull Racing": {"pace_index": 1.0, "deg_index": 0.91}}
//	track: {"Monaco": {"avg_deg": 0.02, "laps": 78, "fuel_burn": 1.35, "tight": true}}
//
// laps, fuel_burn and tight are optional.
package file

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/profile"
)

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

var ErrInvalidProfile = errors.New("invalid profile")

//go:embed defaults/*.json
var defaultFS embed.FS

var (
	paceExpr     = jp.MustParseString("$.pace_index")
	degExpr      = jp.MustParseString("$.deg_index")
	avgDegExpr   = jp.MustParseString("$.avg_deg")
	lapsExpr     = jp.MustParseString("$.laps")
	fuelBurnExpr = jp.MustParseString("$.fuel_burn")
	tightExpr    = jp.MustParseString("$.tight")
)

// FormatFromPath returns FormatYAML for .yml and .yaml files, FormatJSON otherwise
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Defaults returns the embedded profiles of the 2023 season
func Defaults() *profile.Static {
	teamData, err := defaultFS.ReadFile("defaults/team_db.json")
	if err != nil {
		panic(err)
	}
	trackData, err := defaultFS.ReadFile("defaults/track_db.json")
	if err != nil {
		panic(err)
	}
	teams, err := ParseTeams(teamData, FormatJSON)
	if err != nil {
		panic(err)
	}
	tracks, err := ParseTracks(trackData, FormatJSON)
	if err != nil {
		panic(err)
	}
	return profile.NewStatic(teams, tracks)
}

func LoadTeams(path string) ([]model.TeamProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ret, err := ParseTeams(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ret, nil
}

func LoadTracks(path string) ([]model.TrackProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ret, err := ParseTracks(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ret, nil
}

// ParseTeams returns the team profiles sorted by name
func ParseTeams(data []byte, format Format) ([]model.TeamProfile, error) {
	entries, err := parseEntries(data, format)
	if err != nil {
		return nil, err
	}
	ret := make([]model.TeamProfile, 0, len(entries))
	for _, name := range sortedKeys(entries) {
		entry := entries[name]
		pace, err := requiredFloat(entry, paceExpr)
		if err != nil {
			return nil, fmt.Errorf("team %q: %w", name, err)
		}
		deg, err := requiredFloat(entry, degExpr)
		if err != nil {
			return nil, fmt.Errorf("team %q: %w", name, err)
		}
		ret = append(ret, model.TeamProfile{Name: name, PaceFactor: pace, DegradationFactor: deg})
	}
	return ret, nil
}

// ParseTracks returns the track profiles sorted by name
func ParseTracks(data []byte, format Format) ([]model.TrackProfile, error) {
	entries, err := parseEntries(data, format)
	if err != nil {
		return nil, err
	}
	ret := make([]model.TrackProfile, 0, len(entries))
	for _, name := range sortedKeys(entries) {
		entry := entries[name]
		deg, err := requiredFloat(entry, avgDegExpr)
		if err != nil {
			return nil, fmt.Errorf("track %q: %w", name, err)
		}
		t := model.TrackProfile{
			Name:                name,
			BaselineDegradation: deg,
			LapCount:            model.DefaultLapCount,
			FuelBurn:            model.DefaultFuelBurn,
		}
		if v, ok := toFloat(lapsExpr.First(entry)); ok {
			t.LapCount = int(v)
		}
		if v, ok := toFloat(fuelBurnExpr.First(entry)); ok {
			t.FuelBurn = v
		}
		if v, ok := tightExpr.First(entry).(bool); ok {
			t.Tight = &v
		}
		if t.LapCount < 1 || t.FuelBurn <= 0 {
			return nil, fmt.Errorf("track %q: %w: laps and fuel_burn must be positive",
				name, ErrInvalidProfile)
		}
		ret = append(ret, t)
	}
	return ret, nil
}

func parseEntries(data []byte, format Format) (map[string]any, error) {
	var obj any
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &obj)
	default:
		obj, err = oj.Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: no content", ErrInvalidProfile)
	}
	entries, ok := obj.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected an object keyed by name", ErrInvalidProfile)
	}
	return entries, nil
}

func sortedKeys(m map[string]any) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

func requiredFloat(entry any, expr jp.Expr) (float64, error) {
	v, ok := toFloat(expr.First(entry))
	if !ok {
		return 0, fmt.Errorf("%w: %s missing or not a number", ErrInvalidProfile, expr)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidProfile, expr)
	}
	return v, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
