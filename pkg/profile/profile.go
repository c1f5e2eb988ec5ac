// Package profile provides team and track profiles from various sources
// and resolves missing profiles to defaults.
package profile

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/mpapenbr/racestrategy/pkg/model"
)

var ErrNotFound = errors.New("profile not found")

// Source provides team and track profiles.
// Lookups of unknown names return ErrNotFound.
type Source interface {
	Team(ctx context.Context, name string) (*model.TeamProfile, error)
	Track(ctx context.Context, name string) (*model.TrackProfile, error)
	Teams(ctx context.Context) ([]model.TeamProfile, error)
	Tracks(ctx context.Context) ([]model.TrackProfile, error)
}

// Static is an in-memory Source. The content may be replaced at any time.
type Static struct {
	mu     sync.RWMutex
	teams  map[string]model.TeamProfile
	tracks map[string]model.TrackProfile
}

var _ Source = (*Static)(nil)

func NewStatic(teams []model.TeamProfile, tracks []model.TrackProfile) *Static {
	ret := &Static{}
	ret.Replace(teams, tracks)
	return ret
}

// Replace swaps the content. A nil slice keeps the current entries of that kind.
func (s *Static) Replace(teams []model.TeamProfile, tracks []model.TrackProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if teams != nil || s.teams == nil {
		s.teams = lo.KeyBy(teams, func(t model.TeamProfile) string { return t.Name })
	}
	if tracks != nil || s.tracks == nil {
		s.tracks = lo.KeyBy(tracks, func(t model.TrackProfile) string { return t.Name })
	}
}

func (s *Static) Team(ctx context.Context, name string) (*model.TeamProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.teams[name]; ok {
		return &t, nil
	}
	return nil, ErrNotFound
}

func (s *Static) Track(ctx context.Context, name string) (*model.TrackProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tracks[name]; ok {
		return &t, nil
	}
	return nil, ErrNotFound
}

// Teams returns all teams sorted by name
func (s *Static) Teams(ctx context.Context) ([]model.TeamProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := lo.Values(s.teams)
	slices.SortFunc(ret, func(a, b model.TeamProfile) int { return strings.Compare(a.Name, b.Name) })
	return ret, nil
}

// Tracks returns all tracks sorted by name
func (s *Static) Tracks(ctx context.Context) ([]model.TrackProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := lo.Values(s.tracks)
	slices.SortFunc(ret, func(a, b model.TrackProfile) int { return strings.Compare(a.Name, b.Name) })
	return ret, nil
}
