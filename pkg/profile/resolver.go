package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/model"
)

var (
	ErrUnknownTeam  = errors.New("unknown team")
	ErrUnknownTrack = errors.New("unknown track")
)

// ReferenceTeam is the team simulated when no team is given
const ReferenceTeam = "Red Bull Racing"

// DefaultTightCircuits have a higher incident probability
var DefaultTightCircuits = []string{
	"Monaco",
	"Singapore",
	"Azerbaijan",
	"Saudi Arabia",
	"Las Vegas",
}

type (
	ResolverOption func(*Resolver)
	// Resolver looks up profiles and replaces missing ones by defaults.
	// In strict mode missing profiles are errors.
	Resolver struct {
		src           Source
		strict        bool
		referenceTeam string
		tight         map[string]bool
		l             *log.Logger
	}
)

func WithStrict(strict bool) ResolverOption {
	return func(r *Resolver) {
		r.strict = strict
	}
}

// WithReferenceTeam makes unknown teams use the pace and degradation of the
// given team instead of the neutral profile
func WithReferenceTeam(name string) ResolverOption {
	return func(r *Resolver) {
		r.referenceTeam = name
	}
}

// WithTightCircuits replaces the list of tight circuits
func WithTightCircuits(names ...string) ResolverOption {
	return func(r *Resolver) {
		r.tight = make(map[string]bool, len(names))
		for _, n := range names {
			r.tight[n] = true
		}
	}
}

func WithResolverLogger(l *log.Logger) ResolverOption {
	return func(r *Resolver) {
		r.l = l
	}
}

func NewResolver(src Source, opts ...ResolverOption) *Resolver {
	ret := &Resolver{
		src: src,
		l:   log.Default().Named("profile"),
	}
	WithTightCircuits(DefaultTightCircuits...)(ret)
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (r *Resolver) Source() Source {
	return r.src
}

// Team returns the profile for name. Unknown teams get the neutral profile
// (or the reference team profile if configured) and a diagnostic, unless the
// resolver is strict.
//
//nolint:whitespace // editor/linter issue
func (r *Resolver) Team(ctx context.Context, name string) (
	model.TeamProfile, []model.Diagnostic, error,
) {
	t, err := r.src.Team(ctx, name)
	if err == nil {
		return *t, nil, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.TeamProfile{}, nil, fmt.Errorf("team %q: %w", name, err)
	}
	if r.strict {
		return model.TeamProfile{}, nil, fmt.Errorf("%w: %q", ErrUnknownTeam, name)
	}
	ret := model.DefaultTeamProfile(name)
	using := "neutral profile"
	if r.referenceTeam != "" {
		if ref, refErr := r.src.Team(ctx, r.referenceTeam); refErr == nil {
			ret.PaceFactor = ref.PaceFactor
			ret.DegradationFactor = ref.DegradationFactor
			using = r.referenceTeam
		}
	}
	d := model.Diagnostic{
		Code:    model.CodeMissingTeamProfile,
		Message: fmt.Sprintf("team %q not found, using %s", name, using),
	}
	r.l.Warn("team profile missing", log.String("team", name), log.String("using", using))
	return ret, []model.Diagnostic{d}, nil
}

// Track returns the profile for name. Unknown tracks get the default
// track profile and a diagnostic, unless the resolver is strict.
// Tracks without a tight flag are tight if they are in the list of tight circuits.
//
//nolint:whitespace // editor/linter issue
func (r *Resolver) Track(ctx context.Context, name string) (
	model.TrackProfile, []model.Diagnostic, error,
) {
	var diags []model.Diagnostic
	var ret model.TrackProfile
	t, err := r.src.Track(ctx, name)
	switch {
	case err == nil:
		ret = *t
	case !errors.Is(err, ErrNotFound):
		return model.TrackProfile{}, nil, fmt.Errorf("track %q: %w", name, err)
	case r.strict:
		return model.TrackProfile{}, nil, fmt.Errorf("%w: %q", ErrUnknownTrack, name)
	default:
		ret = model.DefaultTrackProfile(name)
		diags = append(diags, model.Diagnostic{
			Code:    model.CodeMissingTrackProfile,
			Message: fmt.Sprintf("track %q not found, using default profile", name),
		})
		r.l.Warn("track profile missing", log.String("track", name))
	}
	if ret.Tight == nil {
		tight := r.tight[name]
		ret.Tight = &tight
	}
	return ret, diags, nil
}

// Resolve looks up both profiles and collects their diagnostics
//
//nolint:whitespace // editor/linter issue
func (r *Resolver) Resolve(ctx context.Context, team, track string) (
	model.TeamProfile, model.TrackProfile, []model.Diagnostic, error,
) {
	teamProfile, diags, err := r.Team(ctx, team)
	if err != nil {
		return model.TeamProfile{}, model.TrackProfile{}, nil, err
	}
	trackProfile, more, err := r.Track(ctx, track)
	if err != nil {
		return model.TeamProfile{}, model.TrackProfile{}, nil, err
	}
	return teamProfile, trackProfile, append(diags, more...), nil
}
