package file

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/profile"
)

type (
	Option func(*Source)
	// Source serves profiles read from a team and a track file.
	// An empty path keeps the embedded defaults for that kind.
	Source struct {
		*profile.Static
		teamPath  string
		trackPath string
		l         *log.Logger
		onReload  func()
	}
)

var _ profile.Source = (*Source)(nil)

func WithLogger(l *log.Logger) Option {
	return func(s *Source) {
		s.l = l
	}
}

// WithReloadHook is called after each successful reload by Watch
func WithReloadHook(f func()) Option {
	return func(s *Source) {
		s.onReload = f
	}
}

func New(teamPath, trackPath string, opts ...Option) (*Source, error) {
	ret := &Source{
		Static:    Defaults(),
		teamPath:  teamPath,
		trackPath: trackPath,
		l:         log.Default().Named("profile.file"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if err := ret.Load(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Load reads both files. On error the current content is kept.
func (s *Source) Load() error {
	var teams []model.TeamProfile
	var tracks []model.TrackProfile
	var err error
	if s.teamPath != "" {
		if teams, err = LoadTeams(s.teamPath); err != nil {
			return err
		}
	}
	if s.trackPath != "" {
		if tracks, err = LoadTracks(s.trackPath); err != nil {
			return err
		}
	}
	s.Replace(teams, tracks)
	s.l.Debug("profiles loaded",
		log.String("teams", s.teamPath),
		log.String("tracks", s.trackPath),
		log.Int("numTeams", len(teams)),
		log.Int("numTracks", len(tracks)))
	return nil
}

// Watch reloads the profiles whenever one of the files changes until ctx is done.
// The directories are watched since editors often replace files on save.
//
//nolint:funlen,gocognit // event loop
func (s *Source) Watch(ctx context.Context) error {
	paths := []string{}
	for _, p := range []string{s.teamPath, s.trackPath} {
		if p != "" {
			abs, err := filepath.Abs(p)
			if err != nil {
				return err
			}
			paths = append(paths, abs)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := map[string]bool{}
	for _, p := range paths {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
		dirs[dir] = true
	}
	isProfile := func(name string) bool {
		abs, err := filepath.Abs(name)
		if err != nil {
			return false
		}
		for _, p := range paths {
			if p == abs {
				return true
			}
		}
		return false
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				s.l.Info("context done, stopping profile reload")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					s.l.Info("watcher events channel closed, stopping profile reload")
					return
				}
				if !isProfile(event.Name) {
					continue
				}
				s.l.Debug("change detected",
					log.String("file", event.Name), log.Any("event", event))
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					if err := s.Load(); err != nil {
						s.l.Error("could not reload profiles", log.ErrorField(err))
						continue
					}
					s.l.Info("profiles reloaded", log.String("file", event.Name))
					if s.onReload != nil {
						s.onReload()
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					s.l.Info("watcher errors channel closed, stopping profile reload")
					return
				}
				s.l.Error("watcher error", log.ErrorField(err))
			}
		}
	}()
	return nil
}
