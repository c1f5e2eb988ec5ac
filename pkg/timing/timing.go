// Package timing renders simulated races as a lap by lap timing log
package timing

import (
	"fmt"
	"io"
	"math"

	"github.com/mpapenbr/racestrategy/pkg/model"
)

type Kind string

const (
	KindRain      Kind = "RAIN"
	KindSafetyCar Kind = "SAFETY CAR"
	KindBox       Kind = "BOX"
	KindLap       Kind = "LAP"
)

type (
	// Run is the lap history of one car labelled for the log, e.g. "1-STOP"
	Run struct {
		Label   string
		History []model.LapRecord
	}
	Entry struct {
		Lap     int    `json:"lap"`
		Label   string `json:"label,omitempty"`
		Kind    Kind   `json:"kind"`
		Message string `json:"message"`
	}
	Option  func(*options)
	options struct {
		laps bool
	}
)

// WithLaps adds an entry for every completed lap of every run
func WithLaps(enabled bool) Option {
	return func(o *options) {
		o.laps = enabled
	}
}

// Log merges the runs into one log ordered by lap.
// Weather and safety car entries are taken from the first run, all runs share
// the same race events when they are driven with the same random stream.
func Log(runs []Run, opts ...Option) []Entry {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(runs) == 0 {
		return nil
	}
	maxLaps := 0
	for _, r := range runs {
		maxLaps = max(maxLaps, len(r.History))
	}
	var ret []Entry
	for i := range maxLaps {
		if i < len(runs[0].History) {
			rec := runs[0].History[i]
			if rec.Rain {
				ret = append(ret, Entry{Lap: rec.Lap, Kind: KindRain, Message: "RAIN CONDITION ACTIVE"})
			}
			if rec.Incident {
				ret = append(ret, Entry{
					Lap: rec.Lap, Kind: KindSafetyCar, Message: "SAFETY CAR DEPLOYED",
				})
			}
		}
		for _, r := range runs {
			if i >= len(r.History) {
				continue
			}
			rec := r.History[i]
			if rec.Pit != nil {
				ret = append(ret, Entry{
					Lap:   rec.Lap,
					Label: r.Label,
					Kind:  KindBox,
					Message: fmt.Sprintf("BOX! (%s) %s, %.1fs",
						rec.Pit.Reason, rec.Pit.Compound, rec.Pit.Cost),
				})
			}
			if cfg.laps {
				ret = append(ret, Entry{
					Lap:   rec.Lap,
					Label: r.Label,
					Kind:  KindLap,
					Message: fmt.Sprintf("%s %s age %d fuel %.1fkg tyre %.0f%%",
						FormatLapTime(rec.Time()), rec.Compound, rec.TireAge, rec.Fuel, rec.Health),
				})
			}
		}
	}
	return ret
}

func (e Entry) String() string {
	if e.Label != "" {
		return fmt.Sprintf("L%d [%s]: %s", e.Lap, e.Label, e.Message)
	}
	return fmt.Sprintf("L%d: %s", e.Lap, e.Message)
}

// Write prints one entry per line prefixed with ">> "
func Write(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, ">> %s\n", e); err != nil {
			return err
		}
	}
	return nil
}

// FormatLapTime formats seconds as m:ss.mmm
func FormatLapTime(seconds float64) string {
	millis := int64(math.Round(seconds * 1000))
	sign := ""
	if millis < 0 {
		sign = "-"
		millis = -millis
	}
	return fmt.Sprintf("%s%d:%02d.%03d", sign, millis/60000, (millis/1000)%60, millis%1000)
}

// FormatRaceTime formats minutes as h:mm:ss.s
func FormatRaceTime(minutes float64) string {
	tenths := int64(math.Round(minutes * 600))
	return fmt.Sprintf("%d:%02d:%02d.%d",
		tenths/36000, (tenths/600)%60, (tenths/10)%60, tenths%10)
}
