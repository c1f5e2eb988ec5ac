package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidStrategy = errors.New("invalid strategy")

type (
	Stop struct {
		Lap      int      `json:"lap"`
		Compound Compound `json:"compound"`
	}
	// Strategy describes the starting compound and the planned pit stops.
	Strategy struct {
		Start Compound `json:"start"`
		Stops []Stop   `json:"stops"`
	}
)

// NewStrategy combines stop laps and compounds the same way a race is run:
// compounds[0] is the starting compound, compounds[i] is fitted at stopLaps[i-1].
// Stop laps without a matching compound are dropped and reported.
func NewStrategy(stopLaps []int, compounds []Compound) (Strategy, []Diagnostic) {
	var diags []Diagnostic
	s := Strategy{Start: CompoundSoft}
	if len(compounds) > 0 {
		s.Start = compounds[0]
	} else {
		diags = append(diags, Diagnostic{
			Code:    CodeMalformedStrategy,
			Message: "no compounds given, starting on SOFT",
		})
	}
	for i, lap := range stopLaps {
		if i+1 >= len(compounds) {
			diags = append(diags, Diagnostic{
				Code:    CodeMalformedStrategy,
				Message: fmt.Sprintf("no compound for stop at lap %d, stop skipped", lap),
			})
			continue
		}
		s.Stops = append(s.Stops, Stop{Lap: lap, Compound: compounds[i+1]})
	}
	return s, diags
}

func (s Strategy) Compounds() []Compound {
	ret := make([]Compound, 0, len(s.Stops)+1)
	ret = append(ret, s.Start)
	for _, st := range s.Stops {
		ret = append(ret, st.Compound)
	}
	return ret
}

func (s Strategy) StopLaps() []int {
	ret := make([]int, len(s.Stops))
	for i, st := range s.Stops {
		ret[i] = st.Lap
	}
	return ret
}

func (s Strategy) NumStops() int {
	return len(s.Stops)
}

// Validate checks pit laps are strictly increasing and within [1, lapCount-1]
// and all compounds are known.
func (s Strategy) Validate(lapCount int) error {
	if !s.Start.Known() {
		return fmt.Errorf("%w: unknown start compound %q", ErrInvalidStrategy, s.Start)
	}
	prev := 0
	for _, st := range s.Stops {
		if st.Lap < 1 || st.Lap > lapCount-1 {
			return fmt.Errorf("%w: pit lap %d outside [1,%d]",
				ErrInvalidStrategy, st.Lap, lapCount-1)
		}
		if st.Lap <= prev {
			return fmt.Errorf("%w: pit laps not strictly increasing at lap %d",
				ErrInvalidStrategy, st.Lap)
		}
		if !st.Compound.Known() {
			return fmt.Errorf("%w: unknown compound %q at lap %d",
				ErrInvalidStrategy, st.Compound, st.Lap)
		}
		prev = st.Lap
	}
	return nil
}

// String returns the text form "28,45:SOFT,HARD,MEDIUM" (see ParseStrategy)
func (s Strategy) String() string {
	laps := make([]string, len(s.Stops))
	for i, st := range s.Stops {
		laps[i] = strconv.Itoa(st.Lap)
	}
	compounds := make([]string, 0, len(s.Stops)+1)
	for _, c := range s.Compounds() {
		compounds = append(compounds, c.String())
	}
	return strings.Join(laps, ",") + ":" + strings.Join(compounds, ",")
}

// ParseStrategy parses the text form "<laps>:<compounds>", e.g.
// "28:SOFT,HARD" or "18,38:SOFT,HARD,SOFT". A strategy without stops
// may be written as "SOFT" or ":SOFT".
// The number of compounds must be the number of stops plus one.
func ParseStrategy(text string) (Strategy, error) {
	lapPart, compoundPart, found := strings.Cut(strings.TrimSpace(text), ":")
	if !found {
		compoundPart, lapPart = lapPart, ""
	}
	var laps []int
	if strings.TrimSpace(lapPart) != "" {
		for _, item := range strings.Split(lapPart, ",") {
			lap, err := strconv.Atoi(strings.TrimSpace(item))
			if err != nil {
				return Strategy{}, fmt.Errorf("%w: invalid pit lap %q", ErrInvalidStrategy, item)
			}
			laps = append(laps, lap)
		}
	}
	var compounds []Compound
	for _, item := range strings.Split(compoundPart, ",") {
		c, err := ParseCompound(item)
		if err != nil {
			return Strategy{}, fmt.Errorf("%w: %w", ErrInvalidStrategy, err)
		}
		compounds = append(compounds, c)
	}
	if len(compounds) != len(laps)+1 {
		return Strategy{}, fmt.Errorf("%w: %d stops need %d compounds, got %d",
			ErrInvalidStrategy, len(laps), len(laps)+1, len(compounds))
	}
	s, _ := NewStrategy(laps, compounds)
	return s, nil
}
