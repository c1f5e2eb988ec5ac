package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/cmd/util"
	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/simulation"
	"github.com/mpapenbr/racestrategy/pkg/timing"
)

var strategyText string

type result struct {
	Minutes     float64            `json:"minutes"`
	Strategy    model.Strategy     `json:"strategy"`
	Seed        uint64             `json:"seed"`
	Diagnostics []model.Diagnostic `json:"diagnostics,omitempty"`
}

func NewEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "simulates a race for a given strategy",
		Example: `  rss evaluate --team Ferrari --track Monaco --strategy "40:MEDIUM,HARD"
  rss evaluate --strategy "18,38:SOFT,HARD,SOFT" --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd.Context(), cmd.OutOrStdout())
		},
	}
	util.AddRaceFlags(cmd)
	util.AddOutputFlag(cmd)
	cmd.Flags().StringVarP(&strategyText, "strategy", "s", "",
		`strategy as "<pit laps>:<compounds>", e.g. "28:SOFT,HARD"`)
	//nolint:errcheck // flag exists
	cmd.MarkFlagRequired("strategy")
	return cmd
}

func runEvaluate(ctx context.Context, out io.Writer) error {
	env, err := util.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	o, err := env.Optimizer(ctx)
	if err != nil {
		return err
	}
	s, err := ParseStrategy(strategyText, o.Laps())
	if err != nil {
		return err
	}
	res := o.EvaluateStrategy(s, simulation.NewRandom(o.Seed(), 0))
	log.Debug("race evaluated",
		log.Stringer("strategy", s),
		log.Float64("minutes", res.Minutes))
	return write(out, result{
		Minutes:     res.Minutes,
		Strategy:    res.Strategy,
		Seed:        o.Seed(),
		Diagnostics: res.Diagnostics,
	})
}

// ParseStrategy parses and validates a strategy given on the command line
func ParseStrategy(text string, laps int) (model.Strategy, error) {
	s, err := model.ParseStrategy(text)
	if err != nil {
		return model.Strategy{}, err
	}
	if err := s.Validate(laps); err != nil {
		return model.Strategy{}, err
	}
	return s, nil
}

func write(out io.Writer, r result) error {
	if util.Output == util.OutputJSON {
		return json.NewEncoder(out).Encode(r)
	}
	fmt.Fprintf(out, "Strategy:  %s (%d stops)\n", r.Strategy, r.Strategy.NumStops())
	fmt.Fprintf(out, "Race time: %s (%.3f min)\n", timing.FormatRaceTime(r.Minutes), r.Minutes)
	fmt.Fprintf(out, "Seed:      %d\n", r.Seed)
	for _, d := range r.Diagnostics {
		fmt.Fprintf(out, "note: %s\n", d)
	}
	return nil
}
