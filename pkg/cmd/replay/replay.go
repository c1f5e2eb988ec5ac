package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racestrategy/pkg/cmd/evaluate"
	"github.com/mpapenbr/racestrategy/pkg/cmd/util"
	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/strategy"
	"github.com/mpapenbr/racestrategy/pkg/timing"
)

var (
	strategies []string
	logLaps    bool
	stream     uint64
)

type (
	labelled struct {
		label    string
		strategy model.Strategy
	}
	runResult struct {
		Label    string         `json:"label"`
		Strategy model.Strategy `json:"strategy"`
		Minutes  float64        `json:"minutes"`
	}
	output struct {
		Seed   uint64         `json:"seed"`
		Runs   []runResult    `json:"runs"`
		Events []timing.Entry `json:"events"`
	}
)

func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "prints the timing log of single races",
		Long: `Races the given strategies against the same weather and incidents and prints
a lap by lap log with rain, safety car and pit stop events.
Without --strategy the best 1-stop and 2-stop strategies are searched first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), cmd.OutOrStdout())
		},
	}
	util.AddRaceFlags(cmd)
	util.AddOutputFlag(cmd)
	cmd.Flags().StringArrayVarP(&strategies, "strategy", "s", nil,
		"strategy to replay, may be repeated")
	cmd.Flags().BoolVar(&logLaps, "log-laps", false, "log every lap")
	cmd.Flags().Uint64Var(&stream, "stream", 0, "random stream of the seed used for the races")
	return cmd
}

func runReplay(ctx context.Context, out io.Writer) error {
	env, err := util.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	o, err := env.Optimizer(ctx)
	if err != nil {
		return err
	}
	var toRun []labelled
	if len(strategies) == 0 {
		report, err := o.Optimize(ctx)
		if err != nil {
			return err
		}
		// race events are taken from the first run
		for _, c := range []struct {
			class string
			best  strategy.Best
		}{
			{strategy.ClassTwoStop, report.TwoStop},
			{strategy.ClassOneStop, report.OneStop},
		} {
			if c.best.Found() {
				toRun = append(toRun, labelled{strings.ToUpper(c.class), c.best.Strategy})
			}
		}
	} else {
		for _, text := range strategies {
			s, err := evaluate.ParseStrategy(text, o.Laps())
			if err != nil {
				return err
			}
			toRun = append(toRun, labelled{s.String(), s})
		}
	}
	return write(out, replay(o, toRun, stream, logLaps))
}

// replay races all strategies on the same random stream
func replay(o *strategy.Optimizer, toRun []labelled, stream uint64, laps bool) output {
	ret := output{Seed: o.Seed()}
	runs := make([]timing.Run, 0, len(toRun))
	for _, item := range toRun {
		car := o.Replay(item.strategy, stream)
		runs = append(runs, timing.Run{Label: item.label, History: car.History()})
		ret.Runs = append(ret.Runs, runResult{
			Label:    item.label,
			Strategy: item.strategy,
			Minutes:  car.TotalRaceTime() / 60,
		})
	}
	ret.Events = timing.Log(runs, timing.WithLaps(laps))
	return ret
}

func write(out io.Writer, o output) error {
	if util.Output == util.OutputJSON {
		return json.NewEncoder(out).Encode(o)
	}
	if err := timing.Write(out, o.Events); err != nil {
		return err
	}
	fmt.Fprintln(out)
	for _, r := range o.Runs {
		fmt.Fprintf(out, "%-24s %s\n", r.Label, timing.FormatRaceTime(r.Minutes))
	}
	return nil
}
