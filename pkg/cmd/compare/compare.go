package compare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/cmd/evaluate"
	"github.com/mpapenbr/racestrategy/pkg/cmd/util"
	"github.com/mpapenbr/racestrategy/pkg/config"
	"github.com/mpapenbr/racestrategy/pkg/publish"
	"github.com/mpapenbr/racestrategy/pkg/strategy"
	"github.com/mpapenbr/racestrategy/pkg/timing"
	"github.com/mpapenbr/racestrategy/pkg/utils"
)

var (
	strategyA string
	strategyB string
	runs      int
	doPublish bool
	natsURL   string
)

func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "races two strategies against each other many times",
		Example: `  rss compare --track Monaco --a "40:MEDIUM,HARD" --b "25,50:SOFT,HARD,SOFT" --runs 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.Context(), cmd.OutOrStdout())
		},
	}
	util.AddRaceFlags(cmd)
	util.AddOutputFlag(cmd)
	cmd.Flags().StringVar(&strategyA, "a", "", "first strategy")
	cmd.Flags().StringVar(&strategyB, "b", "", "second strategy")
	cmd.Flags().IntVar(&runs, "runs", 100, "number of races per strategy")
	cmd.Flags().BoolVar(&doPublish, "publish", false,
		"publish the comparison to NATS (see --nats-url)")
	cmd.Flags().StringVar(&natsURL, "nats-url", "nats://localhost:4222",
		"url of the NATS server")
	cmd.Flags().StringVar(&config.NatsSubject, "nats-subject", publish.DefaultSubject,
		"base subject for published comparisons, the track is appended")
	//nolint:errcheck // flags exist
	cmd.MarkFlagRequired("a")
	//nolint:errcheck // flags exist
	cmd.MarkFlagRequired("b")
	return cmd
}

func runCompare(ctx context.Context, out io.Writer) error {
	env, err := util.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	o, err := env.Optimizer(ctx)
	if err != nil {
		return err
	}
	a, err := evaluate.ParseStrategy(strategyA, o.Laps())
	if err != nil {
		return fmt.Errorf("strategy a: %w", err)
	}
	b, err := evaluate.ParseStrategy(strategyB, o.Laps())
	if err != nil {
		return fmt.Errorf("strategy b: %w", err)
	}
	c, err := o.Compare(ctx, a, b, runs)
	if err != nil {
		return err
	}
	if doPublish {
		if err := publishComparison(ctx, o.Track().Name, c); err != nil {
			log.Error("could not publish comparison", log.ErrorField(err))
			return err
		}
	}
	if util.Output == util.OutputJSON {
		return json.NewEncoder(out).Encode(c)
	}
	return WriteComparison(out, c)
}

func publishComparison(ctx context.Context, track string, c *strategy.Comparison) error {
	if err := util.WaitForServices(ctx, utils.ExtractFromNatsURL(natsURL)); err != nil {
		return err
	}
	conn, err := publish.Connect(natsURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	err = publish.New(conn, publish.WithSubject(config.NatsSubject)).
		PublishComparison(ctx, track, c)
	if err != nil {
		return err
	}
	return conn.Flush()
}

func WriteComparison(out io.Writer, c *strategy.Comparison) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tSTRATEGY\tMEAN\tSTDDEV\tMIN\tMAX")
	for _, row := range []struct {
		name  string
		text  string
		stats strategy.Stats
	}{
		{"A", c.A.String(), c.StatsA},
		{"B", c.B.String(), c.StatsB},
	} {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1fs\t%s\t%s\n",
			row.name, row.text,
			timing.FormatRaceTime(row.stats.Mean),
			row.stats.StdDev*60,
			timing.FormatRaceTime(row.stats.Min),
			timing.FormatRaceTime(row.stats.Max))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\nA wins %.1f%% of %d races (seed %d)\n",
		c.WinRateA*100, c.Runs, c.Seed)
	return err
}
