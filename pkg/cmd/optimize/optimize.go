package optimize

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/cmd/util"
	"github.com/mpapenbr/racestrategy/pkg/config"
	"github.com/mpapenbr/racestrategy/pkg/publish"
	"github.com/mpapenbr/racestrategy/pkg/strategy"
	"github.com/mpapenbr/racestrategy/pkg/timing"
	"github.com/mpapenbr/racestrategy/pkg/utils"
)

var (
	doPublish bool
	natsURL   string
)

func NewOptimizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "searches the best 1-stop and 2-stop strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd.Context(), cmd.OutOrStdout())
		},
	}
	util.AddRaceFlags(cmd)
	util.AddOutputFlag(cmd)
	cmd.Flags().BoolVar(&doPublish, "publish", false,
		"publish the report to NATS (see --nats-url)")
	cmd.Flags().StringVar(&natsURL, "nats-url", "nats://localhost:4222",
		"url of the NATS server")
	cmd.Flags().StringVar(&config.NatsSubject, "nats-subject", publish.DefaultSubject,
		"base subject for published reports, the track is appended")
	cmd.Flags().StringVar(&config.NatsBucket, "nats-bucket", "",
		"key value bucket storing the latest report per track (empty: disabled)")
	return cmd
}

func runOptimize(ctx context.Context, out io.Writer) error {
	env, err := util.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	o, err := env.Optimizer(ctx)
	if err != nil {
		log.Error("could not create optimizer", log.ErrorField(err))
		return err
	}
	report, err := o.Optimize(ctx)
	if err != nil {
		log.Error("optimization failed", log.ErrorField(err))
		return err
	}
	if doPublish {
		if err := publishReport(ctx, report); err != nil {
			log.Error("could not publish report", log.ErrorField(err))
			return err
		}
	}
	if util.Output == util.OutputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return WriteReport(out, report)
}

func publishReport(ctx context.Context, report *strategy.Report) error {
	if err := util.WaitForServices(ctx, utils.ExtractFromNatsURL(natsURL)); err != nil {
		return err
	}
	conn, err := publish.Connect(natsURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := []publish.Option{publish.WithSubject(config.NatsSubject)}
	if config.NatsBucket != "" {
		js, err := jetstream.New(conn)
		if err != nil {
			return err
		}
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      config.NatsBucket,
			Description: "latest strategy report per track",
		})
		if err != nil {
			return fmt.Errorf("key value bucket %s: %w", config.NatsBucket, err)
		}
		opts = append(opts, publish.WithKeyValue(kv))
	}
	if err := publish.New(conn, opts...).PublishReport(ctx, report); err != nil {
		return err
	}
	return conn.Flush()
}

// WriteReport prints the report as a small table followed by the verdict
func WriteReport(out io.Writer, r *strategy.Report) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Team:\t%s\n", r.Team.Name)
	fmt.Fprintf(tw, "Track:\t%s (%d laps, rain %d%%)\n", r.Track.Name, r.Laps, r.Rain)
	fmt.Fprintf(tw, "Seed:\t%d\n", r.Seed)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "CLASS\tSTRATEGY\tRACE TIME\tCANDIDATES")
	for _, row := range []struct {
		class string
		best  strategy.Best
	}{
		{strategy.ClassOneStop, r.OneStop},
		{strategy.ClassTwoStop, r.TwoStop},
	} {
		if !row.best.Found() {
			fmt.Fprintf(tw, "%s\t-\t-\t0\n", row.class)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n",
			row.class, row.best.Strategy, timing.FormatRaceTime(row.best.Minutes), row.best.Evaluated)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(out, "note: %s\n", d)
	}
	if !r.OneStop.Found() || !r.TwoStop.Found() {
		_, err := fmt.Fprintf(out, "\n%s STRATEGY\nOnly candidate class for %d laps\n",
			strings.ToUpper(r.Winner), r.Laps)
		return err
	}
	_, err := fmt.Fprintf(out, "\n%s STRATEGY\nFaster by %ss\n",
		strings.ToUpper(r.Winner), r.Margin.StringFixed(1))
	return err
}
