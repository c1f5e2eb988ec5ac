// Package util contains the setup shared by the rss commands
package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"github.com/stephenafamo/bob"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/config"
	"github.com/mpapenbr/racestrategy/pkg/db/postgres"
	"github.com/mpapenbr/racestrategy/pkg/profile"
	"github.com/mpapenbr/racestrategy/pkg/profile/file"
	pgprofile "github.com/mpapenbr/racestrategy/pkg/profile/postgres"
	"github.com/mpapenbr/racestrategy/pkg/strategy"
	"github.com/mpapenbr/racestrategy/pkg/utils"
)

const (
	OutputText = "text"
	OutputJSON = "json"
)

// Output selects the result format of a command
var Output string

// Env holds the services a command works with
type Env struct {
	Logger     *log.Logger
	Resolver   *profile.Resolver
	Repository pgprofile.Repository // nil if no database is configured
	Files      *file.Source         // nil if profiles come from the database
	closers    []func()
}

// AddRaceFlags registers the flags describing the simulated race
func AddRaceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&config.Team, "team", profile.ReferenceTeam, "team to simulate")
	cmd.Flags().StringVar(&config.Track, "track", "Bahrain", "track to simulate")
	cmd.Flags().IntVar(&config.Rain, "rain", 0, "rain probability in percent (0-100)")
	cmd.Flags().IntVar(&config.Laps, "laps", 0,
		"race distance in laps (0 uses the lap count of the track)")
	cmd.Flags().Uint64Var(&config.Seed, "seed", 0,
		"seed for the simulation (0 picks a random seed)")
	cmd.Flags().IntVar(&config.Repetitions, "repetitions", 1,
		"races per candidate strategy, the mean is used")
}

// AddOutputFlag registers the --output flag
func AddOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&Output, "output", "o", OutputText, "output format (text, json)")
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates the logger configured by the log flags and installs it as default
func SetupLogger() (*log.Logger, error) {
	filter, err := log.FilterRules(config.LogFilter)
	if err != nil {
		return nil, err
	}
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			filter)
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			filter)
	}
	log.ResetDefault(logger)
	return logger, nil
}

// Setup prepares logging, telemetry and the profile source.
// Close has to be called when the command is done.
func Setup(ctx context.Context) (*Env, error) {
	logger, err := SetupLogger()
	if err != nil {
		return nil, err
	}
	env := &Env{Logger: logger}
	log.Debug("Config:",
		log.String("db", config.DB),
		log.String("teamDB", config.TeamDB),
		log.String("trackDB", config.TrackDB),
		log.Bool("strict", config.StrictProfiles))

	pgTraceOption := postgres.WithTracer(
		logger.Named("sql"), parseLogLevel(config.SQLLogLevel, log.DebugLevel))
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		if telemetry, err := config.SetupTelemetry(ctx); err == nil {
			env.closers = append(env.closers, telemetry.Shutdown)
			pgTraceOption = postgres.WithOtlpTracer()
		} else {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	var src profile.Source
	if config.DB != "" {
		if err := WaitForServices(ctx, utils.ExtractFromDBURL(config.DB)); err != nil {
			env.Close()
			return nil, err
		}
		pool, err := postgres.InitWithURL(ctx, config.DB, pgTraceOption)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.closers = append(env.closers, pool.Close)
		env.Repository = pgprofile.NewRepository(
			bob.NewDB(stdlib.OpenDBFromPool(pool)),
			pgprofile.WithLogger(logger.Named("profile.postgres")))
		src = env.Repository
	} else {
		env.Files, err = file.New(config.TeamDB, config.TrackDB,
			file.WithLogger(logger.Named("profile.file")))
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("loading profiles: %w", err)
		}
		src = env.Files
	}
	env.Resolver = profile.NewResolver(src,
		profile.WithStrict(config.StrictProfiles),
		profile.WithResolverLogger(logger.Named("profile")))
	return env, nil
}

// Close releases the resources in reverse order of creation
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
	//nolint:errcheck // stderr sync fails on some terminals
	e.Logger.Sync()
}

// Optimizer resolves the configured team and track and creates an optimizer
// for the race flags. Resolver diagnostics are attached to the optimizer.
//
//nolint:whitespace // editor/linter issue
func (e *Env) Optimizer(
	ctx context.Context,
	opts ...strategy.Option,
) (*strategy.Optimizer, error) {
	if config.Rain < 0 || config.Rain > 100 {
		return nil, fmt.Errorf("rain must be in [0,100], got %d", config.Rain)
	}
	team, track, diags, err := e.Resolver.Resolve(ctx, config.Team, config.Track)
	if err != nil {
		return nil, err
	}
	for _, d := range diags {
		log.Warn("profile fallback", log.Stringer("diagnostic", d))
	}
	base := []strategy.Option{
		strategy.WithDiagnostics(diags...),
		strategy.WithRepetitions(config.Repetitions),
		strategy.WithParallelism(config.Parallelism),
		strategy.WithLogger(e.Logger.Named("strategy")),
	}
	if config.Seed != 0 {
		base = append(base, strategy.WithSeed(config.Seed))
	}
	if config.Laps > 0 {
		base = append(base, strategy.WithLaps(config.Laps))
	}
	return strategy.NewOptimizer(team, track, config.Rain, append(base, opts...)...), nil
}

// WaitForServices waits until all addresses accept tcp connections.
// Empty addresses are ignored.
func WaitForServices(ctx context.Context, addrs ...string) error {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		g.Go(func() error {
			return utils.WaitForTCP(gctx, addr, timeout)
		})
	}
	log.Debug("Waiting for connection checks to return")
	if err := g.Wait(); err != nil {
		return errors.Join(errors.New("required services not ready"), err)
	}
	log.Debug("Required services are available")
	return nil
}
