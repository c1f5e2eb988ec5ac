/*
	Copyright 2023 Markus Papenbrock
*/

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	compareCmd "github.com/mpapenbr/racestrategy/pkg/cmd/compare"
	evaluateCmd "github.com/mpapenbr/racestrategy/pkg/cmd/evaluate"
	migrateCmd "github.com/mpapenbr/racestrategy/pkg/cmd/migrate"
	optimizeCmd "github.com/mpapenbr/racestrategy/pkg/cmd/optimize"
	profilesCmd "github.com/mpapenbr/racestrategy/pkg/cmd/profiles"
	replayCmd "github.com/mpapenbr/racestrategy/pkg/cmd/replay"
	serverCmd "github.com/mpapenbr/racestrategy/pkg/cmd/server"
	"github.com/mpapenbr/racestrategy/pkg/config"
	"github.com/mpapenbr/racestrategy/version"
)

const envPrefix = "RSS"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "rss",
	Short:        "Race strategy simulator",
	Long:         `Simulates races lap by lap and searches the fastest pit stop strategy.`,
	Version:      version.FullVersion,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

//nolint:funlen // flag definitions
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.rss.yml)")

	rootCmd.PersistentFlags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.SQLLogLevel,
		"sql-log-level",
		"debug",
		"controls the log level for sql methods")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		`filter log output by level and logger name, e.g. "info+:* debug+:strategy"`)

	rootCmd.PersistentFlags().StringVar(&config.DB, "db",
		"",
		"Connection string for the profile database (empty: use profile files)")
	rootCmd.PersistentFlags().StringVar(&config.TeamDB, "team-db",
		"",
		"team profile file (json or yaml, empty: embedded defaults)")
	rootCmd.PersistentFlags().StringVar(&config.TrackDB, "track-db",
		"",
		"track profile file (json or yaml, empty: embedded defaults)")
	rootCmd.PersistentFlags().BoolVar(&config.StrictProfiles, "strict-profiles",
		false,
		"unknown teams and tracks are errors instead of falling back to defaults")
	rootCmd.PersistentFlags().IntVar(&config.Parallelism, "parallelism",
		0,
		"number of races simulated concurrently (0: number of CPUs)")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"15s",
		"Duration to wait for other services to be ready")
	rootCmd.PersistentFlags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	rootCmd.PersistentFlags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (empty: print to stdout)")

	// add commands here
	rootCmd.AddCommand(optimizeCmd.NewOptimizeCmd())
	rootCmd.AddCommand(evaluateCmd.NewEvaluateCmd())
	rootCmd.AddCommand(replayCmd.NewReplayCmd())
	rootCmd.AddCommand(compareCmd.NewCompareCmd())
	rootCmd.AddCommand(profilesCmd.NewProfilesCmd())
	rootCmd.AddCommand(migrateCmd.NewMigrateCmd())
	rootCmd.AddCommand(serverCmd.NewServerCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".rss" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rss")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindCommands(rootCmd, viper.GetViper())
}

func bindCommands(cmd *cobra.Command, v *viper.Viper) {
	bindFlags(cmd, v)
	for _, sub := range cmd.Commands() {
		bindCommands(sub, v)
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --team-db to RSS_TEAM_DB
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
