package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/cmd/util"
	"github.com/mpapenbr/racestrategy/pkg/config"
	"github.com/mpapenbr/racestrategy/pkg/db/migrate"
	"github.com/mpapenbr/racestrategy/pkg/model"
	"github.com/mpapenbr/racestrategy/pkg/profile"
	"github.com/mpapenbr/racestrategy/pkg/profile/file"
)

var (
	kind       string
	runMigrate bool
)

func NewProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "commands for team and track profiles",
	}
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newImportCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "lists the profiles of the configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), cmd.OutOrStdout())
		},
	}
	util.AddOutputFlag(cmd)
	cmd.Flags().StringVar(&kind, "kind", "all", "profiles to list (teams, tracks, all)")
	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "stores the profiles of --team-db and --track-db in the database",
		Long: `Reads the profile files given by --team-db and --track-db and stores them
in the database given by --db. Existing profiles with the same name are replaced.
A missing file imports the embedded defaults for that kind.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&runMigrate, "migrate", false, "apply database migrations first")
	return cmd
}

func runList(ctx context.Context, out io.Writer) error {
	env, err := util.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	src := env.Resolver.Source()
	var teams []model.TeamProfile
	var tracks []model.TrackProfile
	if kind == "all" || kind == "teams" {
		if teams, err = src.Teams(ctx); err != nil {
			return err
		}
	}
	if kind == "all" || kind == "tracks" {
		if tracks, err = src.Tracks(ctx); err != nil {
			return err
		}
	}
	if util.Output == util.OutputJSON {
		return json.NewEncoder(out).Encode(map[string]any{"teams": teams, "tracks": tracks})
	}
	return WriteProfiles(out, teams, tracks)
}

func runImport(ctx context.Context, out io.Writer) error {
	if config.DB == "" {
		return errors.New("no database configured (see --db)")
	}
	env, err := util.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if runMigrate {
		if _, err := migrate.MigrateDB(config.DB); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	files, err := file.New(config.TeamDB, config.TrackDB,
		file.WithLogger(env.Logger.Named("profile.file")))
	if err != nil {
		return err
	}
	teams, tracks, err := all(ctx, files)
	if err != nil {
		return err
	}
	if err := env.Repository.UpsertTeams(ctx, teams); err != nil {
		return err
	}
	if err := env.Repository.UpsertTracks(ctx, tracks); err != nil {
		return err
	}
	log.Info("profiles imported",
		log.Int("teams", len(teams)),
		log.Int("tracks", len(tracks)))
	_, err = fmt.Fprintf(out, "imported %d teams and %d tracks\n", len(teams), len(tracks))
	return err
}

func all(ctx context.Context, src profile.Source) ([]model.TeamProfile, []model.TrackProfile, error) {
	teams, err := src.Teams(ctx)
	if err != nil {
		return nil, nil, err
	}
	tracks, err := src.Tracks(ctx)
	if err != nil {
		return nil, nil, err
	}
	return teams, tracks, nil
}

func WriteProfiles(out io.Writer, teams []model.TeamProfile, tracks []model.TrackProfile) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if len(teams) > 0 {
		fmt.Fprintln(tw, "TEAM\tPACE\tDEGRADATION")
		for _, t := range teams {
			fmt.Fprintf(tw, "%s\t%.4f\t%.3f\n", t.Name, t.PaceFactor, t.DegradationFactor)
		}
		fmt.Fprintln(tw)
	}
	if len(tracks) > 0 {
		fmt.Fprintln(tw, "TRACK\tLAPS\tDEGRADATION\tFUEL BURN\tTIGHT")
		for _, t := range tracks {
			fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.2f\t%s\n",
				t.Name, t.LapCount, t.BaselineDegradation, t.FuelBurn, tightText(t.Tight))
		}
	}
	return tw.Flush()
}

func tightText(tight *bool) string {
	if tight == nil {
		return "-"
	}
	return strconv.FormatBool(*tight)
}
