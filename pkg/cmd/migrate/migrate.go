package migrate

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/cmd/util"
	"github.com/mpapenbr/racestrategy/pkg/config"
	"github.com/mpapenbr/racestrategy/pkg/db/migrate"
	"github.com/mpapenbr/racestrategy/pkg/utils"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "performs database migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startMigration(cmd.Context())
		},
	}
	return cmd
}

func startMigration(ctx context.Context) error {
	if _, err := util.SetupLogger(); err != nil {
		return err
	}
	if config.DB == "" {
		return errors.New("no database configured (see --db)")
	}
	// wait for database
	if err := util.WaitForServices(ctx, utils.ExtractFromDBURL(config.DB)); err != nil {
		log.Error("database not ready", log.ErrorField(err))
		return err
	}
	applied, err := migrate.MigrateDB(config.DB)
	if err != nil {
		log.Error("migration failed", log.ErrorField(err))
		return err
	}
	if !applied {
		log.Info("No Migration required")
		return nil
	}
	log.Info("Migration applied")
	return nil
}
