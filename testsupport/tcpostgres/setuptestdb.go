//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/racestrategy/pkg/db/migrate"
	database "github.com/mpapenbr/racestrategy/pkg/db/postgres"
)

// SetupTestDB starts (or reuses) a postgres container and returns a pool
// for the migrated profile database
func SetupTestDB() *pgxpool.Pool {
	ctx := context.Background()
	container, err := SetupPostgres(ctx, WithName("racestrategy-test"))
	if err != nil {
		log.Fatal(err)
	}
	dbURL, err := container.URL(ctx)
	if err != nil {
		log.Fatal(err)
	}
	return setupPool(ctx, dbURL)
}

// SetupExternalTestDB uses the database given by the environment variable TESTDB_URL
func SetupExternalTestDB() *pgxpool.Pool {
	return setupPool(context.Background(), os.Getenv("TESTDB_URL"))
}

func setupPool(ctx context.Context, dbURL string) *pgxpool.Pool {
	if _, err := migrate.MigrateDB(dbURL); err != nil {
		log.Fatal(err)
	}
	pool, err := database.InitWithURL(ctx, dbURL)
	if err != nil {
		log.Fatal(err)
	}
	return pool
}

func ClearTeamProfileTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from team_profile")
}

func ClearTrackProfileTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from track_profile")
}

func ClearAllTables(pool *pgxpool.Pool) {
	ClearTeamProfileTable(pool)
	ClearTrackProfileTable(pool)
}
