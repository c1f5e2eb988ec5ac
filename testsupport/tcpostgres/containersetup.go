package tcpostgres

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultImage = "postgres:15"
	postgresPort = nat.Port("5432/tcp")
)

// PostgresContainer is a started postgres container holding the profile database
type PostgresContainer struct {
	testcontainers.Container
	user     string
	password string
	database string
}

type (
	containerConfig struct {
		image    string
		name     string
		user     string
		password string
		database string
		waitFor  []wait.Strategy
	}
	PostgresContainerOption func(cfg *containerConfig)
)

func WithImage(image string) PostgresContainerOption {
	return func(cfg *containerConfig) {
		cfg.image = image
	}
}

// WithWaitStrategy replaces the default readiness check
func WithWaitStrategy(strategies ...wait.Strategy) PostgresContainerOption {
	return func(cfg *containerConfig) {
		cfg.waitFor = strategies
	}
}

// WithName sets the container name. Named containers are reused between test runs.
func WithName(containerName string) PostgresContainerOption {
	return func(cfg *containerConfig) {
		cfg.name = containerName
	}
}

func WithInitialDatabase(user, password, dbName string) PostgresContainerOption {
	return func(cfg *containerConfig) {
		cfg.user = user
		cfg.password = password
		cfg.database = dbName
	}
}

//nolint:whitespace // editor/linter issue
func SetupPostgres(ctx context.Context, opts ...PostgresContainerOption) (
	*PostgresContainer, error,
) {
	cfg := &containerConfig{
		image:    defaultImage,
		user:     "postgres",
		password: "password",
		database: "racestrategy",
		waitFor: []wait.Strategy{
			// the server restarts once after running the init scripts
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30 * time.Second),
			wait.ForListeningPort(postgresPort),
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		Name:         cfg.name,
		ExposedPorts: []string{string(postgresPort)},
		Env: map[string]string{
			"POSTGRES_USER":     cfg.user,
			"POSTGRES_PASSWORD": cfg.password,
			"POSTGRES_DB":       cfg.database,
		},
		Cmd:        []string{"postgres", "-c", "fsync=off"},
		Tmpfs:      map[string]string{"/var/lib/postgresql/data": "rw"},
		WaitingFor: wait.ForAll(cfg.waitFor...).WithDeadline(time.Minute),
	}
	container, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
			Reuse:            cfg.name != "",
		})
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", cfg.image, err)
	}
	return &PostgresContainer{
		Container: container,
		user:      cfg.user,
		password:  cfg.password,
		database:  cfg.database,
	}, nil
}

// URL returns the connection string of the database as seen from the host
func (c *PostgresContainer) URL(ctx context.Context) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, postgresPort)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		c.user, c.password, host, port.Port(), c.database), nil
}
