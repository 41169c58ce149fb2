// Package testutil starts throwaway Postgres and Redis containers for
// integration and e2e tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgImage = "pgvector/pgvector:0.8.1-pg18"
	pgCreds = "outreach"

	redisImage = "redis:7-alpine"
)

type endpoint struct {
	container testcontainers.Container
	host      string
	port      string
}

func (e endpoint) terminate() error {
	return e.container.Terminate(context.Background())
}

func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port string) endpoint {
	t.Helper()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("%s port %s: %v", req.Image, port, err)
	}
	return endpoint{container: c, host: host, port: mapped.Port()}
}

// PostgresContainer is a running pgvector-enabled Postgres.
type PostgresContainer struct {
	endpoint
}

// NewPostgresContainer starts Postgres with the vector extension available.
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	ep := start(ctx, t, testcontainers.ContainerRequest{
		Image:        pgImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgCreds,
			"POSTGRES_PASSWORD": pgCreds,
			"POSTGRES_DB":       pgCreds,
		},
		// postgres logs readiness once for the init server and once for the real one
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(time.Minute),
	}, "5432")
	return &PostgresContainer{endpoint: ep}
}

// ConnectionString returns a pgx URL for the container.
func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", pgCreds, pgCreds, pc.host, pc.port, pgCreds)
}

func (pc *PostgresContainer) Terminate(context.Context) error {
	return pc.terminate()
}

// NewTestPool applies migrate to the container and returns a pool once the
// server answers pings.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer, migrate func(url string) error) *pgxpool.Pool {
	t.Helper()

	var pool *pgxpool.Pool
	connect := func() error {
		p, err := pgxpool.New(ctx, pc.ConnectionString())
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 10), ctx)
	if err := backoff.Retry(connect, policy); err != nil {
		t.Fatalf("connect to postgres: %v", err)
	}

	if migrate != nil {
		if err := migrate(pc.ConnectionString()); err != nil {
			pool.Close()
			t.Fatalf("migrate: %v", err)
		}
	}
	return pool
}

// RedisContainer is a running Redis.
type RedisContainer struct {
	endpoint
}

func NewRedisContainer(ctx context.Context, t *testing.T) *RedisContainer {
	ep := start(ctx, t, testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections"),
			wait.ForListeningPort("6379/tcp"),
		).WithStartupTimeout(30 * time.Second),
	}, "6379")
	return &RedisContainer{endpoint: ep}
}

// URL returns a redis:// URL for database 0.
func (rc *RedisContainer) URL() string {
	return fmt.Sprintf("redis://%s:%s/0", rc.host, rc.port)
}

func (rc *RedisContainer) Terminate(context.Context) error {
	return rc.terminate()
}
