// Package testutil starts the backing services integration tests run
// against.
package testutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgImage    = "pgvector/pgvector:0.8.1-pg18"
	pgCreds    = "bokai"
	s3Image    = "rustfs/rustfs:latest"
	S3Key      = "rustfsadmin"
	appRoleSQL = `DO $$ BEGIN
	IF NOT EXISTS (SELECT FROM pg_roles WHERE rolname = '%[1]s') THEN
		CREATE ROLE %[1]s LOGIN PASSWORD '%[1]s';
	END IF;
END $$;
GRANT ALL ON SCHEMA public TO %[1]s;
GRANT ALL ON ALL TABLES IN SCHEMA public TO %[1]s;`
)

// AppRole is an unprivileged login role. Superusers bypass row level
// security, so isolation tests connect as this role.
const AppRole = "bokai_app"

type service struct {
	container testcontainers.Container
	Host      string
	Port      string
}

func (s *service) Terminate(context.Context) error {
	return testcontainers.TerminateContainer(s.container)
}

func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port string) service {
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
		t.Fatalf("container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("container port %s: %v", port, err)
	}
	return service{container: c, Host: host, Port: mapped.Port()}
}

// PostgresContainer is a pgvector-enabled Postgres.
type PostgresContainer struct {
	service
	Database string
}

func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	svc := start(ctx, t, testcontainers.ContainerRequest{
		Image:        pgImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgCreds,
			"POSTGRES_PASSWORD": pgCreds,
			"POSTGRES_DB":       pgCreds,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(time.Minute),
	}, "5432/tcp")
	return &PostgresContainer{service: svc, Database: pgCreds}
}

func (pc *PostgresContainer) url(user string) string {
	return fmt.Sprintf("postgres://%[1]s:%[1]s@%s:%s/%s?sslmode=disable", user, pc.Host, pc.Port, pc.Database)
}

// ConnectionString logs in as the superuser.
func (pc *PostgresContainer) ConnectionString() string {
	return pc.url(pgCreds)
}

// NewTestPool applies the migrations in dir and returns a superuser pool.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer, dir string) *pgxpool.Pool {
	t.Helper()
	if err := migrateUp(pc.ConnectionString(), "file://"+dir); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := pgxpool.New(ctx, pc.ConnectionString())
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("ping: %v", err)
	}
	return pool
}

func migrateUp(databaseURL, source string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// AppConnectionString ensures AppRole exists with access to the schema and
// returns a URL that logs in as it.
func AppConnectionString(ctx context.Context, t *testing.T, pc *PostgresContainer, admin *pgxpool.Pool) string {
	t.Helper()
	if _, err := admin.Exec(ctx, fmt.Sprintf(appRoleSQL, AppRole)); err != nil {
		t.Fatalf("prepare app role: %v", err)
	}
	return pc.url(AppRole)
}

// RustFSContainer is an S3-compatible store. Both keys are S3Key.
type RustFSContainer struct {
	service
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	svc := start(ctx, t, testcontainers.ContainerRequest{
		Image:        s3Image,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": S3Key,
			"RUSTFS_SECRET_KEY": S3Key,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, "9000/tcp")
	return &RustFSContainer{service: svc}
}

func (rc *RustFSContainer) Endpoint() string {
	return "http://" + rc.Host + ":" + rc.Port
}
