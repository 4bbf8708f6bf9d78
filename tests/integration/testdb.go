// Package integration runs the document lifecycle against real PostgreSQL and
// Redis instances started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/infrastructure/logger"
	"github.com/erp/salesdocs/internal/infrastructure/migration"
	"github.com/erp/salesdocs/migrations"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const containerStartup = 60 * time.Second

// TestDB is a migrated PostgreSQL database in its own container. The
// container is removed when the test ends.
type TestDB struct {
	DB  *gorm.DB
	DSN string
	t   *testing.T
}

// NewTestDB starts PostgreSQL, applies the embedded migrations and connects
// GORM through the service's SQL logger. TEST_DB_DEBUG logs every statement.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("salesdocs_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(containerStartup)),
	)
	require.NoError(t, err, "start postgres container")
	terminateOnCleanup(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "postgres connection string")
	migrate(t, dsn)

	level := gormlogger.Warn
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.NewSQLLogger(zaptest.NewLogger(t), level),
	})
	require.NoError(t, err, "connect gorm")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return &TestDB{DB: db, DSN: dsn, t: t}
}

// migrate applies the embedded migrations over a connection of its own,
// since closing the migrator closes the *sql.DB it was given
func migrate(t *testing.T, dsn string) {
	t.Helper()

	conn, err := sql.Open("postgres", dsn)
	require.NoError(t, err, "open migration connection")
	m, err := migration.NewFromFS(conn, migrations.FS, zap.NewNop())
	require.NoError(t, err, "create migrator")
	defer func() {
		_ = m.Close()
	}()
	require.NoError(t, m.Up(), "apply migrations")
}

// CreateTestProject inserts an open project for one customer ordering 5 t of
// concrete at 80 EUR and returns its ID.
func (tdb *TestDB) CreateTestProject() uuid.UUID {
	tdb.t.Helper()

	id := uuid.New()
	err := tdb.DB.Exec(`
		INSERT INTO projects (id, customer_number, customer_name, street, postal_code, city,
			article_number, article_description, unit, quantity, unit_price, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, "K-1001", "Bau GmbH", "Hafenstraße 4", "50667", "Köln",
		"TM-ZM", "Transportbeton C25/30", "t", decimal.NewFromInt(5), decimal.NewFromInt(80),
		string(document.ProjectStatusOpen)).Error
	require.NoError(tdb.t, err, "insert test project")
	return id
}

// NewTestRedis starts Redis and returns a connected client.
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(containerStartup),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")
	terminateOnCleanup(t, container)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err, "redis endpoint")

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() {
		_ = client.Close()
	})
	require.NoError(t, client.Ping(ctx).Err(), "ping redis")
	return client
}

func terminateOnCleanup(t *testing.T, container testcontainers.Container) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
}
