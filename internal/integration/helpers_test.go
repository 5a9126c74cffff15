//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/couchcryptid/geocoder-bundle/internal/adapter/postgres"
	"github.com/couchcryptid/geocoder-bundle/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startPostgres runs a disposable PostgreSQL container and returns an open
// database with the schema applied.
func startPostgres(ctx context.Context, t *testing.T) *sql.DB {
	t.Helper()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("geocoder"),
		tcpostgres.WithUsername("geocoder"),
		tcpostgres.WithPassword("geocoder"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, postgres.EnsureSchema(ctx, db))
	return db
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("geocoder-test"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// staticProvider answers from a fixed address book.
type staticProvider struct {
	book map[string]domain.Coordinates
}

func (p *staticProvider) Name() string { return "static" }

func (p *staticProvider) Geocode(_ context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	c, ok := p.book[strings.TrimSpace(q.Text)]
	if !ok {
		return domain.Collection{}, nil
	}
	return domain.Collection{{Coordinates: &c, ProvidedBy: p.Name()}}, nil
}
