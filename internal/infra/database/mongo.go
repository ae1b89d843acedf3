package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/arklim/expense-tracker-iam/internal/infra/config"
)

const defaultMongoConnectTimeout = 10 * time.Second

// MongoDatabase owns the client behind the configured database handle.
type MongoDatabase struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDatabase connects to MongoDB and verifies the primary is reachable.
func NewMongoDatabase(ctx context.Context, cfg config.MongoSettings, log *zap.Logger) (*MongoDatabase, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultMongoConnectTimeout
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	log.Info("mongo connected", zap.String("database", cfg.Database))

	return &MongoDatabase{client: client, db: client.Database(cfg.Database)}, nil
}

// Database returns the configured database handle.
func (m *MongoDatabase) Database() *mongo.Database {
	return m.db
}

// Ping checks the primary is reachable.
func (m *MongoDatabase) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (m *MongoDatabase) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
