// Package database opens the stores behind the documenten and admin data (MongoDB)
// and the catalogi, besluiten and autorisaties tables (gorm).
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/config"
)

const defaultMongoTimeout = 10 * time.Second

// ConnectMongo connects and pings within cfg.Timeout. The caller disconnects the client.
func ConnectMongo(ctx context.Context, cfg config.MongoDBConfig) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo: MONGODB_URI is not set")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultMongoTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("open-zaak").
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect %s: %w", cfg.Database, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping %s: %w", cfg.Database, err)
	}
	return client, nil
}
