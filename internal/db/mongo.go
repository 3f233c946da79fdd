package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vcruvinelr/share-notes/internal/config"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoDB wraps the client and the application database. Note content
// and the per-note operation log live here; Postgres holds only
// metadata and permissions.
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongo connects to MongoDB and pings it to fail fast on bad config.
func NewMongo(cfg *config.Config) (*MongoDB, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Println("✓ MongoDB connected successfully")

	return &MongoDB{
		Client:   client,
		Database: client.Database(cfg.MongoDBName),
	}, nil
}

// Close disconnects the client.
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
