// Package mongodb owns the document store connection and its indexes.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	CollUsers    = "users"
	CollAccounts = "accounts"
	CollPartners = "partners"
)

// Config holds connection parameters.
type Config struct {
	URI      string
	Database string
}

// Store is a long-lived handle to the pairfecto database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials the server, pings it and ensures indexes exist.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetAppName("pairfecto").
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, db: client.Database(cfg.Database)}
	if err := EnsureIndexes(ctx, s.db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Database returns the pairfecto database handle.
func (s *Store) Database() *mongo.Database { return s.db }

// Collection returns a collection handle by name.
func (s *Store) Collection(name string) *mongo.Collection { return s.db.Collection(name) }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the lookup indexes used by the repositories. CreateMany is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	accountIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "google_user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("google_user_id_unique"),
		},
	}
	if _, err := db.Collection(CollAccounts).Indexes().CreateMany(ctx, accountIndexes); err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}

	partnerIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "google_user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("google_user_id_created_at"),
		},
	}
	if _, err := db.Collection(CollPartners).Indexes().CreateMany(ctx, partnerIndexes); err != nil {
		return fmt.Errorf("create partner indexes: %w", err)
	}
	return nil
}
