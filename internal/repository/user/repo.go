package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pairfecto/backend/internal/domain"
)

// Repo persists per-uid profiles in the users collection.
type Repo struct {
	coll *mongo.Collection
	now  func() time.Time
}

// New creates a user repository over the users collection.
func New(coll *mongo.Collection) *Repo {
	return &Repo{coll: coll, now: time.Now}
}

// Get returns the profile for uid or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, uid string) (domain.User, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": uid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("%w: find user: %w", domain.ErrDocumentStoreUnavailable, err)
	}
	return doc.toDomain(), nil
}

// Create inserts u unless a profile for u.UID already exists, and returns the
// stored document either way.
func (r *Repo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	now := toEpoch(r.now())
	prefs := bson.M{}
	for k, v := range u.Preferences {
		prefs[k] = v
	}

	update := bson.M{"$setOnInsert": bson.M{
		"email":       nullable(u.Email),
		"photo_url":   nullable(u.PhotoURL),
		"preferences": prefs,
		"created":     now,
		"updated":     now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc userDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": u.UID}, update, opts).Decode(&doc); err != nil {
		return domain.User{}, fmt.Errorf("%w: create user: %w", domain.ErrDocumentStoreUnavailable, err)
	}
	return doc.toDomain(), nil
}

// UpsertPreferences replaces the stored preferences, creating the profile if absent.
func (r *Repo) UpsertPreferences(ctx context.Context, uid string, prefs domain.Preferences) error {
	now := toEpoch(r.now())
	m := bson.M{}
	for k, v := range prefs {
		m[k] = v
	}

	update := bson.M{
		"$set":         bson.M{"preferences": m, "updated": now},
		"$setOnInsert": bson.M{"created": now},
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": uid}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("%w: upsert preferences: %w", domain.ErrDocumentStoreUnavailable, err)
	}
	return nil
}
