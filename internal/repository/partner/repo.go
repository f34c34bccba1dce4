package partner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pairfecto/backend/internal/domain"
)

type partnerDoc struct {
	ID           primitive.ObjectID        `bson:"_id,omitempty"`
	GoogleUserID string                    `bson:"google_user_id"`
	Name         string                    `bson:"name"`
	Preferences  domain.PartnerPreferences `bson:"preferences"`
	CreatedAt    time.Time                 `bson:"created_at"`
	UpdatedAt    time.Time                 `bson:"updated_at"`
	DeletedAt    *time.Time                `bson:"deleted_at"`
}

func (d partnerDoc) toDomain() domain.Partner {
	return domain.Partner{
		ID:           d.ID.Hex(),
		GoogleUserID: d.GoogleUserID,
		Name:         d.Name,
		Preferences:  d.Preferences.Normalize(),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		DeletedAt:    d.DeletedAt,
	}
}

// Repo persists partner records. Each caller has at most one live partner in practice;
// reads return the most recently created one.
type Repo struct {
	coll *mongo.Collection
	now  func() time.Time
}

// New creates a partner repository over the partners collection.
func New(coll *mongo.Collection) *Repo {
	return &Repo{coll: coll, now: time.Now}
}

// GetByGoogleUserID returns the newest live partner owned by the subject.
func (r *Repo) GetByGoogleUserID(ctx context.Context, googleUserID string) (domain.Partner, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findOne(ctx, bson.M{"google_user_id": googleUserID, "deleted_at": nil}, opts)
}

// GetByID returns a live partner by its hex id. Malformed ids are reported as not found.
func (r *Repo) GetByID(ctx context.Context, id string) (domain.Partner, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Partner{}, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid, "deleted_at": nil})
}

func (r *Repo) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (domain.Partner, error) {
	var doc partnerDoc
	if err := r.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Partner{}, domain.ErrNotFound
		}
		return domain.Partner{}, fmt.Errorf("%w: find partner: %w", domain.ErrDocumentStoreUnavailable, err)
	}
	return doc.toDomain(), nil
}

// Create stores a new partner for the subject.
func (r *Repo) Create(ctx context.Context, googleUserID string, in domain.PartnerCreate) (domain.Partner, error) {
	now := r.now().UTC()
	doc := partnerDoc{
		ID:           primitive.NewObjectID(),
		GoogleUserID: googleUserID,
		Name:         in.Name,
		Preferences:  in.Preferences.Normalize(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return domain.Partner{}, fmt.Errorf("%w: insert partner: %w", domain.ErrDocumentStoreUnavailable, err)
	}
	return doc.toDomain(), nil
}

// SoftDelete stamps deleted_at on a live partner owned by the subject.
func (r *Repo) SoftDelete(ctx context.Context, googleUserID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}

	now := r.now().UTC()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "google_user_id": googleUserID, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("%w: soft delete partner: %w", domain.ErrDocumentStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
