package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pairfecto/backend/internal/domain"
)

type accountDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	GoogleUserID string             `bson:"google_user_id"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
	DeletedAt    *time.Time         `bson:"deleted_at"`
}

func (d accountDoc) toDomain() domain.Account {
	return domain.Account{
		ID:           d.ID.Hex(),
		GoogleUserID: d.GoogleUserID,
		Email:        d.Email,
		Name:         d.Name,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		DeletedAt:    d.DeletedAt,
	}
}

// Repo persists login accounts.
type Repo struct {
	coll *mongo.Collection
	now  func() time.Time
}

// New creates an account repository over the accounts collection.
func New(coll *mongo.Collection) *Repo {
	return &Repo{coll: coll, now: time.Now}
}

// GetByGoogleUserID returns the live account for the identity subject.
func (r *Repo) GetByGoogleUserID(ctx context.Context, googleUserID string) (domain.Account, error) {
	var doc accountDoc
	err := r.coll.FindOne(ctx, bson.M{"google_user_id": googleUserID, "deleted_at": nil}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("%w: find account: %w", domain.ErrDocumentStoreUnavailable, err)
	}
	return doc.toDomain(), nil
}

// Create inserts a new account. A concurrent insert for the same subject yields domain.ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, googleUserID, email, name string) (domain.Account, error) {
	now := r.now().UTC()
	doc := accountDoc{
		ID:           primitive.NewObjectID(),
		GoogleUserID: googleUserID,
		Email:        email,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Account{}, domain.ErrAlreadyExists
		}
		return domain.Account{}, fmt.Errorf("%w: insert account: %w", domain.ErrDocumentStoreUnavailable, err)
	}
	return doc.toDomain(), nil
}

// SoftDelete stamps deleted_at on the account; the document stays in place.
func (r *Repo) SoftDelete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: account id %q", domain.ErrInvalidInput, id)
	}

	now := r.now().UTC()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("%w: soft delete account: %w", domain.ErrDocumentStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
