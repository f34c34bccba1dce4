package mongodb

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestEnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "createdCollectionAutomatically", Value: true}),
			mtest.CreateSuccessResponse(bson.E{Key: "createdCollectionAutomatically", Value: true}),
		)
		if err := EnsureIndexes(context.Background(), mt.DB); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	mt.Run("failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 85, Name: "IndexOptionsConflict", Message: "index options conflict",
		}))
		if err := EnsureIndexes(context.Background(), mt.DB); err == nil {
			t.Fatal("expected error")
		}
	})
}
