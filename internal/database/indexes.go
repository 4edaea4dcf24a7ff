package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// EnsureIndexes creates the unique indexes the auth collections rely on.
// The uniqueness constraints back the duplicate-email check on registration
// and the one-record-per-user rule for two-factor and recovery state, so
// they must exist before the server takes traffic. CreateMany is a no-op
// for indexes that already exist.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, spec := range []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{
			collection: "users",
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "email", Value: 1}},
					Options: options.Index().SetUnique(true).SetName("email_unique"),
				},
			},
		},
		{
			collection: "two_factor",
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "userId", Value: 1}},
					Options: options.Index().SetUnique(true).SetName("userId_unique"),
				},
			},
		},
		{
			collection: "recovery_codes",
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "userId", Value: 1}},
					Options: options.Index().SetUnique(true).SetName("userId_unique"),
				},
			},
		},
	} {
		if _, err := db.Collection(spec.collection).Indexes().CreateMany(ctx, spec.models); err != nil {
			return fmt.Errorf("create indexes for %s: %w", spec.collection, err)
		}
	}
	return nil
}
