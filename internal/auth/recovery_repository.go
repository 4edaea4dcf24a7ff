package auth

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const recoveryCollection = "recovery_codes"

// RecoveryCodeRepository persists recovery batches. One document per user
// (unique userId index) holds the whole batch, so batch replacement and
// code consumption are single-document atomic operations.
type RecoveryCodeRepository struct {
	Col *mongo.Collection
}

func NewRecoveryCodeRepository(db *mongo.Database) *RecoveryCodeRepository {
	return &RecoveryCodeRepository{Col: db.Collection(recoveryCollection)}
}

// Replace installs a new batch, atomically superseding any prior one. A
// reader either sees the complete old batch or the complete new one, never
// a mix.
func (r *RecoveryCodeRepository) Replace(ctx context.Context, set *RecoveryCodeSet) error {
	filter := bson.M{"userId": set.UserID}
	update := bson.M{
		"$set":         bson.M{"codes": set.Codes, "generatedAt": set.GeneratedAt},
		"$setOnInsert": bson.M{"_id": set.ID},
	}
	_, err := r.Col.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return storeError("replace recovery batch", err)
	}
	return nil
}

func (r *RecoveryCodeRepository) FindByUserID(ctx context.Context, userID string) (*RecoveryCodeSet, error) {
	var set RecoveryCodeSet
	err := r.Col.FindOne(ctx, bson.M{"userId": userID}).Decode(&set)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("find recovery batch", err)
	}
	return &set, nil
}

// Consume marks the code with the given digest consumed, if and only if it
// is still unconsumed. The positional update matches inside one document,
// so of any number of concurrent submissions of the same code exactly one
// observes ModifiedCount == 1 and wins.
func (r *RecoveryCodeRepository) Consume(ctx context.Context, userID, codeHash string, at time.Time) (bool, error) {
	filter := bson.M{
		"userId": userID,
		"codes":  bson.M{"$elemMatch": bson.M{"hash": codeHash, "consumed": false}},
	}
	update := bson.M{"$set": bson.M{
		"codes.$.consumed":   true,
		"codes.$.consumedAt": at,
	}}

	res, err := r.Col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeError("consume recovery code", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *RecoveryCodeRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.Col.DeleteOne(ctx, bson.M{"userId": userID}); err != nil {
		return storeError("delete recovery batch", err)
	}
	return nil
}
