package auth

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const twoFactorCollection = "two_factor"

// TwoFactorRepository persists TOTP records, one per user (unique userId
// index). State transitions that must not race use conditional updates on
// the enabled flag.
type TwoFactorRepository struct {
	Col *mongo.Collection
}

func NewTwoFactorRepository(db *mongo.Database) *TwoFactorRepository {
	return &TwoFactorRepository{Col: db.Collection(twoFactorCollection)}
}

func (r *TwoFactorRepository) FindByUserID(ctx context.Context, userID string) (*TwoFactorRecord, error) {
	var rec TwoFactorRecord
	err := r.Col.FindOne(ctx, bson.M{"userId": userID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("find two-factor record", err)
	}
	return &rec, nil
}

// SavePending writes a pending record, or swaps the secret on an existing
// pending one. The filter only matches a missing or still-pending record;
// if an enabled record slipped in concurrently the upsert collides with
// the unique userId index and the write is rejected as a conflict.
func (r *TwoFactorRepository) SavePending(ctx context.Context, rec *TwoFactorRecord) error {
	filter := bson.M{"userId": rec.UserID, "enabled": false}
	update := bson.M{
		"$set":         bson.M{"secret": rec.Secret, "updatedAt": rec.UpdatedAt},
		"$setOnInsert": bson.M{"_id": rec.ID, "createdAt": rec.CreatedAt},
	}
	_, err := r.Col.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Conflict("Two-factor authentication is already enabled.")
		}
		return storeError("save pending two-factor record", err)
	}
	return nil
}

// Enable flips a pending record to enabled. Returns nil when no pending
// record exists (never configured, or already enabled).
func (r *TwoFactorRepository) Enable(ctx context.Context, userID string, at time.Time) (*TwoFactorRecord, error) {
	filter := bson.M{"userId": userID, "enabled": false}
	update := bson.M{"$set": bson.M{
		"enabled":     true,
		"confirmedAt": at,
		"updatedAt":   at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec TwoFactorRecord
	err := r.Col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("enable two-factor record", err)
	}
	return &rec, nil
}

// TouchVerified stamps a successful standing verification on an enabled
// record.
func (r *TwoFactorRepository) TouchVerified(ctx context.Context, userID string, at time.Time) error {
	filter := bson.M{"userId": userID, "enabled": true}
	update := bson.M{"$set": bson.M{"lastVerifiedAt": at, "updatedAt": at}}
	if _, err := r.Col.UpdateOne(ctx, filter, update); err != nil {
		return storeError("touch two-factor record", err)
	}
	return nil
}

// Delete removes the record entirely, returning whether one existed.
func (r *TwoFactorRepository) Delete(ctx context.Context, userID string) (bool, error) {
	res, err := r.Col.DeleteOne(ctx, bson.M{"userId": userID})
	if err != nil {
		return false, storeError("delete two-factor record", err)
	}
	return res.DeletedCount > 0, nil
}
