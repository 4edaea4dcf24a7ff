package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const usersCollection = "users"

// UserRepository persists accounts in the users collection. A unique index
// on email (ensured at startup) backs the duplicate-registration guarantee.
type UserRepository struct {
	Col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{Col: db.Collection(usersCollection)}
}

func (r *UserRepository) Create(ctx context.Context, email, name, passwordHash string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := r.Col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, Conflict("An account with this email already exists.")
		}
		return nil, storeError("insert user", err)
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.Col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("find user by email", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	var user User
	err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("find user by id", err)
	}
	return &user, nil
}

func (r *UserRepository) UpdateName(ctx context.Context, id, name string) (*User, error) {
	update := bson.M{"$set": bson.M{"name": name, "updatedAt": time.Now().UTC()}}
	res, err := r.Col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return nil, storeError("update user name", err)
	}
	if res.MatchedCount == 0 {
		return nil, NotFound("User not found.")
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	update := bson.M{"$set": bson.M{"passwordHash": passwordHash, "updatedAt": time.Now().UTC()}}
	res, err := r.Col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return storeError("update user password", err)
	}
	if res.MatchedCount == 0 {
		return NotFound("User not found.")
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.Col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return storeError("delete user", err)
	}
	return nil
}

// storeError classifies driver failures once, at the repository boundary:
// connectivity/timeout problems become unavailable, everything else is
// internal. Duplicate-key conflicts are handled at the call sites that can
// race on unique indexes.
func storeError(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected),
		mongo.IsTimeout(err),
		mongo.IsNetworkError(err):
		return Unavailable(wrapped)
	default:
		return Internal(wrapped)
	}
}
