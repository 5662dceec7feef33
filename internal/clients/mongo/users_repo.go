package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourbook/internal/logger"
	"tourbook/internal/services/auth"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersRepo is the MongoDB credential store. It serves auth.UsersRepo,
// users.Repository and the guide/author lookups of tours and reviews.
type UsersRepo struct {
	collection *mongo.Collection
}

// publicUserFields is the projection used when users are shown next to
// other documents.
var publicUserFields = bson.M{"name": 1, "email": 1, "photo": 1, "role": 1, "active": 1}

// NewUsersRepo creates a new users repository
func NewUsersRepo(parentCtx context.Context, db *mongo.Database) (*UsersRepo, error) {
	collection := db.Collection("users")

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "password_reset_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	ctx, cancel := context.WithTimeout(parentCtx, OpTimeout)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.L().Error("failed to create index", "collection", "users", "error", err)
		return nil, fmt.Errorf("failed to create users collection index: %w", err)
	}

	return &UsersRepo{collection: collection}, nil
}

func translateUserErr(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return auth.ErrUserNotFound
	case mongo.IsDuplicateKeyError(err):
		return auth.ErrDuplicate
	default:
		return err
	}
}

// Create creates a new user in the database
func (r *UsersRepo) Create(ctx context.Context, user *auth.User) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, user)
	return translateUserErr(err)
}

// FindByEmail finds an active user by email address
func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByID finds an active user by id
func (r *UsersRepo) FindByID(ctx context.Context, id bson.ObjectID) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// ConsumeResetToken matches the active user holding an unexpired reset token
// and swaps in the new password in one FindOneAndUpdate, so a token can be
// spent only once.
func (r *UsersRepo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string, changedAt time.Time) (*auth.User, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	filter := withDefault(activeUsers, bson.M{
		"password_reset_token":   tokenHash,
		"password_reset_expires": bson.M{"$gt": now},
	})

	var user auth.User
	err := r.collection.FindOneAndUpdate(ctx, filter,
		passwordUpdate(passwordHash, changedAt),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return nil, translateUserErr(err)
	}
	return &user, nil
}

// FindByIDs returns the active users among ids in their public projection.
func (r *UsersRepo) FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]*auth.User, error) {
	if len(ids) == 0 {
		return []*auth.User{}, nil
	}

	ctx, cancel := repoCtx(ctx)
	defer cancel()

	filter := withDefault(activeUsers, bson.M{"_id": bson.M{"$in": ids}})
	cur, err := r.collection.Find(ctx, filter, options.Find().SetProjection(publicUserFields))
	if err != nil {
		return nil, err
	}

	users := []*auth.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// List returns active users, oldest first.
func (r *UsersRepo) List(ctx context.Context, skip, limit int64) ([]*auth.User, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.collection.Find(ctx, activeUsers, opts)
	if err != nil {
		return nil, err
	}

	users := []*auth.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetResetToken stores a reset token hash and expiry, leaving every other
// field untouched.
func (r *UsersRepo) SetResetToken(ctx context.Context, id bson.ObjectID, tokenHash string, expiresAt time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"password_reset_token":   tokenHash,
		"password_reset_expires": expiresAt,
	}})
}

// ClearResetToken drops a pending reset token.
func (r *UsersRepo) ClearResetToken(ctx context.Context, id bson.ObjectID) error {
	return r.updateOne(ctx, id, bson.M{"$unset": bson.M{
		"password_reset_token":   "",
		"password_reset_expires": "",
	}})
}

// SetPassword replaces the password hash, records the change time and
// clears any pending reset token in one document update.
func (r *UsersRepo) SetPassword(ctx context.Context, id bson.ObjectID, passwordHash string, changedAt time.Time) error {
	return r.updateOne(ctx, id, passwordUpdate(passwordHash, changedAt))
}

func passwordUpdate(passwordHash string, changedAt time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"password_hash":       passwordHash,
			"password_changed_at": changedAt,
		},
		"$unset": bson.M{
			"password_reset_token":   "",
			"password_reset_expires": "",
		},
	}
}

// Update applies a profile patch to an active user and returns the result.
func (r *UsersRepo) Update(ctx context.Context, id bson.ObjectID, patch auth.UserPatch) (*auth.User, error) {
	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Photo != nil {
		set["photo"] = *patch.Photo
	}
	if patch.Role != nil {
		set["role"] = *patch.Role
	}

	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var user auth.User
	err := r.collection.FindOneAndUpdate(ctx,
		withDefault(activeUsers, bson.M{"_id": id}),
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return nil, translateUserErr(err)
	}
	return &user, nil
}

// Deactivate soft-deletes a user.
func (r *UsersRepo) Deactivate(ctx context.Context, id bson.ObjectID) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"active": false}})
}

// Delete removes a user document.
func (r *UsersRepo) Delete(ctx context.Context, id bson.ObjectID) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (r *UsersRepo) findOne(ctx context.Context, filter bson.M) (*auth.User, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var user auth.User
	if err := r.collection.FindOne(ctx, withDefault(activeUsers, filter)).Decode(&user); err != nil {
		return nil, translateUserErr(err)
	}
	return &user, nil
}

func (r *UsersRepo) updateOne(ctx context.Context, id bson.ObjectID, update bson.M) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx, withDefault(activeUsers, bson.M{"_id": id}), update)
	if err != nil {
		return translateUserErr(err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}
