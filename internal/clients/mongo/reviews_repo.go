package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourbook/internal/logger"
	"tourbook/internal/services/reviews"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ReviewsRepo is the MongoDB implementation of reviews.Repository.
type ReviewsRepo struct {
	collection *mongo.Collection
}

// NewReviewsRepo creates a new reviews repository
func NewReviewsRepo(parentCtx context.Context, db *mongo.Database) (*ReviewsRepo, error) {
	collection := db.Collection("reviews")

	indexes := []mongo.IndexModel{
		{
			// one review per user per tour
			Keys:    bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "tour", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	ctx, cancel := context.WithTimeout(parentCtx, OpTimeout)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.L().Error("failed to create index", "collection", "reviews", "error", err)
		return nil, fmt.Errorf("failed to create reviews collection index: %w", err)
	}

	return &ReviewsRepo{collection: collection}, nil
}

func translateReviewErr(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return reviews.ErrReviewNotFound
	case mongo.IsDuplicateKeyError(err):
		return reviews.ErrAlreadyReviewed
	default:
		return err
	}
}

// Create inserts a review.
func (r *ReviewsRepo) Create(ctx context.Context, review *reviews.Review) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	if review.ID.IsZero() {
		review.ID = bson.NewObjectID()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, review)
	return translateReviewErr(err)
}

// FindByID returns a review by id.
func (r *ReviewsRepo) FindByID(ctx context.Context, id bson.ObjectID) (*reviews.Review, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var review reviews.Review
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&review); err != nil {
		return nil, translateReviewErr(err)
	}
	return &review, nil
}

// List returns reviews newest first. A zero tourID lists all reviews and
// a zero limit returns everything after skip.
func (r *ReviewsRepo) List(ctx context.Context, tourID bson.ObjectID, skip, limit int64) ([]*reviews.Review, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	filter := bson.M{}
	if !tourID.IsZero() {
		filter["tour"] = tourID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	list := []*reviews.Review{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Update applies a patch and returns the updated review.
func (r *ReviewsRepo) Update(ctx context.Context, id bson.ObjectID, patch reviews.Patch) (*reviews.Review, error) {
	set := bson.M{}
	if patch.Review != nil {
		set["review"] = *patch.Review
	}
	if patch.Rating != nil {
		set["rating"] = *patch.Rating
	}

	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var review reviews.Review
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&review)
	if err != nil {
		return nil, translateReviewErr(err)
	}
	return &review, nil
}

// Delete removes a review.
func (r *ReviewsRepo) Delete(ctx context.Context, id bson.ObjectID) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return reviews.ErrReviewNotFound
	}
	return nil
}

// RatingStats averages and counts the ratings of one tour. A tour without
// reviews yields the zero value.
func (r *ReviewsRepo) RatingStats(ctx context.Context, tourID bson.ObjectID) (reviews.RatingStats, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tour"},
			{Key: "n_rating", Value: bson.M{"$sum": 1}},
			{Key: "avg_rating", Value: bson.M{"$avg": "$rating"}},
		}}},
	}

	cur, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return reviews.RatingStats{}, err
	}

	var out []reviews.RatingStats
	if err := cur.All(ctx, &out); err != nil {
		return reviews.RatingStats{}, err
	}
	if len(out) == 0 {
		return reviews.RatingStats{}, nil
	}
	return out[0], nil
}
