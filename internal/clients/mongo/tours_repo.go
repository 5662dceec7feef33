package mongo

import (
	"context"
	"errors"
	"fmt"

	"tourbook/internal/logger"
	"tourbook/internal/services/tours"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ToursRepo is the MongoDB implementation of tours.Repository. It also
// serves the rating bookkeeping of the reviews service.
type ToursRepo struct {
	collection *mongo.Collection
}

// NewToursRepo creates a new tours repository
func NewToursRepo(parentCtx context.Context, db *mongo.Database) (*ToursRepo, error) {
	collection := db.Collection("tours")

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "slug", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratings_average", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "start_location", Value: "2dsphere"}},
		},
	}

	ctx, cancel := context.WithTimeout(parentCtx, OpTimeout)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.L().Error("failed to create index", "collection", "tours", "error", err)
		return nil, fmt.Errorf("failed to create tours collection index: %w", err)
	}

	return &ToursRepo{collection: collection}, nil
}

func translateTourErr(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return tours.ErrTourNotFound
	case mongo.IsDuplicateKeyError(err):
		return tours.ErrDuplicateName
	default:
		return err
	}
}

// Create inserts a tour.
func (r *ToursRepo) Create(ctx context.Context, tour *tours.Tour) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	if tour.ID.IsZero() {
		tour.ID = bson.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, tour)
	return translateTourErr(err)
}

// FindByID returns a public tour by id.
func (r *ToursRepo) FindByID(ctx context.Context, id bson.ObjectID) (*tours.Tour, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindBySlug returns a public tour by slug.
func (r *ToursRepo) FindBySlug(ctx context.Context, slug string) (*tours.Tour, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

// Exists reports whether a public tour with id exists.
func (r *ToursRepo) Exists(ctx context.Context, id bson.ObjectID) (bool, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	n, err := r.collection.CountDocuments(ctx, withDefault(publicTours, bson.M{"_id": id}), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns one page of public tours.
func (r *ToursRepo) List(ctx context.Context, q tours.ListQuery) ([]*tours.Tour, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	filter := bson.M{}
	if q.Difficulty != "" {
		filter["difficulty"] = q.Difficulty
	}

	dir := 1
	if q.SortDesc {
		dir = -1
	}
	// _id breaks ties so pages never overlap.
	sort := bson.D{{Key: q.SortField, Value: dir}, {Key: "_id", Value: dir}}

	opts := options.Find().SetSort(sort).SetSkip(q.Skip)
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cur, err := r.collection.Find(ctx, withDefault(publicTours, filter), opts)
	if err != nil {
		return nil, err
	}

	list := []*tours.Tour{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Update applies a patch to a public tour and returns the result.
func (r *ToursRepo) Update(ctx context.Context, id bson.ObjectID, patch tours.Patch) (*tours.Tour, error) {
	set := tourPatchSet(patch)

	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var tour tours.Tour
	err := r.collection.FindOneAndUpdate(ctx,
		withDefault(publicTours, bson.M{"_id": id}),
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&tour)
	if err != nil {
		return nil, translateTourErr(err)
	}
	return &tour, nil
}

// SetRatings stores the derived rating fields of a tour.
func (r *ToursRepo) SetRatings(ctx context.Context, id bson.ObjectID, average float64, quantity int) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"ratings_average":  average,
		"ratings_quantity": quantity,
	}})
	return err
}

// Delete removes a tour.
func (r *ToursRepo) Delete(ctx context.Context, id bson.ObjectID) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, withDefault(publicTours, bson.M{"_id": id}))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return tours.ErrTourNotFound
	}
	return nil
}

// Stats groups public tours rated at least minRating by difficulty,
// cheapest group first.
func (r *ToursRepo) Stats(ctx context.Context, minRating float64) ([]tours.DifficultyStats, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: withDefault(publicTours, bson.M{"ratings_average": bson.M{"$gte": minRating}})}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$toUpper": "$difficulty"}},
			{Key: "num_tours", Value: bson.M{"$sum": 1}},
			{Key: "num_ratings", Value: bson.M{"$sum": "$ratings_quantity"}},
			{Key: "avg_rating", Value: bson.M{"$avg": "$ratings_average"}},
			{Key: "avg_price", Value: bson.M{"$avg": "$price"}},
			{Key: "min_price", Value: bson.M{"$min": "$price"}},
			{Key: "max_price", Value: bson.M{"$max": "$price"}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avg_price", Value: 1}}}},
	}

	cur, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	stats := []tours.DifficultyStats{}
	if err := cur.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *ToursRepo) findOne(ctx context.Context, filter bson.M) (*tours.Tour, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var tour tours.Tour
	if err := r.collection.FindOne(ctx, withDefault(publicTours, filter)).Decode(&tour); err != nil {
		return nil, translateTourErr(err)
	}
	return &tour, nil
}

func tourPatchSet(p tours.Patch) bson.M {
	set := bson.M{}
	put := func(key string, ok bool, v any) {
		if ok {
			set[key] = v
		}
	}
	put("name", p.Name != nil, deref(p.Name))
	put("slug", p.Slug != nil, deref(p.Slug))
	put("duration", p.Duration != nil, deref(p.Duration))
	put("max_group_size", p.MaxGroupSize != nil, deref(p.MaxGroupSize))
	put("difficulty", p.Difficulty != nil, deref(p.Difficulty))
	put("price", p.Price != nil, deref(p.Price))
	put("price_discount", p.PriceDiscount != nil, deref(p.PriceDiscount))
	put("summary", p.Summary != nil, deref(p.Summary))
	put("description", p.Description != nil, deref(p.Description))
	put("image_cover", p.ImageCover != nil, deref(p.ImageCover))
	put("images", p.Images != nil, deref(p.Images))
	put("start_dates", p.StartDates != nil, deref(p.StartDates))
	put("secret_tour", p.SecretTour != nil, deref(p.SecretTour))
	put("start_location", p.StartLocation != nil, p.StartLocation)
	put("locations", p.Locations != nil, deref(p.Locations))
	put("guides", p.GuideIDs != nil, deref(p.GuideIDs))
	return set
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
