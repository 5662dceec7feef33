package reviews

import (
	"context"

	"tourbook/internal/services/auth"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Repository persists reviews.
type Repository interface {
	Create(ctx context.Context, review *Review) error
	FindByID(ctx context.Context, id bson.ObjectID) (*Review, error)
	// List returns reviews newest first; a zero tourID lists every tour.
	List(ctx context.Context, tourID bson.ObjectID, skip, limit int64) ([]*Review, error)
	Update(ctx context.Context, id bson.ObjectID, patch Patch) (*Review, error)
	Delete(ctx context.Context, id bson.ObjectID) error
	// RatingStats aggregates the ratings of tourID; Quantity is 0 when none.
	RatingStats(ctx context.Context, tourID bson.ObjectID) (RatingStats, error)
}

// TourRatings is the tour side of rating maintenance.
type TourRatings interface {
	Exists(ctx context.Context, id bson.ObjectID) (bool, error)
	SetRatings(ctx context.Context, id bson.ObjectID, average float64, quantity int) error
}

// Authors resolves the users shown next to reviews.
type Authors interface {
	FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]*auth.User, error)
}

// Publisher fans review events out to live subscribers.
type Publisher interface {
	Broadcast(ctx context.Context, tourID bson.ObjectID, ev ReviewEvent)
}
