package reviews

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Review is a user's rating of a tour. A user reviews a tour at most once.
type Review struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id" example:"683cdb8aa96ad71e8e075bd1"`
	Review    string        `bson:"review" json:"review" example:"Amazing hike, great guide!"`
	Rating    int           `bson:"rating" json:"rating" example:"5"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt" example:"2025-06-01T23:00:26.005703677Z"`
	TourID    bson.ObjectID `bson:"tour" json:"tour" example:"683cdb8aa96ad71e8e075bd2"`
	UserID    bson.ObjectID `bson:"user" json:"-"`
	Author    *Author       `bson:"-" json:"user,omitempty"`
}

// Author is the public projection of the reviewing user.
type Author struct {
	ID    bson.ObjectID `json:"id" example:"683cdb8aa96ad71e8e075bd3"`
	Name  string        `json:"name" example:"Laura Wilson"`
	Photo string        `json:"photo,omitempty" example:"user-1.jpg"`
}

// Patch carries the review fields that may change. Nil fields stay.
type Patch struct {
	Review *string
	Rating *int
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Review == nil && p.Rating == nil
}

// RatingStats summarizes the reviews of one tour.
type RatingStats struct {
	Average  float64 `bson:"avg_rating"`
	Quantity int     `bson:"n_rating"`
}

// EventType is the kind of change pushed to live subscribers.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// ReviewEvent is broadcast to the subscribers of the review's tour.
type ReviewEvent struct {
	Type   EventType `json:"type"`
	Review *Review   `json:"review"`
}

// CreateReviewRequest is the body of a new review. Tour is only read when
// the route does not carry the tour id.
type CreateReviewRequest struct {
	Review string `json:"review" validate:"required,min=1,max=2000" example:"Amazing hike, great guide!"`
	Rating int    `json:"rating" validate:"required,min=1,max=5" example:"5"`
	Tour   string `json:"tour,omitempty" validate:"omitempty,len=24,hexadecimal" example:"683cdb8aa96ad71e8e075bd2"`
}

// UpdateReviewRequest changes text and/or rating of a review.
type UpdateReviewRequest struct {
	Review *string `json:"review,omitempty" validate:"omitempty,min=1,max=2000" example:"Still amazing"`
	Rating *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5" example:"4"`
}

// ListResponse is the payload of list endpoints.
type ListResponse struct {
	Reviews []*Review `json:"reviews"`
}
