package tours

import (
	"time"

	"tourbook/internal/services/reviews"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Difficulty grades how demanding a tour is.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

// Location is a GeoJSON point with a description. Day is only set on
// itinerary stops.
type Location struct {
	Type        string    `bson:"type" json:"type" example:"Point"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty" example:"Miami, USA"`
	Description string    `bson:"description,omitempty" json:"description,omitempty" example:"Miami"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty" example:"1"`
}

// Tour is a bookable tour.
type Tour struct {
	ID              bson.ObjectID   `bson:"_id,omitempty" json:"id" example:"683cdb8aa96ad71e8e075bd2"`
	Name            string          `bson:"name" json:"name" example:"The Forest Hiker"`
	Slug            string          `bson:"slug" json:"slug" example:"the-forest-hiker"`
	Duration        int             `bson:"duration" json:"duration" example:"5"`
	MaxGroupSize    int             `bson:"max_group_size" json:"maxGroupSize" example:"25"`
	Difficulty      Difficulty      `bson:"difficulty" json:"difficulty" example:"easy"`
	RatingsAverage  float64         `bson:"ratings_average" json:"ratingsAverage" example:"4.7"`
	RatingsQuantity int             `bson:"ratings_quantity" json:"ratingsQuantity" example:"37"`
	Price           float64         `bson:"price" json:"price" example:"397"`
	PriceDiscount   float64         `bson:"price_discount,omitempty" json:"priceDiscount,omitempty" example:"0"`
	Summary         string          `bson:"summary" json:"summary" example:"Breathtaking hike through the Canadian Banff National Park"`
	Description     string          `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string          `bson:"image_cover" json:"imageCover" example:"tour-1-cover.jpg"`
	Images          []string        `bson:"images,omitempty" json:"images,omitempty"`
	StartDates      []time.Time     `bson:"start_dates,omitempty" json:"startDates,omitempty"`
	SecretTour      bool            `bson:"secret_tour" json:"secretTour"`
	StartLocation   *Location       `bson:"start_location,omitempty" json:"startLocation,omitempty"`
	Locations       []Location      `bson:"locations,omitempty" json:"locations,omitempty"`
	GuideIDs        []bson.ObjectID `bson:"guides,omitempty" json:"-"`
	CreatedAt       time.Time       `bson:"created_at" json:"-"`
}

// DurationWeeks is the duration expressed in weeks.
func (t *Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

// Guide is the public projection of a guiding user.
type Guide struct {
	ID    bson.ObjectID `json:"id" example:"683cdb8aa96ad71e8e075bd3"`
	Name  string        `json:"name" example:"Steven Miller"`
	Email string        `json:"email" example:"steven@example.com"`
	Photo string        `json:"photo,omitempty" example:"user-3.jpg"`
	Role  string        `json:"role" example:"lead-guide"`
}

// Details is a tour with its guides and reviews resolved.
type Details struct {
	*Tour
	DurationWeeks float64           `json:"durationWeeks" example:"0.71"`
	Guides        []Guide           `json:"guides"`
	Reviews       []*reviews.Review `json:"reviews"`
}

// DifficultyStats summarizes the well rated tours of one difficulty.
type DifficultyStats struct {
	Difficulty string  `bson:"_id" json:"difficulty" example:"EASY"`
	NumTours   int     `bson:"num_tours" json:"numTours" example:"4"`
	NumRatings int     `bson:"num_ratings" json:"numRatings" example:"110"`
	AvgRating  float64 `bson:"avg_rating" json:"avgRating" example:"4.7"`
	AvgPrice   float64 `bson:"avg_price" json:"avgPrice" example:"1272"`
	MinPrice   float64 `bson:"min_price" json:"minPrice" example:"397"`
	MaxPrice   float64 `bson:"max_price" json:"maxPrice" example:"1997"`
}

// Patch carries the tour fields that change. Nil fields stay.
type Patch struct {
	Name          *string
	Slug          *string
	Duration      *int
	MaxGroupSize  *int
	Difficulty    *Difficulty
	Price         *float64
	PriceDiscount *float64
	Summary       *string
	Description   *string
	ImageCover    *string
	Images        *[]string
	StartDates    *[]time.Time
	SecretTour    *bool
	StartLocation *Location
	Locations     *[]Location
	GuideIDs      *[]bson.ObjectID
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// ListQuery is a validated list request handed to the repository.
type ListQuery struct {
	Difficulty Difficulty
	SortField  string
	SortDesc   bool
	Skip       int64
	Limit      int64
}
