package tours

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tourbook/internal/services/auth"
	"tourbook/internal/services/reviews"
	"tourbook/internal/utils/paging"
	"tourbook/internal/utils/sanitize"
	"tourbook/internal/utils/slug"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrTourNotFound     = errors.New("no tour found with that ID")
	ErrDuplicateName    = errors.New("a tour with this name already exists")
	ErrDiscountTooHigh  = errors.New("discount price must be below the regular price")
	ErrInvalidGuide     = errors.New("guides must be valid user ids")
	ErrInvalidSortField = errors.New("unsupported sort field")
	ErrEmptyUpdate      = errors.New("no fields to update")
)

// Repository persists tours. Every read excludes secret tours.
type Repository interface {
	Create(ctx context.Context, tour *Tour) error
	FindByID(ctx context.Context, id bson.ObjectID) (*Tour, error)
	FindBySlug(ctx context.Context, slug string) (*Tour, error)
	List(ctx context.Context, q ListQuery) ([]*Tour, error)
	Update(ctx context.Context, id bson.ObjectID, patch Patch) (*Tour, error)
	Delete(ctx context.Context, id bson.ObjectID) error
	Stats(ctx context.Context, minRating float64) ([]DifficultyStats, error)
}

// GuideFinder resolves guide ids to active users.
type GuideFinder interface {
	FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]*auth.User, error)
}

// ReviewLister loads the reviews shown on a tour.
type ReviewLister interface {
	ListForTour(ctx context.Context, tourID bson.ObjectID) ([]*reviews.Review, error)
}

// sortFields maps accepted sort keys to stored field names.
var sortFields = map[string]string{
	"price":          "price",
	"ratingsAverage": "ratings_average",
	"duration":       "duration",
	"name":           "name",
	"createdAt":      "created_at",
}

// StatsMinRating is the rating threshold for tour statistics.
const StatsMinRating = 4.5

// ListRequest is the query string of the tour list.
type ListRequest struct {
	Page       int    `query:"page" validate:"omitempty,min=1" example:"1"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=100" example:"20"`
	Sort       string `query:"sort" validate:"omitempty,max=32" example:"-price"`
	Difficulty string `query:"difficulty" validate:"omitempty,oneof=easy medium difficult" example:"easy"`
}

// CreateTourRequest is the body of a new tour.
type CreateTourRequest struct {
	Name          string      `json:"name" validate:"required,min=10,max=40" example:"The Forest Hiker"`
	Duration      int         `json:"duration" validate:"required,gt=0" example:"5"`
	MaxGroupSize  int         `json:"maxGroupSize" validate:"required,gt=0" example:"25"`
	Difficulty    Difficulty  `json:"difficulty" validate:"required,oneof=easy medium difficult" example:"easy"`
	Price         float64     `json:"price" validate:"required,gt=0" example:"397"`
	PriceDiscount float64     `json:"priceDiscount" validate:"omitempty,gte=0" example:"0"`
	Summary       string      `json:"summary" validate:"required,max=500" example:"Breathtaking hike through the Canadian Banff National Park"`
	Description   string      `json:"description" validate:"omitempty,max=5000"`
	ImageCover    string      `json:"imageCover" validate:"required,max=255" example:"tour-1-cover.jpg"`
	Images        []string    `json:"images" validate:"omitempty,dive,max=255"`
	StartDates    []time.Time `json:"startDates"`
	SecretTour    bool        `json:"secretTour"`
	StartLocation *Location   `json:"startLocation"`
	Locations     []Location  `json:"locations"`
	Guides        []string    `json:"guides" validate:"omitempty,dive,len=24"`
}

// UpdateTourRequest changes any subset of tour fields.
type UpdateTourRequest struct {
	Name          *string      `json:"name,omitempty" validate:"omitempty,min=10,max=40" example:"The Forest Hiker"`
	Duration      *int         `json:"duration,omitempty" validate:"omitempty,gt=0" example:"7"`
	MaxGroupSize  *int         `json:"maxGroupSize,omitempty" validate:"omitempty,gt=0" example:"20"`
	Difficulty    *Difficulty  `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium difficult" example:"medium"`
	Price         *float64     `json:"price,omitempty" validate:"omitempty,gt=0" example:"497"`
	PriceDiscount *float64     `json:"priceDiscount,omitempty" validate:"omitempty,gte=0" example:"50"`
	Summary       *string      `json:"summary,omitempty" validate:"omitempty,max=500"`
	Description   *string      `json:"description,omitempty" validate:"omitempty,max=5000"`
	ImageCover    *string      `json:"imageCover,omitempty" validate:"omitempty,max=255"`
	Images        *[]string    `json:"images,omitempty"`
	StartDates    *[]time.Time `json:"startDates,omitempty"`
	SecretTour    *bool        `json:"secretTour,omitempty"`
	StartLocation *Location    `json:"startLocation,omitempty"`
	Locations     *[]Location  `json:"locations,omitempty"`
	Guides        *[]string    `json:"guides,omitempty"`
}

// Service handles tour business logic
type Service struct {
	repo    Repository
	guides  GuideFinder
	reviews ReviewLister
	log     *slog.Logger
	now     func() time.Time
}

// NewService creates a new tours service
func NewService(repo Repository, guides GuideFinder, reviews ReviewLister, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		guides:  guides,
		reviews: reviews,
		log:     log,
		now:     time.Now,
	}
}

// List returns a page of public tours, sorted by one whitelisted field.
// A leading "-" on the sort key sorts descending; the default is newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]*Tour, error) {
	p := paging.Params{Page: req.Page, Limit: req.Limit}.Normalize()
	q := ListQuery{
		Difficulty: Difficulty(req.Difficulty),
		SortField:  "created_at",
		SortDesc:   true,
		Skip:       p.Skip(),
		Limit:      int64(p.Limit),
	}

	if key := strings.TrimSpace(req.Sort); key != "" {
		desc := strings.HasPrefix(key, "-")
		field, ok := sortFields[strings.TrimPrefix(key, "-")]
		if !ok {
			return nil, ErrInvalidSortField
		}
		q.SortField, q.SortDesc = field, desc
	}

	return s.repo.List(ctx, q)
}

// Get returns a public tour with guides and reviews.
func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*Details, error) {
	tour, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, tour)
}

// GetBySlug returns a public tour with guides and reviews.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Details, error) {
	tour, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, tour)
}

// Create stores a new tour. The slug is derived from the name and ratings
// start at their defaults.
func (s *Service) Create(ctx context.Context, req CreateTourRequest) (*Tour, error) {
	if req.PriceDiscount > 0 && req.PriceDiscount >= req.Price {
		return nil, ErrDiscountTooHigh
	}

	guideIDs, err := parseGuides(req.Guides)
	if err != nil {
		return nil, err
	}

	name := sanitize.Clean(req.Name)
	tour := &Tour{
		ID:             bson.NewObjectID(),
		Name:           name,
		Slug:           slug.Make(name),
		Duration:       req.Duration,
		MaxGroupSize:   req.MaxGroupSize,
		Difficulty:     req.Difficulty,
		RatingsAverage: reviews.DefaultRatingsAverage,
		Price:          req.Price,
		PriceDiscount:  req.PriceDiscount,
		Summary:        sanitize.Clean(req.Summary),
		Description:    sanitize.Clean(req.Description),
		ImageCover:     req.ImageCover,
		Images:         req.Images,
		StartDates:     req.StartDates,
		SecretTour:     req.SecretTour,
		StartLocation:  pointOrNil(req.StartLocation),
		Locations:      points(req.Locations),
		GuideIDs:       guideIDs,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.repo.Create(ctx, tour); err != nil {
		return nil, err
	}
	s.log.Info("tour created", "tourID", tour.ID.Hex(), "slug", tour.Slug)
	return tour, nil
}

// Update applies a partial change. Renaming regenerates the slug.
func (s *Service) Update(ctx context.Context, id bson.ObjectID, req UpdateTourRequest) (*Tour, error) {
	patch := Patch{
		Duration:      req.Duration,
		MaxGroupSize:  req.MaxGroupSize,
		Difficulty:    req.Difficulty,
		Price:         req.Price,
		PriceDiscount: req.PriceDiscount,
		Summary:       sanitize.CleanPtr(req.Summary),
		Description:   sanitize.CleanPtr(req.Description),
		ImageCover:    req.ImageCover,
		Images:        req.Images,
		StartDates:    req.StartDates,
		SecretTour:    req.SecretTour,
		StartLocation: pointOrNil(req.StartLocation),
	}

	if req.Name != nil {
		name := sanitize.Clean(*req.Name)
		sl := slug.Make(name)
		patch.Name, patch.Slug = &name, &sl
	}
	if req.Locations != nil {
		locs := points(*req.Locations)
		patch.Locations = &locs
	}
	if req.Guides != nil {
		ids, err := parseGuides(*req.Guides)
		if err != nil {
			return nil, err
		}
		patch.GuideIDs = &ids
	}

	if patch.Empty() {
		return nil, ErrEmptyUpdate
	}

	if patch.Price != nil || patch.PriceDiscount != nil {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		price, discount := current.Price, current.PriceDiscount
		if patch.Price != nil {
			price = *patch.Price
		}
		if patch.PriceDiscount != nil {
			discount = *patch.PriceDiscount
		}
		if discount > 0 && discount >= price {
			return nil, ErrDiscountTooHigh
		}
	}

	return s.repo.Update(ctx, id, patch)
}

// Delete removes a tour.
func (s *Service) Delete(ctx context.Context, id bson.ObjectID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("tour deleted", "tourID", id.Hex())
	return nil
}

// Stats groups well rated tours by difficulty.
func (s *Service) Stats(ctx context.Context) ([]DifficultyStats, error) {
	stats, err := s.repo.Stats(ctx, StatsMinRating)
	if err != nil {
		return nil, err
	}
	for i := range stats {
		stats[i].AvgRating = reviews.RoundRating(stats[i].AvgRating)
	}
	return stats, nil
}

func (s *Service) details(ctx context.Context, tour *Tour) (*Details, error) {
	d := &Details{
		Tour:          tour,
		DurationWeeks: tour.DurationWeeks(),
		Guides:        []Guide{},
		Reviews:       []*reviews.Review{},
	}

	if len(tour.GuideIDs) > 0 {
		users, err := s.guides.FindByIDs(ctx, tour.GuideIDs)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			d.Guides = append(d.Guides, Guide{
				ID:    u.ID,
				Name:  u.Name,
				Email: u.Email,
				Photo: u.Photo,
				Role:  string(u.Role),
			})
		}
	}

	list, err := s.reviews.ListForTour(ctx, tour.ID)
	if err != nil {
		return nil, err
	}
	if list != nil {
		d.Reviews = list
	}
	return d, nil
}

func parseGuides(raw []string) ([]bson.ObjectID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]bson.ObjectID, 0, len(raw))
	for _, h := range raw {
		id, err := bson.ObjectIDFromHex(h)
		if err != nil {
			return nil, ErrInvalidGuide
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func pointOrNil(l *Location) *Location {
	if l == nil {
		return nil
	}
	p := *l
	p.Type = "Point"
	return &p
}

func points(ls []Location) []Location {
	for i := range ls {
		ls[i].Type = "Point"
	}
	return ls
}
