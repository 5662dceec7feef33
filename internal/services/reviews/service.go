package reviews

import (
	"context"
	"log/slog"
	"math"
	"time"

	"tourbook/internal/services/auth"
	"tourbook/internal/utils/paging"
	"tourbook/internal/utils/sanitize"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	// DefaultRatingsAverage is shown for tours nobody has reviewed yet.
	DefaultRatingsAverage = 4.5
)

// Service handles review business logic
type Service struct {
	repo    Repository
	tours   TourRatings
	authors Authors
	events  Publisher
	log     *slog.Logger
	now     func() time.Time
}

// NewService creates a new reviews service
func NewService(repo Repository, tours TourRatings, authors Authors, events Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		tours:   tours,
		authors: authors,
		events:  events,
		log:     log,
		now:     time.Now,
	}
}

// List returns a page of reviews, optionally restricted to one tour.
func (s *Service) List(ctx context.Context, tourID bson.ObjectID, p paging.Params) ([]*Review, error) {
	p = p.Normalize()
	list, err := s.repo.List(ctx, tourID, p.Skip(), int64(p.Limit))
	if err != nil {
		return nil, err
	}
	return list, s.populateAuthors(ctx, list)
}

// ListForTour returns every review of a tour with authors attached.
func (s *Service) ListForTour(ctx context.Context, tourID bson.ObjectID) ([]*Review, error) {
	list, err := s.repo.List(ctx, tourID, 0, 0)
	if err != nil {
		return nil, err
	}
	return list, s.populateAuthors(ctx, list)
}

// Get returns a single review.
func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*Review, error) {
	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return review, s.populateAuthors(ctx, []*Review{review})
}

// Create stores a review by author for tourID. When tourID is zero the
// request body must name the tour.
func (s *Service) Create(ctx context.Context, author *auth.User, tourID bson.ObjectID, req CreateReviewRequest) (*Review, error) {
	if tourID.IsZero() {
		if req.Tour == "" {
			return nil, ErrMissingTour
		}
		id, err := bson.ObjectIDFromHex(req.Tour)
		if err != nil {
			return nil, ErrTourNotFound
		}
		tourID = id
	}

	ok, err := s.tours.Exists(ctx, tourID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTourNotFound
	}

	review := &Review{
		ID:        bson.NewObjectID(),
		Review:    sanitize.Clean(req.Review),
		Rating:    req.Rating,
		CreatedAt: s.now().UTC(),
		TourID:    tourID,
		UserID:    author.ID,
		Author:    authorOf(author),
	}

	if err := s.repo.Create(ctx, review); err != nil {
		return nil, err
	}

	s.afterChange(ctx, EventCreated, review)
	return review, nil
}

// Update changes a review. Only its author or an admin may do so.
func (s *Service) Update(ctx context.Context, actor *auth.User, id bson.ObjectID, req UpdateReviewRequest) (*Review, error) {
	patch := Patch{Review: sanitize.CleanPtr(req.Review), Rating: req.Rating}
	if patch.Empty() {
		return nil, ErrEmptyUpdate
	}

	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}

	review, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if err := s.populateAuthors(ctx, []*Review{review}); err != nil {
		s.log.Warn("failed to populate review author", "reviewID", id.Hex(), "error", err)
	}

	s.afterChange(ctx, EventUpdated, review)
	return review, nil
}

// Delete removes a review. Only its author or an admin may do so.
func (s *Service) Delete(ctx context.Context, actor *auth.User, id bson.ObjectID) error {
	review, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.afterChange(ctx, EventDeleted, review)
	return nil
}

// RecalculateRatings recomputes and stores the ratings of tourID.
func (s *Service) RecalculateRatings(ctx context.Context, tourID bson.ObjectID) error {
	stats, err := s.repo.RatingStats(ctx, tourID)
	if err != nil {
		return err
	}

	avg, qty := DefaultRatingsAverage, 0
	if stats.Quantity > 0 {
		avg, qty = RoundRating(stats.Average), stats.Quantity
	}
	return s.tours.SetRatings(ctx, tourID, avg, qty)
}

// RoundRating rounds to one decimal place.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

func (s *Service) owned(ctx context.Context, actor *auth.User, id bson.ObjectID) (*Review, error) {
	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleAdmin && review.UserID != actor.ID {
		return nil, ErrNotOwner
	}
	return review, nil
}

// afterChange keeps tour ratings in step and notifies subscribers. Failures
// are logged; the review write itself already succeeded.
func (s *Service) afterChange(ctx context.Context, typ EventType, review *Review) {
	if err := s.RecalculateRatings(ctx, review.TourID); err != nil {
		s.log.Error("failed to recalculate tour ratings", "tourID", review.TourID.Hex(), "error", err)
	}
	if s.events != nil {
		s.events.Broadcast(ctx, review.TourID, ReviewEvent{Type: typ, Review: review})
	}
}

func (s *Service) populateAuthors(ctx context.Context, list []*Review) error {
	if len(list) == 0 {
		return nil
	}

	seen := make(map[bson.ObjectID]struct{}, len(list))
	ids := make([]bson.ObjectID, 0, len(list))
	for _, r := range list {
		if _, ok := seen[r.UserID]; !ok {
			seen[r.UserID] = struct{}{}
			ids = append(ids, r.UserID)
		}
	}

	users, err := s.authors.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	byID := make(map[bson.ObjectID]*auth.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, r := range list {
		if u, ok := byID[r.UserID]; ok {
			r.Author = authorOf(u)
		}
	}
	return nil
}

func authorOf(u *auth.User) *Author {
	return &Author{ID: u.ID, Name: u.Name, Photo: u.Photo}
}
