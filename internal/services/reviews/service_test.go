package reviews

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"tourbook/internal/services/auth"
	"tourbook/internal/utils/paging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var silentLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, review *Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id bson.ObjectID) (*Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Review), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, tourID bson.ObjectID, skip, limit int64) ([]*Review, error) {
	args := m.Called(ctx, tourID, skip, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Review), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, id bson.ObjectID, patch Patch) (*Review, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Review), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) RatingStats(ctx context.Context, tourID bson.ObjectID) (RatingStats, error) {
	args := m.Called(ctx, tourID)
	return args.Get(0).(RatingStats), args.Error(1)
}

// MockTours is a mock implementation of TourRatings
type MockTours struct {
	mock.Mock
}

func (m *MockTours) Exists(ctx context.Context, id bson.ObjectID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTours) SetRatings(ctx context.Context, id bson.ObjectID, average float64, quantity int) error {
	args := m.Called(ctx, id, average, quantity)
	return args.Error(0)
}

// MockAuthors is a mock implementation of Authors
type MockAuthors struct {
	mock.Mock
}

func (m *MockAuthors) FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]*auth.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auth.User), args.Error(1)
}

type fixture struct {
	repo    *MockRepository
	tours   *MockTours
	authors *MockAuthors
	hub     *Hub
	svc     *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:    new(MockRepository),
		tours:   new(MockTours),
		authors: new(MockAuthors),
		hub:     NewHub(8),
	}
	f.svc = NewService(f.repo, f.tours, f.authors, f.hub, silentLogger)
	return f
}

func ptr[T any](v T) *T { return &v }

func TestService_Create(t *testing.T) {
	author := &auth.User{ID: bson.NewObjectID(), Name: "Laura", Role: auth.RoleUser}
	tourID := bson.NewObjectID()

	t.Run("nested route", func(t *testing.T) {
		f := newFixture()
		sub, cancel := f.hub.Subscribe(newConnID(), tourID)
		defer cancel()

		f.tours.On("Exists", mock.Anything, tourID).Return(true, nil)
		f.repo.On("Create", mock.Anything, mock.MatchedBy(func(r *Review) bool {
			return r.TourID == tourID && r.UserID == author.ID && r.Rating == 4 && r.Review == "Great tour"
		})).Return(nil)
		f.repo.On("RatingStats", mock.Anything, tourID).Return(RatingStats{Average: 4.666, Quantity: 3}, nil)
		f.tours.On("SetRatings", mock.Anything, tourID, 4.7, 3).Return(nil)

		review, err := f.svc.Create(context.Background(), author, tourID, CreateReviewRequest{
			Review: "<em>Great</em> tour",
			Rating: 4,
		})
		require.NoError(t, err)
		assert.Equal(t, "Laura", review.Author.Name)

		ev := <-sub.Ch
		assert.Equal(t, EventCreated, ev.Type)
		assert.Equal(t, review.ID, ev.Review.ID)

		f.repo.AssertExpectations(t)
		f.tours.AssertExpectations(t)
	})

	t.Run("tour from body", func(t *testing.T) {
		f := newFixture()
		f.tours.On("Exists", mock.Anything, tourID).Return(true, nil)
		f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.repo.On("RatingStats", mock.Anything, tourID).Return(RatingStats{Average: 5, Quantity: 1}, nil)
		f.tours.On("SetRatings", mock.Anything, tourID, 5.0, 1).Return(nil)

		review, err := f.svc.Create(context.Background(), author, bson.ObjectID{}, CreateReviewRequest{
			Review: "Nice",
			Rating: 5,
			Tour:   tourID.Hex(),
		})
		require.NoError(t, err)
		assert.Equal(t, tourID, review.TourID)
	})

	t.Run("missing tour", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Create(context.Background(), author, bson.ObjectID{}, CreateReviewRequest{Review: "x", Rating: 3})
		assert.ErrorIs(t, err, ErrMissingTour)
	})

	t.Run("unknown or secret tour", func(t *testing.T) {
		f := newFixture()
		f.tours.On("Exists", mock.Anything, tourID).Return(false, nil)
		_, err := f.svc.Create(context.Background(), author, tourID, CreateReviewRequest{Review: "x", Rating: 3})
		assert.ErrorIs(t, err, ErrTourNotFound)
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("second review of the same tour", func(t *testing.T) {
		f := newFixture()
		f.tours.On("Exists", mock.Anything, tourID).Return(true, nil)
		f.repo.On("Create", mock.Anything, mock.Anything).Return(ErrAlreadyReviewed)
		_, err := f.svc.Create(context.Background(), author, tourID, CreateReviewRequest{Review: "x", Rating: 3})
		assert.ErrorIs(t, err, ErrAlreadyReviewed)
		f.tours.AssertNotCalled(t, "SetRatings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_UpdateOwnership(t *testing.T) {
	owner := &auth.User{ID: bson.NewObjectID(), Role: auth.RoleUser}
	stranger := &auth.User{ID: bson.NewObjectID(), Role: auth.RoleUser}
	admin := &auth.User{ID: bson.NewObjectID(), Role: auth.RoleAdmin}
	tourID := bson.NewObjectID()
	id := bson.NewObjectID()
	existing := &Review{ID: id, TourID: tourID, UserID: owner.ID, Rating: 3}

	t.Run("stranger is rejected", func(t *testing.T) {
		f := newFixture()
		f.repo.On("FindByID", mock.Anything, id).Return(existing, nil)

		_, err := f.svc.Update(context.Background(), stranger, id, UpdateReviewRequest{Rating: ptr(1)})
		assert.ErrorIs(t, err, ErrNotOwner)
		f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	for name, actor := range map[string]*auth.User{"owner": owner, "admin": admin} {
		t.Run(name+" may update", func(t *testing.T) {
			f := newFixture()
			updated := &Review{ID: id, TourID: tourID, UserID: owner.ID, Rating: 5}
			f.repo.On("FindByID", mock.Anything, id).Return(existing, nil)
			f.repo.On("Update", mock.Anything, id, Patch{Rating: ptr(5)}).Return(updated, nil)
			f.authors.On("FindByIDs", mock.Anything, []bson.ObjectID{owner.ID}).Return([]*auth.User{owner}, nil)
			f.repo.On("RatingStats", mock.Anything, tourID).Return(RatingStats{Average: 5, Quantity: 1}, nil)
			f.tours.On("SetRatings", mock.Anything, tourID, 5.0, 1).Return(nil)

			got, err := f.svc.Update(context.Background(), actor, id, UpdateReviewRequest{Rating: ptr(5)})
			require.NoError(t, err)
			assert.Equal(t, 5, got.Rating)
			f.tours.AssertExpectations(t)
		})
	}

	t.Run("empty patch", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Update(context.Background(), owner, id, UpdateReviewRequest{})
		assert.ErrorIs(t, err, ErrEmptyUpdate)
	})
}

func TestService_DeleteResetsRatings(t *testing.T) {
	owner := &auth.User{ID: bson.NewObjectID(), Role: auth.RoleUser}
	tourID := bson.NewObjectID()
	id := bson.NewObjectID()

	f := newFixture()
	f.repo.On("FindByID", mock.Anything, id).Return(&Review{ID: id, TourID: tourID, UserID: owner.ID}, nil)
	f.repo.On("Delete", mock.Anything, id).Return(nil)
	f.repo.On("RatingStats", mock.Anything, tourID).Return(RatingStats{}, nil)
	f.tours.On("SetRatings", mock.Anything, tourID, DefaultRatingsAverage, 0).Return(nil)

	require.NoError(t, f.svc.Delete(context.Background(), owner, id))
	f.tours.AssertExpectations(t)
}

func TestService_RatingFailureDoesNotFailWrite(t *testing.T) {
	owner := &auth.User{ID: bson.NewObjectID(), Role: auth.RoleUser}
	tourID := bson.NewObjectID()
	id := bson.NewObjectID()

	f := newFixture()
	f.repo.On("FindByID", mock.Anything, id).Return(&Review{ID: id, TourID: tourID, UserID: owner.ID}, nil)
	f.repo.On("Delete", mock.Anything, id).Return(nil)
	f.repo.On("RatingStats", mock.Anything, tourID).Return(RatingStats{}, errors.New("aggregate failed"))

	assert.NoError(t, f.svc.Delete(context.Background(), owner, id))
}

func TestService_ListPopulatesAuthors(t *testing.T) {
	u1 := &auth.User{ID: bson.NewObjectID(), Name: "Ann"}
	u2 := &auth.User{ID: bson.NewObjectID(), Name: "Bob"}
	tourID := bson.NewObjectID()
	list := []*Review{
		{ID: bson.NewObjectID(), UserID: u1.ID, TourID: tourID},
		{ID: bson.NewObjectID(), UserID: u2.ID, TourID: tourID},
		{ID: bson.NewObjectID(), UserID: u1.ID, TourID: tourID},
	}

	f := newFixture()
	f.repo.On("List", mock.Anything, tourID, int64(0), int64(paging.DefaultLimit)).Return(list, nil)
	f.authors.On("FindByIDs", mock.Anything, []bson.ObjectID{u1.ID, u2.ID}).Return([]*auth.User{u1, u2}, nil)

	got, err := f.svc.List(context.Background(), tourID, paging.Params{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Ann", got[0].Author.Name)
	assert.Equal(t, "Bob", got[1].Author.Name)
	assert.Equal(t, "Ann", got[2].Author.Name)
}

func TestRoundRating(t *testing.T) {
	assert.Equal(t, 4.7, RoundRating(4.666))
	assert.Equal(t, 4.0, RoundRating(4.04))
	assert.Equal(t, 3.5, RoundRating(3.45))
}
