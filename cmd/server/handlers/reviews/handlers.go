package reviews

import (
	"context"
	"errors"

	"tourbook/cmd/server/handlers/handlerutil"
	"tourbook/cmd/server/handlers/httperr"
	"tourbook/internal/services/auth"
	"tourbook/internal/services/reviews"
	"tourbook/internal/utils/paging"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// TourParam is the route parameter of the nested review routes.
const TourParam = "tourId"

// Service defines the interface for the reviews service
type Service interface {
	List(ctx context.Context, tourID bson.ObjectID, p paging.Params) ([]*reviews.Review, error)
	Get(ctx context.Context, id bson.ObjectID) (*reviews.Review, error)
	Create(ctx context.Context, author *auth.User, tourID bson.ObjectID, req reviews.CreateReviewRequest) (*reviews.Review, error)
	Update(ctx context.Context, actor *auth.User, id bson.ObjectID, req reviews.UpdateReviewRequest) (*reviews.Review, error)
	Delete(ctx context.Context, actor *auth.User, id bson.ObjectID) error
}

// Handlers contains the reviews HTTP handlers
type Handlers struct {
	service   Service
	validator *validator.Validate
}

// NewHandlers creates new reviews handlers
func NewHandlers(service Service, validator *validator.Validate) *Handlers {
	return &Handlers{service: service, validator: validator}
}

// List returns reviews, restricted to one tour on the nested route
// @Summary List reviews
// @Tags reviews
// @Produce json
// @Security Bearer
// @Param tourId path string false "Tour ID (nested route only)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} handlerutil.Envelope
// @Router /reviews [get]
// @Router /tours/{tourId}/reviews [get]
func (h *Handlers) List(c *fiber.Ctx) error {
	tourID, err := tourFromRoute(c, "ListReviews")
	if err != nil {
		return err
	}

	var p paging.Params
	if err := handlerutil.ParseAndValidateQuery(c, &p, h.validator, "ListReviews"); err != nil {
		return err
	}

	list, err := h.service.List(c.UserContext(), tourID, p)
	if err != nil {
		return serviceError(c, err, "ListReviews")
	}
	return handlerutil.List(c, "reviews", list)
}

// Get returns one review
// @Summary Get review
// @Tags reviews
// @Produce json
// @Security Bearer
// @Param id path string true "Review ID"
// @Success 200 {object} handlerutil.Envelope
// @Failure 404 {object} httperr.Body
// @Router /reviews/{id} [get]
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := handlerutil.ParamID(c, "id", "GetReview")
	if err != nil {
		return err
	}

	review, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, "GetReview")
	}
	return handlerutil.Success(c, fiber.StatusOK, "review", review)
}

// Create stores a review by the current user
// @Summary Create review
// @Tags reviews
// @Accept json
// @Produce json
// @Security Bearer
// @Param tourId path string false "Tour ID (nested route only)"
// @Param request body reviews.CreateReviewRequest true "Review"
// @Success 201 {object} handlerutil.Envelope
// @Failure 400 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /reviews [post]
// @Router /tours/{tourId}/reviews [post]
func (h *Handlers) Create(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	tourID, err := tourFromRoute(c, "CreateReview")
	if err != nil {
		return err
	}

	var req reviews.CreateReviewRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "CreateReview"); err != nil {
		return err
	}

	review, err := h.service.Create(c.UserContext(), user, tourID, req)
	if err != nil {
		return serviceError(c, err, "CreateReview")
	}
	return handlerutil.Success(c, fiber.StatusCreated, "review", review)
}

// Update changes a review
// @Summary Update review
// @Tags reviews
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Review ID"
// @Param request body reviews.UpdateReviewRequest true "Fields to change"
// @Success 200 {object} handlerutil.Envelope
// @Failure 403 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /reviews/{id} [patch]
func (h *Handlers) Update(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	id, err := handlerutil.ParamID(c, "id", "UpdateReview")
	if err != nil {
		return err
	}

	var req reviews.UpdateReviewRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "UpdateReview"); err != nil {
		return err
	}

	review, err := h.service.Update(c.UserContext(), user, id, req)
	if err != nil {
		return serviceError(c, err, "UpdateReview")
	}
	return handlerutil.Success(c, fiber.StatusOK, "review", review)
}

// Delete removes a review
// @Summary Delete review
// @Tags reviews
// @Security Bearer
// @Param id path string true "Review ID"
// @Success 204
// @Failure 403 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /reviews/{id} [delete]
func (h *Handlers) Delete(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	id, err := handlerutil.ParamID(c, "id", "DeleteReview")
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.UserContext(), user, id); err != nil {
		return serviceError(c, err, "DeleteReview")
	}
	return handlerutil.NoContent(c)
}

// tourFromRoute returns the tour id of a nested route, or the zero id on
// the top level routes.
func tourFromRoute(c *fiber.Ctx, handlerName string) (bson.ObjectID, error) {
	if c.Params(TourParam) == "" {
		return bson.ObjectID{}, nil
	}
	return handlerutil.ParamID(c, TourParam, handlerName)
}

func serviceError(c *fiber.Ctx, err error, handlerName string) error {
	switch {
	case errors.Is(err, reviews.ErrReviewNotFound):
		return httperr.NotFound("No review found with that ID")
	case errors.Is(err, reviews.ErrTourNotFound):
		return httperr.NotFound("No tour found with that ID")
	case errors.Is(err, reviews.ErrAlreadyReviewed):
		return httperr.BadRequest("You have already reviewed this tour")
	case errors.Is(err, reviews.ErrNotOwner):
		return httperr.Fail(httperr.E{Status: fiber.StatusForbidden, Message: "You can only change your own reviews"})
	case errors.Is(err, reviews.ErrMissingTour):
		return httperr.BadRequest("Review must belong to a tour.")
	case errors.Is(err, reviews.ErrEmptyUpdate):
		return httperr.BadRequest("No fields to update")
	}
	return handlerutil.HandleServiceError(c, err, handlerName)
}
