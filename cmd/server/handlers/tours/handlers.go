package tours

import (
	"context"
	"errors"

	"tourbook/cmd/server/handlers/handlerutil"
	"tourbook/cmd/server/handlers/httperr"
	"tourbook/internal/services/tours"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Service defines the interface for the tours service
type Service interface {
	List(ctx context.Context, req tours.ListRequest) ([]*tours.Tour, error)
	Get(ctx context.Context, id bson.ObjectID) (*tours.Details, error)
	GetBySlug(ctx context.Context, slug string) (*tours.Details, error)
	Create(ctx context.Context, req tours.CreateTourRequest) (*tours.Tour, error)
	Update(ctx context.Context, id bson.ObjectID, req tours.UpdateTourRequest) (*tours.Tour, error)
	Delete(ctx context.Context, id bson.ObjectID) error
	Stats(ctx context.Context) ([]tours.DifficultyStats, error)
}

// Handlers contains the tours HTTP handlers
type Handlers struct {
	service   Service
	validator *validator.Validate
}

// NewHandlers creates new tours handlers
func NewHandlers(service Service, validator *validator.Validate) *Handlers {
	return &Handlers{service: service, validator: validator}
}

// List returns a page of tours
// @Summary List tours
// @Tags tours
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort key, prefix with - for descending" example(-price)
// @Param difficulty query string false "Difficulty filter"
// @Success 200 {object} handlerutil.Envelope
// @Failure 400 {object} httperr.Body
// @Router /tours [get]
func (h *Handlers) List(c *fiber.Ctx) error {
	var req tours.ListRequest
	if err := handlerutil.ParseAndValidateQuery(c, &req, h.validator, "ListTours"); err != nil {
		return err
	}

	list, err := h.service.List(c.UserContext(), req)
	if err != nil {
		return serviceError(c, err, "ListTours")
	}
	return handlerutil.List(c, "tours", list)
}

// Get returns a tour with guides and reviews
// @Summary Get tour
// @Tags tours
// @Produce json
// @Param id path string true "Tour ID"
// @Success 200 {object} handlerutil.Envelope
// @Failure 404 {object} httperr.Body
// @Router /tours/{id} [get]
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := handlerutil.ParamID(c, "id", "GetTour")
	if err != nil {
		return err
	}

	tour, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, "GetTour")
	}
	return handlerutil.Success(c, fiber.StatusOK, "tour", tour)
}

// GetBySlug returns a tour addressed by its slug
// @Summary Get tour by slug
// @Tags tours
// @Produce json
// @Param slug path string true "Tour slug"
// @Success 200 {object} handlerutil.Envelope
// @Failure 404 {object} httperr.Body
// @Router /tours/slug/{slug} [get]
func (h *Handlers) GetBySlug(c *fiber.Ctx) error {
	tour, err := h.service.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return serviceError(c, err, "GetTourBySlug")
	}
	return handlerutil.Success(c, fiber.StatusOK, "tour", tour)
}

// Create adds a tour
// @Summary Create tour
// @Tags tours
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body tours.CreateTourRequest true "Tour"
// @Success 201 {object} handlerutil.Envelope
// @Failure 400 {object} httperr.Body
// @Failure 403 {object} httperr.Body
// @Router /tours [post]
func (h *Handlers) Create(c *fiber.Ctx) error {
	var req tours.CreateTourRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "CreateTour"); err != nil {
		return err
	}

	tour, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return serviceError(c, err, "CreateTour", req.Name)
	}
	return handlerutil.Success(c, fiber.StatusCreated, "tour", tour)
}

// Update changes a tour
// @Summary Update tour
// @Tags tours
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Tour ID"
// @Param request body tours.UpdateTourRequest true "Fields to change"
// @Success 200 {object} handlerutil.Envelope
// @Failure 400 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /tours/{id} [patch]
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, err := handlerutil.ParamID(c, "id", "UpdateTour")
	if err != nil {
		return err
	}

	var req tours.UpdateTourRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "UpdateTour"); err != nil {
		return err
	}

	name := ""
	if req.Name != nil {
		name = *req.Name
	}
	tour, err := h.service.Update(c.UserContext(), id, req)
	if err != nil {
		return serviceError(c, err, "UpdateTour", name)
	}
	return handlerutil.Success(c, fiber.StatusOK, "tour", tour)
}

// Delete removes a tour
// @Summary Delete tour
// @Tags tours
// @Security Bearer
// @Param id path string true "Tour ID"
// @Success 204
// @Failure 404 {object} httperr.Body
// @Router /tours/{id} [delete]
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := handlerutil.ParamID(c, "id", "DeleteTour")
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return serviceError(c, err, "DeleteTour")
	}
	return handlerutil.NoContent(c)
}

// Stats aggregates well rated tours by difficulty
// @Summary Tour statistics
// @Tags tours
// @Produce json
// @Success 200 {object} handlerutil.Envelope
// @Router /tours/tour-stats [get]
func (h *Handlers) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return serviceError(c, err, "TourStats")
	}
	return handlerutil.Success(c, fiber.StatusOK, "stats", stats)
}

// serviceError maps tour errors to responses. name is the submitted tour
// name, used in the duplicate message.
func serviceError(c *fiber.Ctx, err error, handlerName string, name ...string) error {
	switch {
	case errors.Is(err, tours.ErrTourNotFound):
		return httperr.NotFound("No tour found with that ID")
	case errors.Is(err, tours.ErrDuplicateName):
		value := ""
		if len(name) > 0 && name[0] != "" {
			value = `"` + name[0] + `"`
		}
		return httperr.BadRequest(httperr.DuplicateMessage(value))
	case errors.Is(err, tours.ErrDiscountTooHigh):
		return httperr.BadRequest("Invalid input data. Discount price should be below regular price")
	case errors.Is(err, tours.ErrInvalidGuide):
		return httperr.BadRequest("Invalid input data. guides must be user ids")
	case errors.Is(err, tours.ErrInvalidSortField):
		return httperr.BadRequest("Invalid sort field")
	case errors.Is(err, tours.ErrEmptyUpdate):
		return httperr.BadRequest("No fields to update")
	}
	return handlerutil.HandleServiceError(c, err, handlerName)
}
