// Package views renders the server side pages.
package views

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"

	"tourbook/cmd/server/ctxkeys"
	"tourbook/cmd/server/handlers/handlerutil"
	"tourbook/internal/logger"
	"tourbook/internal/services/auth"
	"tourbook/internal/services/tours"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

// Layout wraps every page.
const Layout = "base"

//go:embed templates/*.html
var templatesFS embed.FS

// NewEngine returns the template engine over the embedded pages.
func NewEngine() *html.Engine {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	return html.NewFileSystem(http.FS(sub), ".html")
}

// Tours is what the pages read from the tours service.
type Tours interface {
	List(ctx context.Context, req tours.ListRequest) ([]*tours.Tour, error)
	GetBySlug(ctx context.Context, slug string) (*tours.Details, error)
}

// Handlers renders the pages
type Handlers struct {
	tours Tours
}

// NewHandlers creates new view handlers
func NewHandlers(tours Tours) *Handlers {
	return &Handlers{tours: tours}
}

// Overview lists every tour.
func (h *Handlers) Overview(c *fiber.Ctx) error {
	list, err := h.tours.List(c.UserContext(), tours.ListRequest{})
	if err != nil {
		return h.renderError(c, err, "Overview")
	}
	return h.render(c, "overview", fiber.Map{"Title": "All tours", "Tours": list})
}

// Tour shows one tour with guides and reviews.
func (h *Handlers) Tour(c *fiber.Ctx) error {
	tour, err := h.tours.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return h.renderError(c, err, "Tour")
	}
	return h.render(c, "tour", fiber.Map{"Title": tour.Name + " Tour", "Tour": tour})
}

// Login shows the login form.
func (h *Handlers) Login(c *fiber.Ctx) error {
	return h.render(c, "login", fiber.Map{"Title": "Log into your account"})
}

// Account shows the current user's settings. It runs behind Protect.
func (h *Handlers) Account(c *fiber.Ctx) error {
	if _, err := handlerutil.CurrentUser(c); err != nil {
		return err
	}
	return h.render(c, "account", fiber.Map{"Title": "Your account"})
}

// render adds the signed-in user, if any, to bind.
func (h *Handlers) render(c *fiber.Ctx, name string, bind fiber.Map) error {
	if user, ok := c.Locals(ctxkeys.UserKey).(*auth.User); ok && user != nil {
		bind["User"] = user
	}
	return c.Render(name, bind, Layout)
}

func (h *Handlers) renderError(c *fiber.Ctx, err error, page string) error {
	status, msg := fiber.StatusInternalServerError, "Please try again later."
	if errors.Is(err, tours.ErrTourNotFound) {
		status, msg = fiber.StatusNotFound, "There is no tour with that name."
	} else {
		logger.L().Error("failed to render page", "page", page, "error", err)
	}
	c.Status(status)
	return h.render(c, "error", fiber.Map{"Title": "Something went wrong!", "Msg": msg})
}
