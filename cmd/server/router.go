package main

import (
	"time"

	"tourbook/cmd/server/ctxkeys"
	"tourbook/cmd/server/handlers"
	authHandlers "tourbook/cmd/server/handlers/auth"
	"tourbook/cmd/server/handlers/handlerutil"
	"tourbook/cmd/server/handlers/httperr"
	reviewsHandlers "tourbook/cmd/server/handlers/reviews"
	toursHandlers "tourbook/cmd/server/handlers/tours"
	usersHandlers "tourbook/cmd/server/handlers/users"
	"tourbook/cmd/server/handlers/views"
	"tourbook/cmd/server/middlewares"
	"tourbook/internal/config"
	"tourbook/internal/logger"
	authServices "tourbook/internal/services/auth"
	reviewsServices "tourbook/internal/services/reviews"

	_ "tourbook/docs" // Load swagger docs

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"
)

const (
	APIRateWindow    = time.Hour
	SignInRateWindow = time.Minute
)

// AuthService is everything the router needs from authentication.
type AuthService interface {
	authHandlers.Service
	middlewares.SessionResolver
	middlewares.Authenticator
}

// Deps are the services and stores the routes are mounted on.
type Deps struct {
	Auth    AuthService
	Tokens  *authServices.TokenService
	Users   usersHandlers.Service
	Tours   toursHandlers.Service
	Reviews reviewsHandlers.Service
	Hub     *reviewsServices.Hub
	// TourChecker admits websocket subscriptions.
	TourChecker reviewsHandlers.TourChecker
	// APILimitStorage and SignInLimitStorage hold limiter counters;
	// nil keeps them in process memory.
	APILimitStorage    fiber.Storage
	SignInLimitStorage fiber.Storage
	Checks             []handlers.Check
}

// setupRouter configures and returns a Fiber app with all routes
func setupRouter(cfg config.Config, deps Deps) *fiber.App {
	v, err := handlerutil.NewValidator()
	if err != nil {
		logger.L().Error("failed to build validator", "err", err)
		panic(err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: httperr.NewHandler(cfg.IsDevelopment()),
		Immutable:    true, // make Fiber copy all request-derived strings
		BodyLimit:    cfg.BodyLimitBytes,
		Views:        views.NewEngine(),
	})

	// Global middlewares
	app.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: httperr.RecordPanicStack,
	}))
	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: ctxkeys.RequestIDKey,
	}))
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Content-Type, Authorization",
	}))

	if cfg.RouteMetricsEnabled {
		middlewares.AttachMetrics(app, middlewares.SubscriberGauge(deps.Hub.GetSubscriberCount))
	}

	// Health check endpoint, outside versioned API to appease scanners and to avoid logging
	app.Get("/healthz", handlers.Healthz(deps.Checks...))

	app.Get("/docs/*", swagger.HandlerDefault)

	protect := middlewares.Protect(deps.Tokens, deps.Auth)
	adminOnly := middlewares.RestrictTo(authServices.RoleAdmin)
	staffOnly := middlewares.RestrictTo(authServices.RoleAdmin, authServices.RoleLeadGuide)

	api := app.Group("/api",
		middlewares.BuildRateLimiter(cfg.APIRatePerHour, APIRateWindow, deps.APILimitStorage),
		middlewares.RejectOperatorKeys(),
	)

	var v1 fiber.Router
	if cfg.RequestLoggingEnabled {
		v1 = api.Group("/v1", fiberlogger.New())
		logger.L().Info("request logging enabled")
	} else {
		v1 = api.Group("/v1")
		logger.L().Info("request logging disabled")
	}

	signInLimiter := middlewares.BuildRateLimiter(cfg.SignInRatePerMin, SignInRateWindow, deps.SignInLimitStorage)

	// Users
	authH := authHandlers.NewHandlers(deps.Auth, v, handlerutil.CookieOptions{
		TTL:    cfg.CookieTTL(),
		Secure: cfg.IsProduction(),
	})
	usersH := usersHandlers.NewHandlers(deps.Users, v)

	usersGrp := v1.Group("/users")
	usersGrp.Post("/signup", authH.SignUp)
	usersGrp.Post("/login", signInLimiter, authH.Login)
	usersGrp.Get("/logout", authH.Logout)
	usersGrp.Post("/forgetPassword", signInLimiter, authH.ForgotPassword)
	usersGrp.Patch("/resetPassword/:resetToken", authH.ResetPassword)

	usersGrp.Patch("/updatePassword", protect, authH.UpdatePassword)
	usersGrp.Get("/me", protect, usersH.Me)
	usersGrp.Patch("/updateMe", protect, usersH.UpdateMe)
	usersGrp.Delete("/deleteMe", protect, usersH.DeleteMe)

	usersGrp.Get("/", protect, adminOnly, usersH.List)
	usersGrp.Post("/", protect, adminOnly, usersH.Create)
	usersGrp.Get("/:id", protect, adminOnly, usersH.Get)
	usersGrp.Patch("/:id", protect, adminOnly, usersH.Update)
	usersGrp.Delete("/:id", protect, adminOnly, usersH.Delete)

	// Tours
	toursH := toursHandlers.NewHandlers(deps.Tours, v)
	reviewsH := reviewsHandlers.NewHandlers(deps.Reviews, v)

	toursGrp := v1.Group("/tours")
	toursGrp.Get("/", toursH.List)
	toursGrp.Get("/tour-stats", toursH.Stats)
	toursGrp.Get("/slug/:slug", toursH.GetBySlug)
	toursGrp.Get("/:id", toursH.Get)
	toursGrp.Post("/", protect, staffOnly, toursH.Create)
	toursGrp.Patch("/:id", protect, staffOnly, toursH.Update)
	toursGrp.Delete("/:id", protect, staffOnly, toursH.Delete)

	// Reviews, top level and nested under a tour
	reviewWriters := middlewares.RestrictTo(authServices.RoleUser, authServices.RoleAdmin)
	mountReviews := func(r fiber.Router) {
		r.Get("/", reviewsH.List)
		r.Post("/", middlewares.RestrictTo(authServices.RoleUser), reviewsH.Create)
	}
	mountReviews(toursGrp.Group("/:"+reviewsHandlers.TourParam+"/reviews", protect))

	reviewsGrp := v1.Group("/reviews", protect)
	mountReviews(reviewsGrp)
	reviewsGrp.Get("/:id", reviewsH.Get)
	reviewsGrp.Patch("/:id", reviewWriters, reviewsH.Update)
	reviewsGrp.Delete("/:id", reviewWriters, reviewsH.Delete)

	// WebSocket routes
	wsHandlers := reviewsHandlers.NewWebSocketHandlers(deps.Hub, deps.TourChecker, cfg.WSMaxSessionSec)
	app.Get("/ws/tours/:id/reviews",
		protect,
		reviewsHandlers.LogWSConnections(),
		wsHandlers.WSUpgrade,
		websocket.New(wsHandlers.WSReviewStream),
	)

	// Pages
	viewsH := views.NewHandlers(deps.Tours)
	isLoggedIn := middlewares.IsLoggedIn(deps.Auth)
	app.Get("/", isLoggedIn, viewsH.Overview)
	app.Get("/tour/:slug", isLoggedIn, viewsH.Tour)
	app.Get("/login", isLoggedIn, viewsH.Login)
	app.Get("/me", protect, viewsH.Account)

	app.Use(httperr.RouteNotFound)

	return app
}
