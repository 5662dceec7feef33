package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"tourbook/cmd/server/handlers"
	mongo "tourbook/internal/clients/mongo"
	"tourbook/internal/clients/redis"
	"tourbook/internal/config"
	"tourbook/internal/services/auth"
	"tourbook/internal/services/mail"
	"tourbook/internal/services/reviews"
	"tourbook/internal/services/tours"
	"tourbook/internal/services/users"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
)

// Redis key prefixes of the two limiters
const (
	apiLimitPrefix    = "tourbook:limit:api:"
	signInLimitPrefix = "tourbook:limit:signin:"
)

// buildDeps creates repositories and services on top of db. The returned
// closers release what buildDeps opened.
func buildDeps(ctx context.Context, cfg config.Config, db *mongodriver.Database, log *slog.Logger) (Deps, []io.Closer, error) {
	usersRepo, err := mongo.NewUsersRepo(ctx, db)
	if err != nil {
		return Deps{}, nil, fmt.Errorf("users repo: %w", err)
	}
	toursRepo, err := mongo.NewToursRepo(ctx, db)
	if err != nil {
		return Deps{}, nil, fmt.Errorf("tours repo: %w", err)
	}
	reviewsRepo, err := mongo.NewReviewsRepo(ctx, db)
	if err != nil {
		return Deps{}, nil, fmt.Errorf("reviews repo: %w", err)
	}

	sender, err := mail.NewSender(ctx, cfg, log)
	if err != nil {
		return Deps{}, nil, fmt.Errorf("mail sender: %w", err)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	hub := reviews.NewHub(cfg.WSOutboxBuffer)
	reviewsSvc := reviews.NewService(reviewsRepo, toursRepo, usersRepo, hub, log)

	deps := Deps{
		Auth:        auth.NewService(usersRepo, tokens, mail.NewMailer(sender), cfg, log),
		Tokens:      tokens,
		Users:       users.NewService(usersRepo, log),
		Tours:       tours.NewService(toursRepo, usersRepo, reviewsSvc, log),
		Reviews:     reviewsSvc,
		Hub:         hub,
		TourChecker: toursRepo,
		Checks:      []handlers.Check{{Name: "mongo", Ping: mongo.Ping}},
	}

	if cfg.RedisURL == "" {
		log.Info("rate limit counters kept in memory")
		return deps, nil, nil
	}

	apiStore, err := redis.New(ctx, cfg.RedisURL, apiLimitPrefix, log)
	if err != nil {
		return Deps{}, nil, fmt.Errorf("redis: %w", err)
	}
	// both limiters share one connection pool
	signInStore := apiStore.WithPrefix(signInLimitPrefix)

	deps.APILimitStorage = apiStore
	deps.SignInLimitStorage = signInStore
	deps.Checks = append(deps.Checks, handlers.Check{Name: "redis", Ping: apiStore.Ping})

	return deps, []io.Closer{apiStore}, nil
}
