// Command initdata loads a generated demo catalogue into MongoDB or wipes it.
//
//	go run ./cmd/initdata -import
//	go run ./cmd/initdata -delete
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	mongo "tourbook/internal/clients/mongo"
	"tourbook/internal/config"
	"tourbook/internal/logger"
	"tourbook/internal/services/reviews"
	"tourbook/internal/utils/crypto"

	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	doImport    = flag.Bool("import", false, "Insert generated users, tours and reviews")
	doDelete    = flag.Bool("delete", false, "Delete all users, tours and reviews")
	nUsers      = flag.Int("users", 20, "How many users to create")
	nTours      = flag.Int("tours", 9, "How many tours to create")
	perUser     = flag.Int("reviews", 3, "Reviews written by each regular user")
	password    = flag.String("password", "test1234", "Password of every generated account")
	seed        = flag.Int64("seed", 0, "Faker seed, 0 picks one from the clock")
	collections = []string{"reviews", "tours", "users"}
)

func main() {
	flag.Parse()
	if *doImport == *doDelete {
		fmt.Fprintln(os.Stderr, "usage: initdata -import | -delete")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logg, err := logger.Init(cfg)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	_, db, err := mongo.Init(ctx, cfg, logg)
	if err != nil {
		logg.Error("mongo init", "err", err)
		os.Exit(1)
	}
	defer func() { _ = mongo.Shutdown(context.Background()) }()

	if *doDelete {
		err = deleteAll(ctx, db, logg)
	} else {
		err = importAll(ctx, cfg, db, logg)
	}
	if err != nil {
		logg.Error("initdata failed", "err", err)
		os.Exit(1)
	}
}

func deleteAll(ctx context.Context, db *mongodriver.Database, logg *slog.Logger) error {
	for _, name := range collections {
		res, err := db.Collection(name).DeleteMany(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
		logg.Info("deleted", "collection", name, "count", res.DeletedCount)
	}
	return nil
}

func importAll(ctx context.Context, cfg config.Config, db *mongodriver.Database, logg *slog.Logger) error {
	usersRepo, err := mongo.NewUsersRepo(ctx, db)
	if err != nil {
		return err
	}
	toursRepo, err := mongo.NewToursRepo(ctx, db)
	if err != nil {
		return err
	}
	reviewsRepo, err := mongo.NewReviewsRepo(ctx, db)
	if err != nil {
		return err
	}

	hash, err := crypto.HashPassword(*password, cfg.BcryptCost)
	if err != nil {
		return err
	}

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	f := gofakeit.New(s)
	now := time.Now().UTC()

	data := dataset{Users: fakeUsers(f, *nUsers, hash, now)}
	data.Tours = fakeTours(f, *nTours, data.Users, now)
	data.Reviews = fakeReviews(f, data.Users, data.Tours, *perUser, now)

	for _, u := range data.Users {
		if err := usersRepo.Create(ctx, u); err != nil {
			return fmt.Errorf("create user %s: %w", u.Email, err)
		}
	}
	for _, t := range data.Tours {
		if err := toursRepo.Create(ctx, t); err != nil {
			return fmt.Errorf("create tour %q: %w", t.Name, err)
		}
	}
	for _, r := range data.Reviews {
		if err := reviewsRepo.Create(ctx, r); err != nil && !errors.Is(err, reviews.ErrAlreadyReviewed) {
			return fmt.Errorf("create review: %w", err)
		}
	}

	// nobody listens during an import
	svc := reviews.NewService(reviewsRepo, toursRepo, usersRepo, reviews.NewHub(1), logg)
	for _, t := range data.Tours {
		if err := svc.RecalculateRatings(ctx, t.ID); err != nil {
			return fmt.Errorf("ratings of %q: %w", t.Name, err)
		}
	}

	logg.Info("import complete",
		"users", len(data.Users), "tours", len(data.Tours), "reviews", len(data.Reviews), "seed", s)
	return nil
}
