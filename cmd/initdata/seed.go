package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"tourbook/internal/services/auth"
	"tourbook/internal/services/reviews"
	"tourbook/internal/services/tours"
	"tourbook/internal/utils/slug"

	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// dataset is everything one import run writes.
type dataset struct {
	Users   []*auth.User
	Tours   []*tours.Tour
	Reviews []*reviews.Review
}

var difficulties = []tours.Difficulty{tours.DifficultyEasy, tours.DifficultyMedium, tours.DifficultyDifficult}

// fakeUsers creates one admin, two lead guides, three guides and fills the
// rest with regular users. Every account shares passwordHash.
func fakeUsers(f *gofakeit.Faker, n int, passwordHash string, now time.Time) []*auth.User {
	roles := []auth.Role{auth.RoleAdmin, auth.RoleLeadGuide, auth.RoleLeadGuide, auth.RoleGuide, auth.RoleGuide, auth.RoleGuide}

	out := make([]*auth.User, 0, n)
	for i := 0; i < n; i++ {
		role := auth.RoleUser
		if i < len(roles) {
			role = roles[i]
		}
		first, last := f.FirstName(), f.LastName()
		out = append(out, &auth.User{
			ID:           bson.NewObjectID(),
			Name:         first + " " + last,
			Email:        strings.ToLower(fmt.Sprintf("%s.%s.%d@example.com", first, last, i)),
			Photo:        fmt.Sprintf("user-%d.jpg", i+1),
			Role:         role,
			PasswordHash: passwordHash,
			Active:       true,
			CreatedAt:    now,
		})
	}
	return out
}

// fakeTours creates n public tours, each led by one lead guide and one guide
// when staff exists.
func fakeTours(f *gofakeit.Faker, n int, staff []*auth.User, now time.Time) []*tours.Tour {
	var leads, guides []bson.ObjectID
	for _, u := range staff {
		switch u.Role {
		case auth.RoleLeadGuide:
			leads = append(leads, u.ID)
		case auth.RoleGuide:
			guides = append(guides, u.ID)
		}
	}

	out := make([]*tours.Tour, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("The %s %s %d", title(f.Adjective()), title(f.Noun()), i+1)
		price := math.Round(f.Price(297, 2997))
		stops := f.Number(1, 4)

		t := &tours.Tour{
			ID:           bson.NewObjectID(),
			Name:         name,
			Slug:         slug.Make(name),
			Duration:     f.Number(2, 14),
			MaxGroupSize: f.Number(4, 25),
			Difficulty:   difficulties[i%len(difficulties)],
			Price:        price,
			Summary:      f.Sentence(8),
			Description:  f.Paragraph(2, 3, 12, "\n"),
			ImageCover:   fmt.Sprintf("tour-%d-cover.jpg", i+1),
			Images:       []string{fmt.Sprintf("tour-%d-1.jpg", i+1), fmt.Sprintf("tour-%d-2.jpg", i+1)},
			StartDates: []time.Time{
				now.AddDate(0, f.Number(1, 4), 0).Truncate(24 * time.Hour),
				now.AddDate(0, f.Number(5, 10), 0).Truncate(24 * time.Hour),
			},
			StartLocation: fakeLocation(f, 0),
			CreatedAt:     now,
		}
		if f.Bool() {
			t.PriceDiscount = math.Round(price * 0.8)
		}
		for day := 1; day <= stops; day++ {
			t.Locations = append(t.Locations, *fakeLocation(f, day))
		}
		if len(leads) > 0 {
			t.GuideIDs = append(t.GuideIDs, leads[i%len(leads)])
		}
		if len(guides) > 0 {
			t.GuideIDs = append(t.GuideIDs, guides[i%len(guides)])
		}
		out = append(out, t)
	}
	return out
}

func fakeLocation(f *gofakeit.Faker, day int) *tours.Location {
	city := f.City()
	return &tours.Location{
		Type:        "Point",
		Coordinates: []float64{f.Longitude(), f.Latitude()},
		Address:     f.Street() + ", " + city,
		Description: city,
		Day:         day,
	}
}

// fakeReviews lets every regular user review up to perUser distinct tours.
func fakeReviews(f *gofakeit.Faker, people []*auth.User, list []*tours.Tour, perUser int, now time.Time) []*reviews.Review {
	var out []*reviews.Review
	if len(list) == 0 {
		return out
	}
	if perUser > len(list) {
		perUser = len(list)
	}

	for _, u := range people {
		if u.Role != auth.RoleUser {
			continue
		}
		start := f.Number(0, len(list)-1)
		for k := 0; k < perUser; k++ {
			tour := list[(start+k)%len(list)]
			out = append(out, &reviews.Review{
				ID:        bson.NewObjectID(),
				Review:    f.Sentence(12),
				Rating:    f.Number(1, 5),
				TourID:    tour.ID,
				UserID:    u.ID,
				CreatedAt: now.Add(-time.Duration(f.Number(1, 90*24)) * time.Hour),
			})
		}
	}
	return out
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
