package reviews

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"tourbook/cmd/server/ctxkeys"
	"tourbook/cmd/server/testutil"
	"tourbook/internal/services/auth"
	"tourbook/internal/services/reviews"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const wsMaxIncomingBytes = 1 << 20

// MockTours mocks the tour existence check
type MockTours struct {
	mock.Mock
}

func (m *MockTours) Exists(ctx context.Context, id bson.ObjectID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func TestWSUpgradeTableDriven(t *testing.T) {
	known, unknown := bson.NewObjectID(), bson.NewObjectID()
	user := &auth.User{ID: bson.NewObjectID(), Role: auth.RoleUser}

	testCases := []struct {
		name     string
		path     string
		user     *auth.User
		upgrade  bool
		expected int
	}{
		{"Upgrade", "/ws/tours/" + known.Hex() + "/reviews", user, true, http.StatusOK},
		{"PlainRequest", "/ws/tours/" + known.Hex() + "/reviews", user, false, http.StatusBadRequest},
		{"NoUser", "/ws/tours/" + known.Hex() + "/reviews", nil, true, http.StatusUnauthorized},
		{"BadTourID", "/ws/tours/xyz/reviews", user, true, http.StatusBadRequest},
		{"UnknownTour", "/ws/tours/" + unknown.Hex() + "/reviews", user, true, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tours := &MockTours{}
			tours.On("Exists", mock.Anything, known).Return(true, nil).Maybe()
			tours.On("Exists", mock.Anything, unknown).Return(false, nil).Maybe()

			app := testutil.CreateTestApp(t)
			h := NewWebSocketHandlers(reviews.NewHub(4), tours, 900)
			chain := []fiber.Handler{}
			if tc.user != nil {
				chain = append(chain, testutil.WithUser(tc.user))
			}
			chain = append(chain, h.WSUpgrade, func(c *fiber.Ctx) error {
				return c.JSON(fiber.Map{"tour": c.Locals(ctxkeys.TourIDKey)})
			})
			app.Get("/ws/tours/:id/reviews", chain...)

			req := testutil.CreateWebSocketRequest(tc.path, nil)
			if !tc.upgrade {
				req = testutil.CreateJSONRequest(http.MethodGet, tc.path, nil)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, resp.StatusCode)

			if tc.expected == http.StatusOK {
				assert.Equal(t, known.Hex(), testutil.DecodeJSON(t, resp)["tour"])
			}
		})
	}
}

// startStreamServer serves the review stream for tourID on a random port
// and returns its ws:// URL.
func startStreamServer(t *testing.T, hub *reviews.Hub, tourID bson.ObjectID, maxSessionSec int) string {
	t.Helper()

	h := NewWebSocketHandlers(hub, &MockTours{}, maxSessionSec)
	user := &auth.User{ID: bson.NewObjectID(), Role: auth.RoleUser}

	app := fiber.New()
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.SendStatus(http.StatusBadRequest)
		}
		c.Locals(ctxkeys.UserKey, user)
		c.Locals(ctxkeys.TourIDKey, tourID.Hex())
		c.Locals(ctxkeys.ParentCtxKey, c.UserContext())
		return c.Next()
	})
	app.Get("/ws", websocket.New(h.WSReviewStream))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url string) *gorillaws.Conn {
	t.Helper()
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.SetReadLimit(wsMaxIncomingBytes)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWSReviewStreamDeliversEvents(t *testing.T) {
	hub := reviews.NewHub(8)
	tourID := bson.NewObjectID()
	conn := dial(t, startStreamServer(t, hub, tourID, 60))

	require.Eventually(t, func() bool { return hub.GetSubscriberCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	created := &reviews.Review{ID: bson.NewObjectID(), Review: "Great", Rating: 5, TourID: tourID}
	hub.Broadcast(context.Background(), tourID, reviews.ReviewEvent{Type: reviews.EventCreated, Review: created})
	hub.Broadcast(context.Background(), bson.NewObjectID(), reviews.ReviewEvent{Type: reviews.EventCreated, Review: created})
	hub.Broadcast(context.Background(), tourID, reviews.ReviewEvent{Type: reviews.EventDeleted, Review: created})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "created", first["type"])
	assert.Equal(t, "Great", first["review"].(map[string]any)["review"])

	var second map[string]any
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "deleted", second["type"])
	assert.Equal(t, map[string]any{"id": created.ID.Hex()}, second["review"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.GetSubscriberCount() == 0 },
		2*time.Second, 10*time.Millisecond, "closing the client unsubscribes")
}

func TestWSSessionTimeout(t *testing.T) {
	hub := reviews.NewHub(8)
	conn := dial(t, startStreamServer(t, hub, bson.NewObjectID(), 1))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	start := time.Now()
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	elapsed := time.Since(start)

	var closeErr *gorillaws.CloseError
	if errors.As(err, &closeErr) {
		assert.Equal(t, WSClosePolicyViolation, closeErr.Code)
	}
	assert.Less(t, elapsed, 4*time.Second, "connection should close promptly after the session limit")
}

func TestBuildEventMessage(t *testing.T) {
	review := &reviews.Review{ID: bson.NewObjectID(), Review: "Fine", Rating: 3}

	msg := buildEventMessage(reviews.ReviewEvent{Type: reviews.EventUpdated, Review: review})
	assert.Equal(t, reviews.EventUpdated, msg["type"])
	assert.Same(t, review, msg["review"])

	msg = buildEventMessage(reviews.ReviewEvent{Type: reviews.EventDeleted, Review: review})
	assert.Equal(t, fiber.Map{"id": review.ID.Hex()}, msg["review"])
}
