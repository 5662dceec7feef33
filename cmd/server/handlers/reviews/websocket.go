package reviews

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"tourbook/cmd/server/ctxkeys"
	"tourbook/cmd/server/handlers/handlerutil"
	"tourbook/cmd/server/handlers/httperr"
	"tourbook/internal/logger"
	"tourbook/internal/services/auth"
	"tourbook/internal/services/reviews"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	// WSClosePolicyViolation represents WebSocket close code for policy violation
	WSClosePolicyViolation = 1008

	wsWriteTimeout     = 10 * time.Second
	wsPingInterval     = 25 * time.Second
	wsPingWriteTimeout = 5 * time.Second

	msgFailedToCloseWebSocketConnection = "failed to close WebSocket connection"
)

var errUpgradeRequired = httperr.E{Status: fiber.StatusBadRequest, Message: "WebSocket upgrade required"}

// Hub is the fan-out the stream subscribes to.
type Hub interface {
	Subscribe(connULID ulid.ULID, tourID bson.ObjectID) (*reviews.Subscriber, func())
}

// TourChecker reports whether a public tour exists.
type TourChecker interface {
	Exists(ctx context.Context, id bson.ObjectID) (bool, error)
}

// WebSocketHandlers streams review events of one tour
type WebSocketHandlers struct {
	hub           Hub
	tours         TourChecker
	maxSessionSec int
}

// NewWebSocketHandlers creates new WebSocket handlers
func NewWebSocketHandlers(hub Hub, tours TourChecker, maxSessionSec int) *WebSocketHandlers {
	return &WebSocketHandlers{
		hub:           hub,
		tours:         tours,
		maxSessionSec: maxSessionSec,
	}
}

// WSUpgrade admits an authenticated upgrade request for an existing tour.
// It runs after Protect, which has already attached the user.
func (h *WebSocketHandlers) WSUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		logger.L().Warn("websocket upgrade required", "handler", "WSUpgrade", "path", c.Path())
		return httperr.Fail(errUpgradeRequired)
	}

	if _, err := handlerutil.CurrentUser(c); err != nil {
		return err
	}

	tourID, err := handlerutil.ParamID(c, "id", "WSUpgrade")
	if err != nil {
		return err
	}

	ok, err := h.tours.Exists(c.UserContext(), tourID)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "WSUpgrade")
	}
	if !ok {
		return httperr.NotFound("No tour found with that ID")
	}

	c.Locals(ctxkeys.TourIDKey, tourID.Hex())
	c.Locals(ctxkeys.ParentCtxKey, c.UserContext())
	return c.Next()
}

// WSReviewStream pushes review events of the tour to the client until the
// client leaves or the session times out.
func (h *WebSocketHandlers) WSReviewStream(c *websocket.Conn) {
	conn, parentCtx, err := h.initializeConnection(c)
	if err != nil {
		h.closeConnection(c)
		return
	}

	ctx, cancelCtx := context.WithCancel(parentCtx)
	defer cancelCtx()

	subscriber, cancel := h.hub.Subscribe(conn.connULID, conn.tourID)
	defer cancel()

	logger.L().Info("WebSocket connection established", "user_id", conn.userID.Hex(), "tour_id", conn.tourID.Hex(), "conn_id", conn.connID)

	sessionTimer := h.startSessionTimer(c, conn, cancelCtx)
	defer h.stopSessionTimer(sessionTimer)

	ping := h.startKeepAlive(c, conn)
	defer ping.Stop()

	go h.handleOutgoingMessages(ctx, c, conn, subscriber)

	h.handleIncomingMessages(c, conn)

	logger.L().Info("WebSocket connection closed", "user_id", conn.userID.Hex(), "conn_id", conn.connID)
}

type wsConnection struct {
	userID   bson.ObjectID
	tourID   bson.ObjectID
	connULID ulid.ULID
	connID   string
}

func (h *WebSocketHandlers) initializeConnection(c *websocket.Conn) (*wsConnection, context.Context, error) {
	user, ok := c.Locals(ctxkeys.UserKey).(*auth.User)
	if !ok || user == nil {
		logger.L().Error(ctxkeys.UserKey + " not found in WebSocket context")
		return nil, nil, errors.New(ctxkeys.UserKey + " not found")
	}

	tourHex, _ := c.Locals(ctxkeys.TourIDKey).(string)
	tourID, err := bson.ObjectIDFromHex(tourHex)
	if err != nil {
		logger.L().Error("invalid "+ctxkeys.TourIDKey+" in WebSocket context", ctxkeys.TourIDKey, tourHex, "error", err)
		return nil, nil, err
	}

	parentCtx, ok := c.Locals(ctxkeys.ParentCtxKey).(context.Context)
	if !ok {
		logger.L().Error(ctxkeys.ParentCtxKey + " not found in WebSocket context")
		return nil, nil, errors.New(ctxkeys.ParentCtxKey + " not found")
	}

	connULID := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	return &wsConnection{
		userID:   user.ID,
		tourID:   tourID,
		connULID: connULID,
		connID:   connULID.String(),
	}, parentCtx, nil
}

func (h *WebSocketHandlers) closeConnection(c *websocket.Conn) {
	if err := c.Close(); err != nil {
		logger.L().Error(msgFailedToCloseWebSocketConnection, "error", err)
	}
}

func (h *WebSocketHandlers) startSessionTimer(c *websocket.Conn, conn *wsConnection, cancelCtx context.CancelFunc) *time.Timer {
	return time.AfterFunc(time.Duration(h.maxSessionSec)*time.Second, func() {
		logger.L().Info("WebSocket session timeout", "user_id", conn.userID.Hex(), "conn_id", conn.connID)
		h.sendCloseMessage(c, conn)
		h.closeConnection(c)
		cancelCtx()
	})
}

func (h *WebSocketHandlers) stopSessionTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}

func (h *WebSocketHandlers) sendCloseMessage(c *websocket.Conn, conn *wsConnection) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(WSClosePolicyViolation, "session timeout"))
	if err != nil {
		logger.L().Error("failed to send close message", "error", err, "conn_id", conn.connID)
	}
}

func (h *WebSocketHandlers) startKeepAlive(c *websocket.Conn, conn *wsConnection) *time.Ticker {
	ping := time.NewTicker(wsPingInterval)
	go func() {
		for range ping.C {
			if h.sendPing(c, conn) != nil {
				return
			}
		}
	}()
	return ping
}

func (h *WebSocketHandlers) sendPing(c *websocket.Conn, conn *wsConnection) error {
	if err := c.SetWriteDeadline(time.Now().Add(wsPingWriteTimeout)); err != nil {
		logger.L().Error("failed to set write deadline", "error", err, "conn_id", conn.connID)
		return err
	}
	if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
		logger.L().Warn("failed to write ping message", "error", err, "conn_id", conn.connID)
		return err
	}
	return nil
}

func (h *WebSocketHandlers) handleOutgoingMessages(ctx context.Context, c *websocket.Conn, conn *wsConnection, subscriber *reviews.Subscriber) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("panic in WebSocket sender", "error", r, "conn_id", conn.connID)
		}
	}()

	for {
		select {
		case event, ok := <-subscriber.Ch:
			if !ok {
				return
			}
			if h.sendEvent(c, conn, event) != nil {
				return
			}
		case <-subscriber.Done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandlers) sendEvent(c *websocket.Conn, conn *wsConnection, event reviews.ReviewEvent) error {
	if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		logger.L().Error("failed to set write deadline", "error", err, "conn_id", conn.connID)
		return err
	}
	if err := c.WriteJSON(buildEventMessage(event)); err != nil {
		logger.L().Error("failed to write WebSocket message", "error", err, "conn_id", conn.connID)
		return err
	}
	return nil
}

// buildEventMessage strips deleted reviews down to their id.
func buildEventMessage(event reviews.ReviewEvent) fiber.Map {
	if event.Type == reviews.EventDeleted {
		return fiber.Map{
			"type":   event.Type,
			"review": fiber.Map{"id": event.Review.ID.Hex()},
		}
	}
	return fiber.Map{
		"type":   event.Type,
		"review": event.Review,
	}
}

// handleIncomingMessages drains client frames; the stream is one way.
func (h *WebSocketHandlers) handleIncomingMessages(c *websocket.Conn, conn *wsConnection) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L().Error("WebSocket error", "error", err, "conn_id", conn.connID)
			}
			return
		}
	}
}

// LogWSConnections logs every WebSocket upgrade attempt together with the
// user Protect resolved.
func LogWSConnections() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			userID := ""
			if user, ok := c.Locals(ctxkeys.UserKey).(*auth.User); ok && user != nil {
				userID = user.ID.Hex()
			}
			logger.L().Info("WebSocket upgrade attempt", "ip", c.IP(), "path", c.Path(), "user", userID)
		}
		return c.Next()
	}
}
