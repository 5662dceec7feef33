// Package ctxkeys names the fiber.Ctx locals shared between middlewares and
// handlers.
package ctxkeys

const (
	// UserKey holds the *auth.User attached by Protect or IsLoggedIn.
	UserKey = "currentUser"
	// TokenKey holds the parsed *jwt.Token stored by the jwt middleware.
	TokenKey = "jwtToken"
	// ParentCtxKey carries the request context into websocket handlers.
	ParentCtxKey = "parentCtx"
	// TourIDKey carries the tour a websocket client follows.
	TourIDKey = "tourID"
	// RequestIDKey is where the requestid middleware stores the id.
	RequestIDKey = "requestid"
	// PanicStackKey holds the stack of a recovered panic.
	PanicStackKey = "panicStack"
)
