// Package docs Tourbook API
//
// @title  Tourbook API
// @version 1.0.0
// @description Tours, reviews, users and authentication for a tour booking site.
// @host      localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package docs

import (
	_ "tourbook/cmd/server/handlers/httperr"
	_ "tourbook/internal/services/auth"
	_ "tourbook/internal/services/reviews"
	_ "tourbook/internal/services/tours"
)
