package api

import (
	"authbase/internal/api/controllers"
	apimiddleware "authbase/internal/api/middleware"
	"authbase/internal/handlers"
	"authbase/internal/objects"

	"github.com/labstack/echo/v4"
)

// Dependencies collects everything the routes need. cmd/main builds one of
// these after wiring the services.
type Dependencies struct {
	Auth       *handlers.AuthHandler
	AuthMw     *apimiddleware.AuthMiddleware
	Objects    *objects.Service
	TokenParam string
}

func registerRoutes(e *echo.Echo, deps *Dependencies) {
	e.GET("/health", healthCheck)

	// Anonymous surface: login doubles as the public-key endpoint via its
	// kid parameter; account and password flows are all pre-session.
	e.GET("/login", deps.Auth.LoginGet)
	e.POST("/login", deps.Auth.LoginPost)
	e.GET("/logout", deps.Auth.Logout)
	e.POST("/account/register", deps.Auth.Register)
	e.GET("/account/confirm", deps.Auth.Confirm)
	e.POST("/password/reset", deps.Auth.RequestPasswordReset)
	e.POST("/password/change", deps.Auth.ChangePassword)

	// Everything under /rest requires a session.
	rest := e.Group("/rest", deps.AuthMw.Middleware())
	controllers.NewRestController(deps.Objects, deps.TokenParam).Register(rest)
}
