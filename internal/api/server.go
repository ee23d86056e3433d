package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"authbase/internal/api/validator"
	"authbase/internal/config"
	"authbase/internal/keys"
	"authbase/internal/messages"
	"authbase/internal/objects"
	"authbase/internal/permission"

	console "authbase/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type Server struct {
	echo   *echo.Echo
	config *config.Config
}

var log = console.New("API-Server")

// NewServer wires the HTTP surface: middleware stack, error handling and
// routes. Dependencies arrive prebuilt so the server stays testable.
func NewServer(cfg *config.Config, deps *Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Validator = validator.NewValidator()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(20))))

	e.HTTPErrorHandler = envelopeErrorHandler

	s := &Server{echo: e, config: cfg}
	registerRoutes(e, deps)
	return s
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// healthCheck endpoint
func healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// envelopeErrorHandler maps domain errors onto HTTP codes and renders every
// failure in the same envelope shape as success responses.
func envelopeErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	text := "Internal error."

	var notPermitted *permission.NotPermittedError
	var illegalFilter *objects.IllegalFilterError
	var httpErr *echo.HTTPError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, permission.ErrUnauthenticated),
		errors.Is(err, keys.ErrAuthenticationFailed):
		code, text = http.StatusUnauthorized, "Authentication required."
	case errors.As(err, &notPermitted):
		code, text = http.StatusForbidden, "Not permitted."
	case errors.Is(err, objects.ErrUnknownType):
		code, text = http.StatusNotFound, "No such type."
	case errors.Is(err, gorm.ErrRecordNotFound):
		code, text = http.StatusNotFound, "Not found."
	case errors.As(err, &illegalFilter):
		code, text = http.StatusBadRequest, illegalFilter.Error()
	case errors.Is(err, objects.ErrObjectAlreadyHasID):
		code, text = http.StatusBadRequest, objects.ErrObjectAlreadyHasID.Error()
	case errors.Is(err, objects.ErrOptimisticLock):
		code, text = http.StatusBadRequest, objects.ErrOptimisticLock.Error()
	case errors.As(err, &validationErrs):
		code, text = http.StatusBadRequest, validationErrs.Error()
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			text = m
		} else {
			text = http.StatusText(code)
		}
	default:
		log.Error("unhandled error", err)
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	writeErr := c.JSON(code, map[string]interface{}{
		"ok":       false,
		"numFound": 0,
		"results":  []interface{}{},
		"messages": []messages.Message{{Level: messages.Error, Text: text}},
	})
	if writeErr != nil {
		log.Warn("failed to write error response: %v", writeErr)
	}
}
