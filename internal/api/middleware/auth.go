package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"authbase/internal/config"
	"authbase/internal/keys"
	"authbase/internal/models"
	"authbase/internal/permission"
	"authbase/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

var log = logger.New("auth_middleware")

// AuthMiddleware authenticates each request from its session token and puts
// the loaded principal on the request context for the permission checks
// downstream. The token is looked for in three places: the query parameter
// the login redirect appends, the session cookie, and a bearer header.
type AuthMiddleware struct {
	verifier *keys.Verifier
	perms    *permission.Service
	sessions *SessionCache
	cfg      config.AuthConfig
}

func NewAuthMiddleware(verifier *keys.Verifier, perms *permission.Service, cfg config.AuthConfig) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		perms:    perms,
		sessions: NewSessionCache(),
		cfg:      cfg,
	}
}

func (m *AuthMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := m.extractToken(c)
			if token == "" {
				return m.reject(c)
			}

			email, cached := m.sessions.Get(token)
			if !cached {
				// The token's custom claims are hints for services without a
				// user store; here the loaded user record is authoritative.
				subject, _, err := m.verifier.Verify(c.Request().Context(), token)
				if err != nil {
					return m.reject(c)
				}
				email = subject
				m.sessions.Put(token, email)
			}

			user, err := m.perms.LookUpUserByEmail(c.Request().Context(), email)
			if err != nil {
				log.Warn("token verified but no user for subject")
				return m.reject(c)
			}

			// Sliding session: reissue the cookie so activity keeps the
			// session alive. Max-age stays under the token TTL so the
			// cookie never outlives the token it carries.
			m.SetSessionCookie(c, token)

			ctx := permission.WithPrincipal(c.Request().Context(), user)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("principal", user)
			return next(c)
		}
	}
}

func (m *AuthMiddleware) extractToken(c echo.Context) string {
	if token := c.QueryParam(m.cfg.CookieName); token != "" {
		return token
	}
	if cookie, err := c.Cookie(m.cfg.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (m *AuthMiddleware) reject(c echo.Context) error {
	if m.cfg.RedirectToLogin && c.Request().Method == http.MethodGet &&
		strings.Contains(c.Request().Header.Get("Accept"), "text/html") {
		target := "/login?redirect=" + url.QueryEscape(c.Request().RequestURI)
		return c.Redirect(http.StatusFound, target)
	}
	return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
}

// SetSessionCookie writes the session cookie. Max-age is kept a minute
// under the session TTL so the browser drops the cookie before the token
// inside it expires.
func (m *AuthMiddleware) SetSessionCookie(c echo.Context, token string) {
	maxAge := m.cfg.SessionTTL - time.Minute
	if maxAge <= 0 {
		maxAge = m.cfg.SessionTTL / 2
	}
	c.SetCookie(&http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// EndSession drops the cached session and expires the cookie.
func (m *AuthMiddleware) EndSession(c echo.Context) {
	if token := m.extractToken(c); token != "" {
		m.sessions.Drop(token)
	}
	m.ClearSessionCookie(c)
}

// ClearSessionCookie expires the session cookie on logout.
func (m *AuthMiddleware) ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Principal returns the authenticated user set by the middleware, for
// handlers that work with echo.Context rather than a context.Context.
func Principal(c echo.Context) *models.AppUser {
	if user, ok := c.Get("principal").(*models.AppUser); ok {
		return user
	}
	return nil
}
