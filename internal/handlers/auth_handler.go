package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"authbase/internal/api/middleware"
	apivalidator "authbase/internal/api/validator"
	"authbase/internal/config"
	"authbase/internal/events"
	"authbase/internal/keys"
	"authbase/internal/messages"
	"authbase/internal/models"
	"authbase/internal/objects"
	"authbase/internal/permission"
	"authbase/internal/tasks"
	"authbase/internal/tasks/rate"
	"authbase/internal/utils"
	"authbase/internal/utils/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var log = logger.New("AUTH")

// loginFailedMessage is deliberately identical for every failure cause so
// responses don't reveal whether an email exists, is expired, or merely has
// the wrong password. The specific cause is logged server-side.
const loginFailedMessage = "Email or password incorrect."

const (
	accountRequestTTL = 48 * time.Hour
	resetTokenTTL     = time.Hour
)

// dummyHash is compared against when the email is unknown so both paths
// spend one bcrypt verification and login timing does not leak which emails
// exist.
var dummyHash, _ = utils.HashPassword(uuid.NewString())

type AuthHandler struct {
	db      *gorm.DB
	perms   *permission.Service
	store   *keys.RotatingKeyStore
	issuer  *keys.Issuer
	authMw  *middleware.AuthMiddleware
	client  *tasks.TaskClient
	limiter *rate.SlidingWindowLimiter
	bus     *events.Bus
	// objects is the privileged view: account flows run before any
	// principal exists.
	objects *objects.Service
	cfg     *config.Config
}

func NewAuthHandler(
	db *gorm.DB,
	perms *permission.Service,
	store *keys.RotatingKeyStore,
	issuer *keys.Issuer,
	authMw *middleware.AuthMiddleware,
	client *tasks.TaskClient,
	limiter *rate.SlidingWindowLimiter,
	bus *events.Bus,
	objectSvc *objects.Service,
	cfg *config.Config,
) *AuthHandler {
	return &AuthHandler{
		db:      db,
		perms:   perms,
		store:   store,
		issuer:  issuer,
		authMw:  authMw,
		client:  client,
		limiter: limiter,
		bus:     bus,
		objects: objectSvc.Privileged(),
		cfg:     cfg,
	}
}

// LoginGet serves two things from one path: with a kid parameter it returns
// the DER-encoded public key for that key id (or 410 Gone once the key has
// aged out), without one it renders the login form.
func (h *AuthHandler) LoginGet(c echo.Context) error {
	if kid := c.QueryParam("kid"); kid != "" {
		der, err := h.store.PublicKeyDER(kid)
		if err != nil {
			if errors.Is(err, keys.ErrKeyNotFound) {
				return c.NoContent(http.StatusGone)
			}
			return err
		}
		return c.Blob(http.StatusOK, "application/octet-stream", der)
	}
	return c.HTML(http.StatusOK, loginPage(c.QueryParam("redirect")))
}

// LoginPost authenticates an email and password and establishes a session.
func (h *AuthHandler) LoginPost(c echo.Context) error {
	var req apivalidator.LoginRequest
	if err := c.Bind(&req); err != nil {
		return h.loginFailed(c, "malformed login request")
	}
	if err := c.Validate(&req); err != nil {
		return h.loginFailed(c, "invalid login fields")
	}
	ctx := c.Request().Context()

	if allowed, err := h.limiter.Allow(ctx, strings.ToLower(req.Email)); err != nil {
		log.Warn("login limiter unavailable: %v", err)
	} else if !allowed {
		return h.loginFailed(c, "rate limited")
	}

	user, err := h.perms.LookUpUserByEmail(ctx, req.Email)
	if err != nil {
		// burn a hash comparison anyway, see dummyHash
		utils.CheckPassword(req.Password, dummyHash)
		return h.loginFailed(c, "unknown email")
	}
	if user.Security == nil {
		utils.CheckPassword(req.Password, dummyHash)
		return h.loginFailed(c, "user has no credentials")
	}
	if exp := user.Security.Expiration; exp != nil && exp.Before(time.Now()) {
		utils.CheckPassword(req.Password, dummyHash)
		return h.loginFailed(c, "account expired")
	}
	if !utils.CheckPassword(req.Password, user.Security.PasswordHash) {
		return h.loginFailed(c, "bad password")
	}

	// Role keys ride in the token as authorization hints for services that
	// verify without a user store of their own.
	roleKeys := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		roleKeys = append(roleKeys, role.Key)
	}
	token, err := h.issuer.Issue(user.Email, map[string]string{
		"roles": strings.Join(roleKeys, ","),
	})
	if err != nil {
		return log.Error("failed to issue session token", err)
	}
	h.authMw.SetSessionCookie(c, token)
	h.bus.Publish(events.Event{Kind: events.LoginSucceeded, Type: "AppUser", ID: user.ID})
	log.Success("login for user %d", user.ID)

	// Form logins bounce back to where they came from with the token as a
	// query parameter, so a service on another origin can pick it up.
	if redirect := c.FormValue("redirect"); redirect != "" && safeRedirect(redirect) {
		sep := "?"
		if strings.Contains(redirect, "?") {
			sep = "&"
		}
		return c.Redirect(http.StatusFound,
			redirect+sep+h.cfg.Auth.CookieName+"="+url.QueryEscape(token))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":    true,
		"token": token,
	})
}

func (h *AuthHandler) loginFailed(c echo.Context, cause string) error {
	log.Warn("login rejected: %s", cause)
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"ok": false,
		"messages": []messages.Message{
			{Level: messages.Error, Text: loginFailedMessage},
		},
	})
}

// Logout drops the cached session and clears the cookie. Tokens themselves
// stay valid until they expire; the short session TTL bounds the exposure.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.authMw.EndSession(c)
	if h.cfg.Auth.RedirectToLogin {
		return c.Redirect(http.StatusFound, "/login")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}

// Register opens an account request pending email confirmation. The response
// is the same whether or not the email is already taken, so registration
// cannot be used to enumerate accounts.
func (h *AuthHandler) Register(c echo.Context) error {
	var req apivalidator.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if problems := utils.CheckPasswordStrength(req.Password); len(problems) > 0 {
		msgs := make([]messages.Message, 0, len(problems))
		for _, p := range problems {
			msgs = append(msgs, messages.Message{Level: messages.Error, Text: p})
		}
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"ok": false, "messages": msgs})
	}
	ctx := c.Request().Context()

	var taken int64
	h.db.WithContext(ctx).Model(&models.AppUser{}).Where("email = ?", req.Email).Count(&taken)
	if taken > 0 {
		log.Warn("registration attempt for existing email")
		return h.registerAccepted(c)
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return log.Error("failed to hash password", err)
	}

	confirmToken, err := utils.GenerateRandomString(32)
	if err != nil {
		return log.Error("failed to generate confirmation token", err)
	}
	request := models.AccountRequest{
		Username:     req.Username,
		Email:        req.Email,
		ConfirmToken: confirmToken,
		ExpiresAt:    time.Now().Add(accountRequestTTL),
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		security := models.UserSecurity{PasswordHash: hash}
		if err := tx.Create(&security).Error; err != nil {
			return err
		}
		request.SecurityID = &security.ID
		return tx.Create(&request).Error
	})
	if err != nil {
		return log.Error("failed to create account request", err)
	}

	if err := h.client.EnqueueConfirmEmail(ctx, request.ID); err != nil {
		log.Warn("confirmation mail not queued for request %d: %v", request.ID, err)
	}
	return h.registerAccepted(c)
}

func (h *AuthHandler) registerAccepted(c echo.Context) error {
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"ok": true,
		"messages": []messages.Message{
			{Level: messages.Info, Text: "If the address is available, a confirmation email is on its way."},
		},
	})
}

// Confirm redeems a confirmation token: the account request becomes a real
// user holding the intrinsic grant over their own record.
func (h *AuthHandler) Confirm(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing token")
	}
	ctx := c.Request().Context()

	var request models.AccountRequest
	err := h.db.WithContext(ctx).
		Where("confirm_token = ? AND confirmed_at IS NULL AND expires_at > ?", token, time.Now()).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.NoContent(http.StatusGone)
		}
		return err
	}

	var user models.AppUser
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user = models.AppUser{
			Username:   request.Username,
			Email:      request.Email,
			SecurityID: request.SecurityID,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		grant := models.SelfEditGrant(user.ID)
		if err := tx.Create(grant).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Association("IntrinsicPermissions").Append(grant); err != nil {
			return err
		}

		now := time.Now()
		return tx.Model(&request).Update("confirmed_at", &now).Error
	})
	if err != nil {
		return log.Error("failed to confirm account request %d", err, request.ID)
	}

	// The privileged insert stamps system ownership and lets the created
	// event queue delivery.
	welcome := models.Notification{
		RecipientID: &user.ID,
		Level:       models.NotificationSuccess,
		Text:        "Welcome! Your account is ready.",
		Data:        datatypes.JSON(fmt.Sprintf(`{"event":"account_confirmed","userId":%d}`, user.ID)),
	}
	if err := h.objects.Insert(ctx, "Notification", &welcome); err != nil {
		log.Warn("welcome notification not created: %v", err)
	}

	h.bus.Publish(events.Event{Kind: events.AccountConfirmed, Type: "AppUser", ID: user.ID})
	log.Success("confirmed account request %d as user %d", request.ID, user.ID)
	return c.Redirect(http.StatusFound, "/login")
}

// RequestPasswordReset issues a reset token by mail. Like registration, the
// response never reveals whether the email exists.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req apivalidator.PasswordResetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	accepted := func() error {
		return c.JSON(http.StatusAccepted, map[string]interface{}{
			"ok": true,
			"messages": []messages.Message{
				{Level: messages.Info, Text: "If that account exists, a reset email is on its way."},
			},
		})
	}

	user, err := h.perms.LookUpUserByEmail(ctx, req.Email)
	if err != nil || user.Security == nil {
		log.Warn("password reset for unknown or credential-less email")
		return accepted()
	}

	token, err := utils.GenerateRandomString(32)
	if err != nil {
		return log.Error("failed to generate reset token", err)
	}
	now := time.Now()
	err = h.db.WithContext(ctx).Model(user.Security).Updates(map[string]interface{}{
		"reset_token":        token,
		"reset_requested_at": &now,
	}).Error
	if err != nil {
		return log.Error("failed to store reset token", err)
	}
	if err := h.client.EnqueueResetEmail(ctx, user.ID); err != nil {
		log.Warn("reset mail not queued for user %d: %v", user.ID, err)
	}
	return accepted()
}

// ChangePassword redeems a reset token for a new password.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req apivalidator.PasswordChangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if problems := utils.CheckPasswordStrength(req.NewPassword); len(problems) > 0 {
		msgs := make([]messages.Message, 0, len(problems))
		for _, p := range problems {
			msgs = append(msgs, messages.Message{Level: messages.Error, Text: p})
		}
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"ok": false, "messages": msgs})
	}
	ctx := c.Request().Context()

	var security models.UserSecurity
	err := h.db.WithContext(ctx).
		Where("reset_token = ? AND reset_requested_at > ?", req.Token, time.Now().Add(-resetTokenTTL)).
		First(&security).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.NoContent(http.StatusGone)
		}
		return err
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return log.Error("failed to hash password", err)
	}
	err = h.db.WithContext(ctx).Model(&security).Updates(map[string]interface{}{
		"password_hash":      hash,
		"reset_token":        nil,
		"reset_requested_at": nil,
	}).Error
	if err != nil {
		return log.Error("failed to update password", err)
	}

	log.Success("password changed for security record %d", security.ID)
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}

// safeRedirect only allows relative targets and absolute http(s) URLs; it
// exists to keep javascript: and data: schemes out of the login redirect.
func safeRedirect(target string) bool {
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		return true
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func loginPage(redirect string) string {
	return `<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<form method="post" action="/login">
  <input type="hidden" name="redirect" value="` + html(redirect) + `">
  <label>Email <input type="email" name="email" autocomplete="username"></label>
  <label>Password <input type="password" name="password" autocomplete="current-password"></label>
  <button type="submit">Sign in</button>
</form>
</body>
</html>`
}

func html(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return replacer.Replace(s)
}
