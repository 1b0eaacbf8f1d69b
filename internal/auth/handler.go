package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elskow/amsterdam-discovery/internal/api"
	"github.com/elskow/amsterdam-discovery/internal/config"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 10 * time.Minute
)

// CalculationCounter reports how many calculations a user owns. The
// profile endpoint works without one.
type CalculationCounter interface {
	CountByUser(ctx context.Context, userID string) (int64, error)
}

type Handler struct {
	service  *Service
	provider IdentityProvider
	counter  CalculationCounter
	config   *config.AppConfig
	log      *zap.Logger
}

func NewHandler(
	service *Service,
	provider IdentityProvider,
	counter CalculationCounter,
	config *config.AppConfig,
	log *zap.Logger,
) *Handler {
	return &Handler{
		service:  service,
		provider: provider,
		counter:  counter,
		config:   config,
		log:      log,
	}
}

type registerRequest struct {
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
	Age             optionalInt `json:"user_age" form:"user_age"`
	FirstName       string `json:"first_name" form:"first_name"`
	LastName        string `json:"last_name" form:"last_name"`
}

// optionalInt binds a number that may be omitted. HTML forms submit an empty
// string for a blank field and JSON clients send null, a number or a string;
// all blank forms mean absent.
type optionalInt string

func (o *optionalInt) UnmarshalJSON(data []byte) error {
	*o = optionalInt(strings.Trim(string(data), `"`))
	if *o == "null" {
		*o = ""
	}
	return nil
}

func (o optionalInt) Int() (*int, error) {
	raw := strings.TrimSpace(string(o))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type verifyEmailRequest struct {
	Email string `json:"email" form:"email"`
	Code  string `json:"verification_code" form:"verification_code"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	MFACode  string `json:"mfa_code" form:"mfa_code"`
}

type mfaRequest struct {
	Enabled *bool `json:"enabled" form:"enabled"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password"`
	NewPassword     string `json:"new_password" form:"new_password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

type userResponse struct {
	ID                string  `json:"id"`
	Email             string  `json:"email"`
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	Age               *int    `json:"age"`
	IsAdmin           bool    `json:"is_admin"`
	ProfilePicture    *string `json:"profile_picture"`
	EmailVerified     bool    `json:"email_verified"`
	MFAEnabled        bool    `json:"mfa_enabled"`
	CalculationsCount *int64  `json:"calculations_count,omitempty"`
}

func newUserResponse(u *User) userResponse {
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Age:            u.Age,
		IsAdmin:        u.IsAdmin,
		ProfilePicture: u.ProfilePicture,
		EmailVerified:  u.EmailVerified,
		MFAEnabled:     u.MFAEnabled,
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	age, err := req.Age.Int()
	if err != nil {
		h.fail(c, invalid("user_age", "age must be a whole number"))
		return
	}

	result, err := h.service.Register(c.Request.Context(), RegisterRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Age:             age,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		ClientIP:        c.ClientIP(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if result.State == RegistrationCodeSent {
		c.JSON(http.StatusCreated, gin.H{
			"state":   result.State,
			"message": "Verification code sent to your email",
			"email":   result.User.Email,
		})
		return
	}

	h.setSessionCookie(c, result.Session)
	c.JSON(http.StatusCreated, gin.H{
		"state":        result.State,
		"message":      "Registration successful!",
		"access_token": result.Session.Token,
		"user":         newUserResponse(result.User),
	})
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBind(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.VerifyEmail(c.Request.Context(), req.Email, req.Code, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setSessionCookie(c, result.Session)
	c.JSON(http.StatusOK, gin.H{
		"state":        result.State,
		"message":      "Email verified successfully!",
		"access_token": result.Session.Token,
		"user":         newUserResponse(result.User),
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Login(c.Request.Context(), LoginRequest{
		Email:    req.Email,
		Password: req.Password,
		MFACode:  req.MFACode,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		status, body := h.errorResponse(c, err)
		body["state"] = rejectedState(err)
		c.JSON(status, body)
		return
	}

	if result.State == StateAwaitingMFACode {
		c.JSON(http.StatusOK, gin.H{
			"state":        result.State,
			"mfa_required": true,
			"message":      "Login code sent to your email",
		})
		return
	}

	h.setSessionCookie(c, result.Session)
	c.JSON(http.StatusOK, gin.H{
		"state":        result.State,
		"message":      "Login successful",
		"access_token": result.Session.Token,
		"user":         newUserResponse(result.User),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	h.clearCookie(c, h.config.Auth.CookieName)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (h *Handler) Profile(c *gin.Context) {
	userID, _ := UserID(c)
	user, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := newUserResponse(user)
	if h.counter != nil {
		count, err := h.counter.CountByUser(c.Request.Context(), userID)
		if err != nil {
			h.fail(c, err)
			return
		}
		resp.CalculationsCount = &count
	}
	c.JSON(http.StatusOK, gin.H{"user": resp})
}

func (h *Handler) SetMFA(c *gin.Context) {
	var req mfaRequest
	if err := c.ShouldBind(&req); err != nil || req.Enabled == nil {
		api.Error(c, http.StatusBadRequest, "enabled is required")
		return
	}

	userID, _ := UserID(c)
	user, err := h.service.SetMFA(c.Request.Context(), userID, *req.Enabled)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mfa_enabled": user.MFAEnabled})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBind(&req); err != nil {
		api.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, _ := UserID(c)
	err := h.service.ChangePassword(c.Request.Context(), userID, ChangePasswordRequest{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// GoogleLogin starts the authorization code flow. The state value rides
// in a short-lived cookie and is checked on the callback.
func (h *Handler) GoogleLogin(c *gin.Context) {
	if h.config.OAuth.Google.ClientID == "" {
		h.log.Warn("google sign-in requested but no client id is configured")
		h.redirectFrontend(c, api.FrontendOAuthFailure)
		return
	}

	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, int(oauthStateMaxAge.Seconds()), "/", "", h.config.Auth.CookieSecure, true)
	c.Redirect(http.StatusTemporaryRedirect, h.provider.AuthCodeURL(state))
}

func (h *Handler) GoogleCallback(c *gin.Context) {
	expected, _ := c.Cookie(oauthStateCookie)
	h.clearCookie(c, oauthStateCookie)

	state := c.Query("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		h.log.Warn("google callback rejected", zap.String("reason", "state mismatch"))
		h.redirectFrontend(c, api.FrontendOAuthFailure)
		return
	}
	if providerErr := c.Query("error"); providerErr != "" {
		h.log.Info("google sign-in cancelled", zap.String("error", providerErr))
		h.redirectFrontend(c, api.FrontendOAuthFailure)
		return
	}

	identity, err := h.provider.Identify(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.log.Warn("google identity lookup failed", zap.Error(err))
		h.redirectFrontend(c, api.FrontendOAuthFailure)
		return
	}

	result, err := h.service.ResolveIdentity(c.Request.Context(), *identity)
	if err != nil {
		h.log.Warn("google identity could not be resolved", zap.Error(err))
		h.redirectFrontend(c, api.FrontendOAuthFailure)
		return
	}

	h.setSessionCookie(c, result.Session)
	h.redirectFrontend(c, api.FrontendOAuthSuccess)
}

func (h *Handler) redirectFrontend(c *gin.Context, path string) {
	c.Redirect(http.StatusFound, strings.TrimRight(h.config.Server.FrontendURL, "/")+path)
}

// The frontend reads the token from script, so the cookie is not HttpOnly.
func (h *Handler) setSessionCookie(c *gin.Context, session *Session) {
	maxAge := int(session.ExpiresAt.Sub(h.service.now()).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.Auth.CookieName, session.Token, maxAge, "/", "", h.config.Auth.CookieSecure, false)
}

func (h *Handler) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", h.config.Auth.CookieSecure, false)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, body := h.errorResponse(c, err)
	c.JSON(status, body)
}

func (h *Handler) errorResponse(c *gin.Context, err error) (int, gin.H) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, gin.H{"error": ve.Message}
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidCode):
		return http.StatusUnauthorized, gin.H{"error": err.Error()}
	case errors.Is(err, ErrEmailNotVerified):
		return http.StatusForbidden, gin.H{
			"error":                 ErrEmailNotVerified.Error(),
			"verification_required": true,
		}
	case errors.Is(err, ErrUserExists), errors.Is(err, ErrIdentityLinked):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.Is(err, ErrTooManyAttempts):
		return http.StatusTooManyRequests, gin.H{"error": ErrTooManyAttempts.Error()}
	case errors.Is(err, ErrDeliveryFailed):
		return http.StatusServiceUnavailable, gin.H{"error": ErrDeliveryFailed.Error()}
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, gin.H{"error": "User not found"}
	case errors.Is(err, ErrProviderFailure):
		return http.StatusBadGateway, gin.H{"error": ErrProviderFailure.Error()}
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		return http.StatusInternalServerError, gin.H{"error": "internal error, try again"}
	}
}
