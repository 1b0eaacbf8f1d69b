package api

// Health
const (
	Health = "/api/health"
)

// Authentication endpoints
const (
	AuthRegister       = "/api/auth/register"
	AuthVerifyEmail    = "/api/auth/verify-email"
	AuthLogin          = "/api/auth/login"
	AuthLogout         = "/api/auth/logout"
	AuthProfile        = "/api/auth/profile"
	AuthMFA            = "/api/auth/mfa"
	AuthPassword       = "/api/auth/password"
	AuthGoogle         = "/auth/google"
	AuthGoogleCallback = "/auth/google/callback"
)

// Calculator endpoints
const (
	Calculator        = "/api/calculator"
	CalculatorHistory = "/api/calculator/history"
)

// Admin endpoints
const (
	AdminUsers     = "/api/admin/users"
	AdminStats     = "/api/admin/stats"
	AdminUser      = "/api/admin/users/:id"
	AdminUserAdmin = "/api/admin/users/:id/admin"
)

// Frontend redirect targets after the Google flow
const (
	FrontendOAuthSuccess = "/auth/callback"
	FrontendOAuthFailure = "/login?error=oauth_failed"
)

// PublicEndpoints defines endpoints that don't require authentication
var PublicEndpoints = map[string]bool{
	Health:             true,
	AuthRegister:       true,
	AuthVerifyEmail:    true,
	AuthLogin:          true,
	AuthGoogle:         true,
	AuthGoogleCallback: true,
}
