package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elskow/amsterdam-discovery/internal/api"
	"github.com/elskow/amsterdam-discovery/internal/config"
)

type fakeProvider struct {
	identity *Identity
	err      error
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Identify(_ context.Context, code string) (*Identity, error) {
	if p.err != nil {
		return nil, p.err
	}
	if code == "" {
		return nil, ErrProviderFailure
	}
	return p.identity, nil
}

type fixedCounter int64

func (c fixedCounter) CountByUser(context.Context, string) (int64, error) {
	return int64(c), nil
}

type handlerEnv struct {
	*testEnv
	engine   *gin.Engine
	provider *fakeProvider
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := newTestEnv(t)
	appConfig := &config.AppConfig{
		Server: config.ServerConfig{FrontendURL: "http://frontend.test/"},
		Auth:   *newTestConfig(),
		OAuth: config.OAuthConfig{Google: config.GoogleOAuthConfig{
			ClientID: "client-id",
		}},
	}
	provider := &fakeProvider{identity: &Identity{ProviderID: "G1", Email: "g@x.com"}}
	handler := NewHandler(env.svc, provider, fixedCounter(3), appConfig, newTestLogger(t))
	middleware := NewAuthMiddleware(&appConfig.Auth, env.svc.Tokens(), env.repo, newTestLogger(t))

	engine := gin.New()
	engine.POST(api.AuthRegister, handler.Register)
	engine.POST(api.AuthVerifyEmail, handler.VerifyEmail)
	engine.POST(api.AuthLogin, handler.Login)
	engine.GET(api.AuthGoogle, handler.GoogleLogin)
	engine.GET(api.AuthGoogleCallback, handler.GoogleCallback)

	private := engine.Group("", middleware.Authenticate())
	private.POST(api.AuthLogout, handler.Logout)
	private.GET(api.AuthProfile, handler.Profile)
	private.POST(api.AuthMFA, handler.SetMFA)
	private.POST(api.AuthPassword, handler.ChangePassword)
	private.GET(api.AdminStats, middleware.RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	return &handlerEnv{testEnv: env, engine: engine, provider: provider}
}

func (e *handlerEnv) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *handlerEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestHandler_RegisterOptionalAge(t *testing.T) {
	form := func(age string) url.Values {
		return url.Values{
			"email":            {"f@x.com"},
			"password":         {"secret1"},
			"confirm_password": {"secret1"},
			"user_age":         {age},
		}
	}
	jsonBody := func(age any) gin.H {
		return gin.H{"email": "f@x.com", "password": "secret1", "confirm_password": "secret1", "user_age": age}
	}

	tests := []struct {
		name    string
		send    func(e *handlerEnv) *httptest.ResponseRecorder
		status  int
		wantAge *int
	}{
		{name: "blank form field", send: func(e *handlerEnv) *httptest.ResponseRecorder {
			return e.postForm(t, api.AuthRegister, form(""))
		}, status: http.StatusCreated},
		{name: "whitespace form field", send: func(e *handlerEnv) *httptest.ResponseRecorder {
			return e.postForm(t, api.AuthRegister, form("  "))
		}, status: http.StatusCreated},
		{name: "form age", send: func(e *handlerEnv) *httptest.ResponseRecorder {
			return e.postForm(t, api.AuthRegister, form("30"))
		}, status: http.StatusCreated, wantAge: intPtr(30)},
		{name: "form age out of range", send: func(e *handlerEnv) *httptest.ResponseRecorder {
			return e.postForm(t, api.AuthRegister, form("5"))
		}, status: http.StatusBadRequest},
		{name: "form age not a number", send: func(e *handlerEnv) *httptest.ResponseRecorder {
			return e.postForm(t, api.AuthRegister, form("thirty"))
		}, status: http.StatusBadRequest},
		{name: "json null", send: func(e *handlerEnv) *httptest.ResponseRecorder {
			return e.do(t, http.MethodPost, api.AuthRegister, jsonBody(nil), nil)
		}, status: http.StatusCreated},
		{name: "json empty string", send: func(e *handlerEnv) *httptest.ResponseRecorder {
			return e.do(t, http.MethodPost, api.AuthRegister, jsonBody(""), nil)
		}, status: http.StatusCreated},
		{name: "json number", send: func(e *handlerEnv) *httptest.ResponseRecorder {
			return e.do(t, http.MethodPost, api.AuthRegister, jsonBody(42), nil)
		}, status: http.StatusCreated, wantAge: intPtr(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newHandlerEnv(t)
			w := tt.send(env)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusCreated {
				return
			}

			user, err := env.repo.GetUserByEmail(context.Background(), "f@x.com")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAge, user.Age)
		})
	}
}

func TestHandler_RegisterVerifyLogin(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.do(t, http.MethodPost, api.AuthRegister, gin.H{
		"email": "a@x.com", "password": "secret1", "confirm_password": "secret1", "user_age": 30,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, string(RegistrationCodeSent), body["state"])
	assert.Equal(t, "a@x.com", body["email"])
	assert.Nil(t, findCookie(w, "access_token"))

	w = env.do(t, http.MethodPost, api.AuthLogin, gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["verification_required"])

	w = env.do(t, http.MethodPost, api.AuthVerifyEmail, gin.H{
		"email": "a@x.com", "verification_code": env.mailer.lastCode(t, "a@x.com"),
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.NotEmpty(t, body["access_token"])
	cookie := findCookie(w, "access_token")
	require.NotNil(t, cookie)
	assert.Equal(t, body["access_token"], cookie.Value)

	w = env.do(t, http.MethodPost, api.AuthLogin, gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, string(StateAuthenticated), body["state"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(30), user["age"])
}

func TestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, env *handlerEnv)
		path   string
		body   any
		status int
	}{
		{
			name:   "validation",
			path:   api.AuthRegister,
			body:   gin.H{"email": "bad", "password": "secret1", "confirm_password": "secret1"},
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed body",
			path:   api.AuthLogin,
			body:   "not an object",
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid credentials",
			path:   api.AuthLogin,
			body:   gin.H{"email": "nobody@x.com", "password": "secret1"},
			status: http.StatusUnauthorized,
		},
		{
			name:   "invalid code",
			path:   api.AuthVerifyEmail,
			body:   gin.H{"email": "nobody@x.com", "verification_code": "123456"},
			status: http.StatusUnauthorized,
		},
		{
			name: "duplicate registration",
			setup: func(t *testing.T, env *handlerEnv) {
				env.registerVerified(t, "a@x.com", "secret1")
			},
			path:   api.AuthRegister,
			body:   gin.H{"email": "a@x.com", "password": "secret1", "confirm_password": "secret1"},
			status: http.StatusConflict,
		},
		{
			name: "delivery failure",
			setup: func(t *testing.T, env *handlerEnv) {
				env.mailer.err = errors.New("smtp down")
			},
			path:   api.AuthRegister,
			body:   gin.H{"email": "a@x.com", "password": "secret1", "confirm_password": "secret1"},
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newHandlerEnv(t)
			if tt.setup != nil {
				tt.setup(t, env)
			}

			w := env.do(t, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, decodeBody(t, w)["error"])
		})
	}
}

func TestHandler_LoginMFA(t *testing.T) {
	env := newHandlerEnv(t)
	user := env.registerVerified(t, "a@x.com", "secret1")
	env.enableMFA(t, user.ID)

	w := env.do(t, http.MethodPost, api.AuthLogin, gin.H{"email": "a@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["mfa_required"])
	assert.Nil(t, body["access_token"])

	w = env.do(t, http.MethodPost, api.AuthLogin, gin.H{
		"email": "a@x.com", "password": "secret1", "mfa_code": "000000",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(StateAwaitingMFACode), decodeBody(t, w)["state"], "a wrong code can be retried")

	w = env.do(t, http.MethodPost, api.AuthLogin, gin.H{
		"email": "a@x.com", "password": "wrong-pass", "mfa_code": "000000",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(StateRejected), decodeBody(t, w)["state"])

	w = env.do(t, http.MethodPost, api.AuthLogin, gin.H{
		"email": "a@x.com", "password": "secret1", "mfa_code": env.mailer.lastCode(t, "a@x.com"),
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, string(StateAuthenticated), body["state"])
}

func TestHandler_Authenticate(t *testing.T) {
	env := newHandlerEnv(t)
	user := env.registerVerified(t, "a@x.com", "secret1")
	session, err := env.svc.Tokens().Issue(user)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header http.Header
		status int
	}{
		{name: "no token", status: http.StatusUnauthorized},
		{name: "bearer", header: bearer(session.Token), status: http.StatusOK},
		{name: "cookie", header: http.Header{"Cookie": []string{"access_token=" + session.Token}}, status: http.StatusOK},
		{name: "garbage", header: bearer("nope"), status: http.StatusUnauthorized},
		{name: "wrong scheme", header: http.Header{"Authorization": []string{"Basic " + session.Token}}, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, api.AuthProfile, nil, tt.header)
			require.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				profile := decodeBody(t, w)["user"].(map[string]any)
				assert.Equal(t, "a@x.com", profile["email"])
				assert.Equal(t, float64(3), profile["calculations_count"])
			}
		})
	}
}

func TestHandler_RequireAdmin(t *testing.T) {
	env := newHandlerEnv(t)
	user := env.registerVerified(t, "a@x.com", "secret1")
	session, err := env.svc.Tokens().Issue(user)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, api.AdminStats, nil, bearer(session.Token))
	assert.Equal(t, http.StatusForbidden, w.Code)

	stored, err := env.repo.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	stored.IsAdmin = true
	require.NoError(t, env.repo.SaveUser(context.Background(), stored))

	w = env.do(t, http.MethodGet, api.AdminStats, nil, bearer(session.Token))
	assert.Equal(t, http.StatusOK, w.Code)

	ghost, err := env.svc.Tokens().Issue(&User{ID: "deleted-user", Email: "x@x.com"})
	require.NoError(t, err)
	w = env.do(t, http.MethodGet, api.AdminStats, nil, bearer(ghost.Token))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "deleted accounts lose their sessions")
}

func TestHandler_SetMFAAndPassword(t *testing.T) {
	env := newHandlerEnv(t)
	user := env.registerVerified(t, "a@x.com", "secret1")
	session, err := env.svc.Tokens().Issue(user)
	require.NoError(t, err)
	auth := bearer(session.Token)

	w := env.do(t, http.MethodPost, api.AuthMFA, gin.H{}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, api.AuthMFA, gin.H{"enabled": true}, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["mfa_enabled"])

	w = env.do(t, http.MethodPost, api.AuthPassword, gin.H{
		"current_password": "wrong-one", "new_password": "secret2", "confirm_password": "secret2",
	}, auth)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, api.AuthPassword, gin.H{
		"current_password": "secret1", "new_password": "secret2", "confirm_password": "secret2",
	}, auth)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_Logout(t *testing.T) {
	env := newHandlerEnv(t)
	user := env.registerVerified(t, "a@x.com", "secret1")
	session, err := env.svc.Tokens().Issue(user)
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, api.AuthLogout, nil, bearer(session.Token))
	require.Equal(t, http.StatusOK, w.Code)
	cookie := findCookie(w, "access_token")
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestHandler_GoogleFlow(t *testing.T) {
	env := newHandlerEnv(t)

	w := env.do(t, http.MethodGet, api.AuthGoogle, nil, nil)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	stateCookie := findCookie(w, oauthStateCookie)
	require.NotNil(t, stateCookie)
	assert.True(t, stateCookie.HttpOnly)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	assert.Equal(t, stateCookie.Value, state)

	callback := api.AuthGoogleCallback + "?code=abc&state=" + url.QueryEscape(state)
	withState := http.Header{"Cookie": []string{oauthStateCookie + "=" + state}}

	w = env.do(t, http.MethodGet, callback, nil, withState)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://frontend.test"+api.FrontendOAuthSuccess, w.Header().Get("Location"))
	require.NotNil(t, findCookie(w, "access_token"))

	created, err := env.repo.GetUserByGoogleID(context.Background(), "G1")
	require.NoError(t, err)
	assert.True(t, created.EmailVerified)
}

func TestHandler_GoogleCallbackFailures(t *testing.T) {
	failure := "http://frontend.test" + api.FrontendOAuthFailure

	tests := []struct {
		name   string
		query  string
		cookie string
		setup  func(env *handlerEnv)
	}{
		{name: "missing state cookie", query: "?code=abc&state=s1"},
		{name: "state mismatch", query: "?code=abc&state=s1", cookie: "s2"},
		{name: "provider error", query: "?error=access_denied&state=s1", cookie: "s1"},
		{
			name:   "identify fails",
			query:  "?code=abc&state=s1",
			cookie: "s1",
			setup:  func(env *handlerEnv) { env.provider.err = ErrProviderFailure },
		},
		{
			name:   "identity conflicts",
			query:  "?code=abc&state=s1",
			cookie: "s1",
			setup: func(env *handlerEnv) {
				_, err := env.svc.ResolveIdentity(context.Background(), Identity{ProviderID: "G9", Email: "g@x.com"})
				if err != nil {
					panic(err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newHandlerEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}

			var header http.Header
			if tt.cookie != "" {
				header = http.Header{"Cookie": []string{oauthStateCookie + "=" + tt.cookie}}
			}
			w := env.do(t, http.MethodGet, api.AuthGoogleCallback+tt.query, nil, header)
			require.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, failure, w.Header().Get("Location"))
			assert.Nil(t, findCookie(w, "access_token"))
		})
	}
}
