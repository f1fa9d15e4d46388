package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/you/bokohub/domain"
	"github.com/you/bokohub/internal/http/handlers"
	"github.com/you/bokohub/internal/http/middleware"
	"github.com/you/bokohub/internal/infrastructure/auth"
	"github.com/you/bokohub/internal/infrastructure/database"
	"github.com/you/bokohub/internal/infrastructure/repositories"
	"github.com/you/bokohub/internal/mocks"
	"github.com/you/bokohub/internal/services"
)

type testApp struct {
	server *httptest.Server
	client *http.Client
	audit  *mocks.MockAuditLogger
	broker *mocks.MockSecondFactorBroker
}

func newTestApp(t *testing.T, withSecondFactor bool) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := database.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	casbinSvc, err := auth.NewMemoryCasbinService()
	require.NoError(t, err)
	_, err = casbinSvc.SeedDefaults()
	require.NoError(t, err)

	logger := zap.NewNop()
	auditLog := mocks.NewMockAuditLogger()
	sessions := repositories.NewSessionStore(rdb)
	captcha := services.NewCaptchaService(5)

	app := &testApp{audit: auditLog}
	var broker domain.SecondFactorBroker
	if withSecondFactor {
		app.broker = mocks.NewMockSecondFactorBroker()
		broker = app.broker
	}

	users := repositories.NewUserRepository(db)
	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)
	authSvc := services.NewAuthService(
		users,
		passwords,
		sessions,
		captcha,
		broker,
		auditLog,
		logger,
		services.AuthConfig{ChallengeTTL: 5 * time.Minute},
	)
	adminSvc := services.NewAdminService(repositories.NewAdminRepository(db), users, passwords, sessions, auditLog, logger)
	_, err = adminSvc.EnsureDefault(context.Background(), "root", "rootpass")
	require.NoError(t, err)
	fileSvc := services.NewFileService(repositories.NewFileRepository(db), mocks.NewMockBlobStore(), &mocks.MockVirusScanner{}, auditLog, logger, services.FileConfig{})

	router := BuildRouter(
		Handlers{
			Auth:     handlers.NewAuthHandlers(authSvc, captcha, logger, true),
			Notes:    handlers.NewNoteHandlers(services.NewNoteService(repositories.NewNoteRepository(db)), logger),
			Files:    handlers.NewFileHandlers(fileSvc, logger, 0),
			CodeScan: handlers.NewCodeScanHandlers(services.NewCodeScanService(&mocks.MockCodeAnalyzer{}), logger),
			Admin:    handlers.NewAdminHandlers(adminSvc, logger),
		},
		Middleware{
			Session: middleware.NewSessionMW(sessions, middleware.SessionConfig{TTL: time.Hour}, logger),
			Casbin:  middleware.NewCasbinMW(services.NewPolicyService(casbinSvc.E), logger),
		},
		logger,
	)

	app.server = httptest.NewServer(router)
	t.Cleanup(app.server.Close)

	app.client = newJarClient(t)
	return app
}

func newJarClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

// browser returns a second client against the same server with its own cookies
func (a *testApp) browser(t *testing.T) *testApp {
	t.Helper()
	return &testApp{server: a.server, client: newJarClient(t), audit: a.audit, broker: a.broker}
}

func (a *testApp) do(t *testing.T, method, path string, form url.Values) (int, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	var err error
	if form != nil {
		req, err = http.NewRequestWithContext(context.Background(), method, a.server.URL+path, strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, err = http.NewRequestWithContext(context.Background(), method, a.server.URL+path, nil)
		require.NoError(t, err)
	}

	resp, err := a.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func (a *testApp) sessionToken(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(a.server.URL)
	require.NoError(t, err)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == "bokohub_session" {
			return c.Value
		}
	}
	return ""
}

func (a *testApp) register(t *testing.T, username, password string) {
	t.Helper()
	status, body := a.do(t, http.MethodGet, "/api/captcha", nil)
	require.Equal(t, http.StatusOK, status)
	captcha, _ := body["captcha"].(string)
	require.NotEmpty(t, captcha)

	status, body = a.do(t, http.MethodPost, "/api/register", url.Values{
		"username": {username},
		"password": {password},
		"captcha":  {strings.ToLower(captcha)},
	})
	require.Equal(t, http.StatusCreated, status, body)
}

func TestLoginFlow_WithoutSecondFactor(t *testing.T) {
	app := newTestApp(t, false)
	app.register(t, "alice", "Passw0rd!")

	status, body := app.do(t, http.MethodPost, "/api/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["message"])

	status, body = app.do(t, http.MethodPost, "/api/login", url.Values{"username": {"nobody"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["message"])

	status, _ = app.do(t, http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	preLogin := app.sessionToken(t)
	status, body = app.do(t, http.MethodPost, "/api/login", url.Values{"username": {"alice"}, "password": {"Passw0rd!"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "alice", body["user"].(map[string]interface{})["username"])
	assert.NotEqual(t, preLogin, app.sessionToken(t))

	status, body = app.do(t, http.MethodGet, "/api/auth/status", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["authenticated"])

	status, _ = app.do(t, http.MethodPost, "/api/notes/create", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = app.do(t, http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, _ = app.do(t, http.MethodGet, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = app.do(t, http.MethodGet, "/api/auth/status", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["authenticated"])

	status, _ = app.do(t, http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginFlow_WithSecondFactor(t *testing.T) {
	app := newTestApp(t, true)
	app.register(t, "alice", "Passw0rd!")

	status, body := app.do(t, http.MethodPost, "/api/login", url.Values{"username": {"alice"}, "password": {"Passw0rd!"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, false, body["authenticated"])

	redirect, err := url.Parse(body["redirect_url"].(string))
	require.NoError(t, err)
	state := redirect.Query().Get("state")
	require.NotEmpty(t, state)

	_, body = app.do(t, http.MethodGet, "/api/auth/status", nil)
	assert.Equal(t, false, body["authenticated"])
	assert.Equal(t, string(domain.StatePendingSecondFactor), body["state"])

	status, _ = app.do(t, http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = app.do(t, http.MethodGet, "/api/duo-callback?state=not-the-state&duo_code=good-code", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["message"])
	assert.NotEmpty(t, app.audit.Find(domain.SecondFactorStateMismatch))
	assert.Equal(t, 0, app.broker.CompleteCalls)

	pending := app.sessionToken(t)
	status, body = app.do(t, http.MethodGet, "/api/duo-callback?state="+state+"&duo_code=good-code", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["authenticated"])
	assert.NotEqual(t, pending, app.sessionToken(t))

	status, _ = app.do(t, http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusOK, status)

	// Replaying the callback cannot re-authenticate anything.
	status, _ = app.do(t, http.MethodGet, "/api/2fa/callback?state="+state+"&code=good-code", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminFlow(t *testing.T) {
	app := newTestApp(t, false)
	app.register(t, "alice", "Passw0rd!")
	status, _ := app.do(t, http.MethodPost, "/api/login", url.Values{"username": {"alice"}, "password": {"Passw0rd!"}})
	require.Equal(t, http.StatusOK, status)

	status, _ = app.do(t, http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, status, "a user login is not an admin login")

	admin := app.browser(t)
	status, body := admin.do(t, http.MethodGet, "/api/admin-check", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["logged_in"])

	status, _ = admin.do(t, http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = admin.do(t, http.MethodPost, "/api/admin/login", url.Values{"username": {"root"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, body = admin.do(t, http.MethodPost, "/api/admin/login", url.Values{"username": {"root"}, "password": {"rootpass"}})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["is_default_admin"])
	assert.NotEmpty(t, app.audit.Find(domain.AdminLoginEvent))

	status, body = admin.do(t, http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusOK, status)
	users := body["users"].([]interface{})
	require.Len(t, users, 1)
	alice := users[0].(map[string]interface{})
	assert.Equal(t, "alice", alice["username"])
	aliceID := uint(alice["id"].(float64))

	status, _ = admin.do(t, http.MethodPost, "/api/admin/users/add", url.Values{"username": {"bob"}, "password": {"bobpass"}})
	assert.Equal(t, http.StatusCreated, status)

	status, body = admin.do(t, http.MethodPost, "/api/admin/add", url.Values{"username": {"helper"}, "password": {"helperpass"}})
	assert.Equal(t, http.StatusCreated, status)
	assert.Len(t, body["admins"], 2)

	status, _ = admin.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", aliceID), nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = app.do(t, http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusUnauthorized, status, "deactivation revokes live sessions")

	status, _ = app.do(t, http.MethodPost, "/api/login", url.Values{"username": {"alice"}, "password": {"Passw0rd!"}})
	assert.Equal(t, http.StatusUnauthorized, status)

	bob := app.browser(t)
	status, _ = bob.do(t, http.MethodPost, "/api/login", url.Values{"username": {"bob"}, "password": {"bobpass"}})
	assert.Equal(t, http.StatusOK, status)

	status, body = admin.do(t, http.MethodPost, "/api/admin/logout", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, _ = admin.do(t, http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
