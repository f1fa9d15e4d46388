package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/bokohub/internal/app"
	testconfig "github.com/you/bokohub/internal/tests/config"
)

// TestSuite holds the E2E test infrastructure
type TestSuite struct {
	Container  *app.Container
	Server     *httptest.Server
	TestPrefix string
}

// SetupTestSuite builds the full application against the configured
// postgres and redis and serves it over HTTP
func SetupTestSuite(t *testing.T) *TestSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testconfig.LoadTestConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := app.NewContainer(ctx, cfg, zap.NewNop())
	require.NoError(t, err)

	router, _ := app.NewRouter(c)
	server := httptest.NewServer(router)

	suite := &TestSuite{
		Container:  c,
		Server:     server,
		TestPrefix: fmt.Sprintf("e2e%d", time.Now().UnixNano()),
	}
	t.Cleanup(suite.TearDown(t))
	return suite
}

// TearDown removes rows created by the suite and closes connections
func (s *TestSuite) TearDown(t *testing.T) func() {
	return func() {
		s.Server.Close()
		db := s.Container.DB
		like := s.TestPrefix + "%"
		if err := db.Exec("DELETE FROM notes WHERE user_id IN (SELECT id FROM users WHERE username LIKE ?)", like).Error; err != nil {
			t.Logf("cleanup notes: %v", err)
		}
		if err := db.Exec("DELETE FROM files WHERE user_id IN (SELECT id FROM users WHERE username LIKE ?)", like).Error; err != nil {
			t.Logf("cleanup files: %v", err)
		}
		if err := db.Exec("DELETE FROM users WHERE username LIKE ?", like).Error; err != nil {
			t.Logf("cleanup users: %v", err)
		}
		if err := s.Container.Close(); err != nil {
			t.Logf("close container: %v", err)
		}
	}
}

// NewClient returns an HTTP client with its own cookie jar, i.e. a browser
func (s *TestSuite) NewClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 30 * time.Second}
}

// Username returns a username unique to this suite run
func (s *TestSuite) Username(name string) string {
	return s.TestPrefix + name
}
