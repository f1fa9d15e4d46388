package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
	"github.com/you/bokohub/internal/http/middleware"
	"github.com/you/bokohub/internal/mocks"
)

var (
	rootAdmin   = &domain.AdminAccount{ID: 1, Username: "root", IsDefault: true}
	helperAdmin = &domain.AdminAccount{ID: 2, Username: "helper"}
)

func newAdminRouter(adminSvc domain.AdminService, session *domain.SessionRecord) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAdminHandlers(adminSvc, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetSession(c, session)
		c.Next()
	})
	r.GET("/api/admin-check", h.Check)
	r.POST("/api/admin/login", h.Login)
	r.POST("/api/admin/logout", h.Logout)
	r.GET("/api/admin/users", h.Users)
	r.POST("/api/admin/users/add", h.AddUser)
	r.DELETE("/api/admin/users/:id", h.DeleteUser)
	r.POST("/api/admin/users/reset-password", h.ResetPassword)
	r.POST("/api/admin/add", h.AddAdmin)
	r.POST("/api/admin/remove/:id", h.RemoveAdmin)
	return r
}

func formRequest(method, path string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// loggedInAdminService answers Current with admin and lists root and helper
func loggedInAdminService(admin *domain.AdminAccount) *mocks.MockAdminService {
	svc := mocks.NewMockAdminService()
	svc.CurrentFunc = func(ctx context.Context, session *domain.SessionRecord) (*domain.AdminAccount, error) {
		return admin, nil
	}
	svc.ListAdminsFunc = func(ctx context.Context) ([]domain.AdminAccount, error) {
		return []domain.AdminAccount{*rootAdmin, *helperAdmin}, nil
	}
	return svc
}

func TestAdminHandlers_Check(t *testing.T) {
	t.Run("not logged in", func(t *testing.T) {
		r := newAdminRouter(mocks.NewMockAdminService(), freshSession())

		rec, body := serve(r, httptest.NewRequest(http.MethodGet, "/api/admin-check", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["logged_in"])
		assert.NotContains(t, body, "admins")
	})

	t.Run("logged in as default admin", func(t *testing.T) {
		r := newAdminRouter(loggedInAdminService(rootAdmin), freshSession())

		rec, body := serve(r, httptest.NewRequest(http.MethodGet, "/api/admin-check", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["logged_in"])
		assert.Equal(t, true, body["is_default_admin"])
		assert.Equal(t, "root", body["admin_username"])

		admins := body["admins"].([]interface{})
		require.Len(t, admins, 2)
		first := admins[0].([]interface{})
		assert.Equal(t, float64(1), first[0])
		assert.Equal(t, "root", first[1])
		assert.Equal(t, true, first[2])
	})

	t.Run("lookup failure", func(t *testing.T) {
		svc := mocks.NewMockAdminService()
		svc.CurrentFunc = func(ctx context.Context, session *domain.SessionRecord) (*domain.AdminAccount, error) {
			return nil, errors.New("db down")
		}
		r := newAdminRouter(svc, freshSession())

		rec, body := serve(r, httptest.NewRequest(http.MethodGet, "/api/admin-check", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, false, body["logged_in"])
	})
}

func TestAdminHandlers_Login(t *testing.T) {
	tests := []struct {
		name           string
		form           url.Values
		loginErr       error
		expectedStatus int
		check          func(t *testing.T, body map[string]interface{})
	}{
		{
			name:           "valid credentials",
			form:           url.Values{"username": {"root"}, "password": {"rootpass"}},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, true, body["success"])
				assert.Equal(t, true, body["is_default_admin"])
				assert.Len(t, body["admins"], 2)
			},
		},
		{
			name:           "wrong password",
			form:           url.Values{"username": {"root"}, "password": {"nope"}},
			loginErr:       domain.ErrInvalidCredentials,
			expectedStatus: http.StatusUnauthorized,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, "Invalid credentials", body["message"])
			},
		},
		{
			name:           "missing fields",
			form:           url.Values{},
			loginErr:       domain.ErrMissingCredentials,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := loggedInAdminService(rootAdmin)
			var gotUser, gotPass string
			svc.LoginFunc = func(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.AdminAccount, error) {
				gotUser, gotPass = username, password
				if tt.loginErr != nil {
					return nil, tt.loginErr
				}
				session.AdminLogin(rootAdmin)
				return rootAdmin, nil
			}
			session := freshSession()
			r := newAdminRouter(svc, session)

			rec, body := serve(r, formRequest(http.MethodPost, "/api/admin/login", tt.form))
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.form.Get("username"), gotUser)
			assert.Equal(t, tt.form.Get("password"), gotPass)
			assert.Equal(t, tt.loginErr == nil, session.IsAdmin())
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestAdminHandlers_Logout(t *testing.T) {
	session := freshSession()
	session.Authenticate(&domain.UserAccount{ID: 5, Username: "alice"})
	session.AdminLogin(rootAdmin)
	r := newAdminRouter(mocks.NewMockAdminService(), session)

	rec, body := serve(r, httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.False(t, session.IsAdmin())
	assert.Equal(t, uint(5), session.AuthenticatedUserID)
}

func TestAdminHandlers_Users(t *testing.T) {
	t.Run("lists users", func(t *testing.T) {
		svc := loggedInAdminService(rootAdmin)
		svc.ListUsersFunc = func(ctx context.Context) ([]domain.UserAccount, error) {
			return []domain.UserAccount{{ID: 3, Username: "alice", PasswordHash: "secret"}}, nil
		}
		r := newAdminRouter(svc, freshSession())

		rec, body := serve(r, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		users := body["users"].([]interface{})
		require.Len(t, users, 1)
		user := users[0].(map[string]interface{})
		assert.Equal(t, "alice", user["username"])
		assert.NotContains(t, user, "password_hash")
	})

	t.Run("requires an admin", func(t *testing.T) {
		svc := mocks.NewMockAdminService()
		svc.ListUsersFunc = func(ctx context.Context) ([]domain.UserAccount, error) {
			t.Fatal("users must not be listed without an admin")
			return nil, nil
		}
		r := newAdminRouter(svc, freshSession())

		rec, body := serve(r, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, false, body["success"])
	})
}

func TestAdminHandlers_AddUser(t *testing.T) {
	tests := []struct {
		name           string
		addErr         error
		expectedStatus int
	}{
		{name: "created", expectedStatus: http.StatusCreated},
		{name: "taken", addErr: domain.ErrUserAlreadyExists, expectedStatus: http.StatusConflict},
		{name: "missing password", addErr: domain.ErrMissingCredentials, expectedStatus: http.StatusBadRequest},
		{name: "not an admin", addErr: domain.ErrForbidden, expectedStatus: http.StatusUnauthorized},
		{name: "storage failure", addErr: errors.New("db down"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewMockAdminService()
			svc.AddUserFunc = func(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.UserAccount, error) {
				if tt.addErr != nil {
					return nil, tt.addErr
				}
				return &domain.UserAccount{ID: 8, Username: username}, nil
			}
			r := newAdminRouter(svc, freshSession())

			rec, body := serve(r, formRequest(http.MethodPost, "/api/admin/users/add", url.Values{"username": {"bob"}, "password": {"pw"}}))
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.addErr == nil, body["success"])
			if tt.addErr == nil {
				assert.Contains(t, body["message"], "bob")
			}
		})
	}
}

func TestAdminHandlers_DeleteUser(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		deactivateErr  error
		expectedStatus int
		expectedID     uint
	}{
		{name: "deactivated", path: "/api/admin/users/7", expectedStatus: http.StatusOK, expectedID: 7},
		{name: "unknown user", path: "/api/admin/users/99", deactivateErr: domain.ErrUserNotFound, expectedStatus: http.StatusNotFound, expectedID: 99},
		{name: "bad id", path: "/api/admin/users/abc", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID uint
			svc := mocks.NewMockAdminService()
			svc.DeactivateUserFunc = func(ctx context.Context, session *domain.SessionRecord, userID uint) error {
				gotID = userID
				return tt.deactivateErr
			}
			r := newAdminRouter(svc, freshSession())

			rec, _ := serve(r, httptest.NewRequest(http.MethodDelete, tt.path, nil))
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedID, gotID)
		})
	}
}

func TestAdminHandlers_ResetPassword(t *testing.T) {
	var gotID uint
	var gotPassword string
	svc := mocks.NewMockAdminService()
	svc.ResetPasswordFunc = func(ctx context.Context, session *domain.SessionRecord, userID uint, newPassword string) error {
		gotID, gotPassword = userID, newPassword
		return nil
	}
	r := newAdminRouter(svc, freshSession())

	rec, body := serve(r, formRequest(http.MethodPost, "/api/admin/users/reset-password", url.Values{"user_id": {"4"}, "new_password": {"fresh"}}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, uint(4), gotID)
	assert.Equal(t, "fresh", gotPassword)

	rec, _ = serve(r, formRequest(http.MethodPost, "/api/admin/users/reset-password", url.Values{"new_password": {"fresh"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "a user id is required")
}

func TestAdminHandlers_ManageAdmins(t *testing.T) {
	t.Run("default admin adds an admin", func(t *testing.T) {
		svc := loggedInAdminService(rootAdmin)
		svc.AddAdminFunc = func(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.AdminAccount, error) {
			return &domain.AdminAccount{ID: 3, Username: username}, nil
		}
		r := newAdminRouter(svc, freshSession())

		rec, body := serve(r, formRequest(http.MethodPost, "/api/admin/add", url.Values{"username": {"third"}, "password": {"pw"}}))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Len(t, body["admins"], 2)
	})

	t.Run("other admins may not add", func(t *testing.T) {
		svc := loggedInAdminService(helperAdmin)
		svc.AddAdminFunc = func(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.AdminAccount, error) {
			return nil, domain.ErrNotDefaultAdmin
		}
		r := newAdminRouter(svc, freshSession())

		rec, body := serve(r, formRequest(http.MethodPost, "/api/admin/add", url.Values{"username": {"third"}, "password": {"pw"}}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, false, body["success"])
	})

	t.Run("default admin is protected", func(t *testing.T) {
		svc := loggedInAdminService(rootAdmin)
		svc.RemoveAdminFunc = func(ctx context.Context, session *domain.SessionRecord, adminID uint) error {
			return domain.ErrDefaultAdminProtected
		}
		r := newAdminRouter(svc, freshSession())

		rec, body := serve(r, httptest.NewRequest(http.MethodPost, "/api/admin/remove/1", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "The default admin cannot be removed", body["message"])
	})

	t.Run("removes an admin", func(t *testing.T) {
		var removed uint
		svc := loggedInAdminService(rootAdmin)
		svc.RemoveAdminFunc = func(ctx context.Context, session *domain.SessionRecord, adminID uint) error {
			removed = adminID
			return nil
		}
		r := newAdminRouter(svc, freshSession())

		rec, body := serve(r, httptest.NewRequest(http.MethodPost, "/api/admin/remove/2", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, uint(2), removed)
	})
}
