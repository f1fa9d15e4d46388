package e2e

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE2E_NotesAreScopedToOwner(t *testing.T) {
	suite := SetupTestSuite(t)

	owner := suite.NewClient(t)
	ownerName := suite.Username("owner")
	suite.RegisterUser(t, owner, ownerName)
	require.Equal(t, http.StatusOK, suite.Login(t, owner, ownerName, TestPassword).StatusCode)

	other := suite.NewClient(t)
	otherName := suite.Username("other")
	suite.RegisterUser(t, other, otherName)
	require.Equal(t, http.StatusOK, suite.Login(t, other, otherName, TestPassword).StatusCode)

	created := DoJSON(t, owner, http.MethodPost, suite.Server.URL+"/api/notes/create", map[string]string{
		"title":   "groceries",
		"content": "milk and eggs",
	})
	require.Equal(t, http.StatusOK, created.StatusCode, created.Body)
	note := created.Body["note"].(map[string]interface{})
	id := int(note["id"].(float64))

	search := DoJSON(t, owner, http.MethodGet, suite.Server.URL+"/api/notes/search?q=milk", nil)
	require.Equal(t, http.StatusOK, search.StatusCode)
	assert.Len(t, search.Body["notes"], 1)

	otherList := DoJSON(t, other, http.MethodGet, suite.Server.URL+"/api/notes", nil)
	require.Equal(t, http.StatusOK, otherList.StatusCode)
	assert.Empty(t, otherList.Body["notes"])

	deleteURL := fmt.Sprintf("%s/api/notes/delete/%d", suite.Server.URL, id)
	forbidden := DoJSON(t, other, http.MethodDelete, deleteURL, nil)
	assert.Equal(t, http.StatusForbidden, forbidden.StatusCode)

	deleted := DoJSON(t, owner, http.MethodDelete, deleteURL, nil)
	assert.Equal(t, http.StatusOK, deleted.StatusCode)

	gone := DoJSON(t, owner, http.MethodDelete, deleteURL, nil)
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestE2E_ProtectedRoutesRequireLogin(t *testing.T) {
	suite := SetupTestSuite(t)
	client := suite.NewClient(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/notes"},
		{http.MethodGet, "/api/files"},
		{http.MethodPost, "/api/codescan"},
		{http.MethodDelete, "/api/notes/delete/1"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := DoJSON(t, client, tt.method, suite.Server.URL+tt.path, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestE2E_Health(t *testing.T) {
	suite := SetupTestSuite(t)
	resp := DoJSON(t, suite.NewClient(t), http.MethodGet, suite.Server.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, resp.Body["ok"])
}
