package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPassword is used for every account created by the suite
const TestPassword = "E2e-Passw0rd!"

// Response is a decoded JSON reply
type Response struct {
	StatusCode int
	Body       map[string]interface{}
}

// DoJSON sends body as JSON and decodes the JSON reply
func DoJSON(t *testing.T, client *http.Client, method, url string, body interface{}) *Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := &Response{StatusCode: resp.StatusCode, Body: map[string]interface{}{}}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.Body), string(raw))
	}
	return out
}

// RegisterUser solves the CAPTCHA for client's session and registers username
func (s *TestSuite) RegisterUser(t *testing.T, client *http.Client, username string) {
	t.Helper()

	captcha := DoJSON(t, client, http.MethodGet, s.Server.URL+"/api/captcha", nil)
	require.Equal(t, http.StatusOK, captcha.StatusCode)
	answer, ok := captcha.Body["captcha"].(string)
	require.True(t, ok, "captcha echo must be enabled for e2e")

	resp := DoJSON(t, client, http.MethodPost, s.Server.URL+"/api/register", map[string]string{
		"username": username,
		"password": TestPassword,
		"captcha":  answer,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Body)
}

// Login logs client in and returns the decoded reply
func (s *TestSuite) Login(t *testing.T, client *http.Client, username, password string) *Response {
	t.Helper()
	return DoJSON(t, client, http.MethodPost, s.Server.URL+"/api/login", map[string]string{
		"username": username,
		"password": password,
	})
}

// SessionToken returns the session cookie value client currently holds
func (s *TestSuite) SessionToken(t *testing.T, client *http.Client) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.Server.URL+"/api/", nil)
	require.NoError(t, err)
	for _, c := range client.Jar.Cookies(req.URL) {
		if c.Name == s.Container.Config.CookieName {
			return c.Value
		}
	}
	return ""
}
