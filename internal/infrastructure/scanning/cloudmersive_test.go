package scanning

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/bokohub/domain"
)

func TestNewCloudmersiveScanner(t *testing.T) {
	_, err := NewCloudmersiveScanner("", "", 0)
	assert.Error(t, err)

	s, err := NewCloudmersiveScanner("", "key", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultCloudmersiveURL, s.baseURL)
}

func TestCloudmersiveScanner_Scan(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		expectedClean bool
		threats       []string
		expectedError error
	}{
		{name: "clean", status: http.StatusOK, body: `{"CleanResult":true,"FoundViruses":null}`, expectedClean: true},
		{name: "infected", status: http.StatusOK, body: `{"CleanResult":false,"FoundViruses":[{"FileName":"a.pdf","VirusName":"EICAR-Test"}]}`, threats: []string{"EICAR-Test"}},
		{name: "bad key", status: http.StatusUnauthorized, body: `{}`, expectedError: domain.ErrScannerUnavailable},
		{name: "garbage", status: http.StatusOK, body: `<html>`, expectedError: domain.ErrScannerUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/virus/scan/file", r.URL.Path)
				assert.Equal(t, "secret-key", r.Header.Get("Apikey"))
				file, header, err := r.FormFile("inputFile")
				require.NoError(t, err)
				data, _ := io.ReadAll(file)
				assert.Equal(t, "a.pdf", header.Filename)
				assert.Equal(t, "payload", string(data))

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			s, err := NewCloudmersiveScanner(server.URL, "secret-key", time.Second)
			require.NoError(t, err)

			verdict, err := s.Scan(context.Background(), "a.pdf", strings.NewReader("payload"))
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedClean, verdict.Clean)
			assert.Equal(t, tt.threats, verdict.Threats)
		})
	}
}

func TestCloudmersiveScanner_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	s, err := NewCloudmersiveScanner(url, "key", time.Second)
	require.NoError(t, err)

	_, err = s.Scan(context.Background(), "a.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrScannerUnavailable)
}
