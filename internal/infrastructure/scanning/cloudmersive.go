package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/you/bokohub/domain"
)

const defaultCloudmersiveURL = "https://api.cloudmersive.com"

// CloudmersiveScanner calls the Cloudmersive virus scan API
type CloudmersiveScanner struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCloudmersiveScanner creates a scanner. An empty baseURL targets the
// public API.
func NewCloudmersiveScanner(baseURL, apiKey string, timeout time.Duration) (*CloudmersiveScanner, error) {
	if apiKey == "" {
		return nil, errors.New("cloudmersive: api key is required")
	}
	if baseURL == "" {
		baseURL = defaultCloudmersiveURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CloudmersiveScanner{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type scanResponse struct {
	CleanResult  bool `json:"CleanResult"`
	FoundViruses []struct {
		FileName  string `json:"FileName"`
		VirusName string `json:"VirusName"`
	} `json:"FoundViruses"`
}

// Scan uploads the content and reports the verdict. Any failure to get a
// verdict is ErrScannerUnavailable.
func (s *CloudmersiveScanner) Scan(ctx context.Context, filename string, r io.Reader) (*domain.ScanVerdict, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("inputFile", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/virus/scan/file", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Apikey", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrScannerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrScannerUnavailable, resp.StatusCode)
	}

	var out scanResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrScannerUnavailable, err)
	}

	verdict := &domain.ScanVerdict{Clean: out.CleanResult}
	for _, v := range out.FoundViruses {
		verdict.Threats = append(verdict.Threats, v.VirusName)
	}
	if len(verdict.Threats) > 0 {
		verdict.Clean = false
	}
	return verdict, nil
}

var _ domain.VirusScanner = (*CloudmersiveScanner)(nil)
