package secondfactor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/you/bokohub/domain"
)

const (
	duoClientIDLength     = 20
	duoClientSecretLength = 40
	duoAssertionTTL       = 5 * time.Minute
	duoAssertionType      = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	duoHealthCheckPath = "/oauth/v1/health_check"
	duoAuthorizePath   = "/oauth/v1/authorize"
	duoTokenPath       = "/oauth/v1/token"
)

// DuoConfig holds Duo Universal Prompt credentials
type DuoConfig struct {
	ClientID     string
	ClientSecret string
	APIHost      string
	RedirectURI  string
	// BaseURL overrides https://<APIHost>; used against test servers.
	BaseURL string
	Timeout time.Duration
}

// DuoBroker implements domain.SecondFactorBroker against Duo's OIDC endpoints
type DuoBroker struct {
	cfg     DuoConfig
	baseURL string
	client  *http.Client
	oauth   *oauth2.Config
	now     func() time.Time
}

// NewDuoBroker validates the credentials and builds the broker
func NewDuoBroker(cfg DuoConfig) (*DuoBroker, error) {
	if len(cfg.ClientID) != duoClientIDLength {
		return nil, fmt.Errorf("duo: client id must be %d characters", duoClientIDLength)
	}
	if len(cfg.ClientSecret) != duoClientSecretLength {
		return nil, fmt.Errorf("duo: client secret must be %d characters", duoClientSecretLength)
	}
	if cfg.APIHost == "" && cfg.BaseURL == "" {
		return nil, errors.New("duo: api host is required")
	}
	if _, err := url.ParseRequestURI(cfg.RedirectURI); err != nil {
		return nil, fmt.Errorf("duo: invalid redirect uri: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	base := cfg.BaseURL
	if base == "" {
		base = "https://" + cfg.APIHost
	}

	base = strings.TrimRight(base, "/")
	return &DuoBroker{
		cfg:     cfg,
		baseURL: base,
		client:  &http.Client{Timeout: cfg.Timeout},
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + duoAuthorizePath,
				TokenURL:  base + duoTokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		now: time.Now,
	}, nil
}

// Name implements domain.SecondFactorBroker
func (d *DuoBroker) Name() string { return "duo" }

// HealthCheck implements domain.SecondFactorBroker
func (d *DuoBroker) HealthCheck(ctx context.Context) error {
	endpoint := d.baseURL + duoHealthCheckPath
	assertion, err := d.clientAssertion(endpoint)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("client_id", d.cfg.ClientID)
	form.Set("client_assertion", assertion)

	var body struct {
		Stat    string `json:"stat"`
		Message string `json:"message"`
	}
	status, err := d.postForm(ctx, endpoint, form, &body)
	if err != nil {
		return err
	}
	if status != http.StatusOK || body.Stat != "OK" {
		return fmt.Errorf("%w: health check returned %d %s %s", domain.ErrBrokerUnavailable, status, body.Stat, body.Message)
	}
	return nil
}

// BeginChallenge implements domain.SecondFactorBroker
func (d *DuoBroker) BeginChallenge(ctx context.Context, user *domain.UserAccount, stateNonce string) (string, error) {
	if len(stateNonce) < 16 || len(stateNonce) > 1024 {
		return "", errors.New("duo: state must be between 16 and 1024 characters")
	}

	now := d.now()
	claims := jwt.MapClaims{
		"scope":                  "openid",
		"redirect_uri":           d.cfg.RedirectURI,
		"client_id":              d.cfg.ClientID,
		"iss":                    d.cfg.ClientID,
		"aud":                    d.baseURL,
		"exp":                    now.Add(duoAssertionTTL).Unix(),
		"state":                  stateNonce,
		"response_type":          "code",
		"duo_uname":              user.Username,
		"use_duo_code_attribute": true,
	}
	request, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(d.cfg.ClientSecret))
	if err != nil {
		return "", fmt.Errorf("duo: sign request: %w", err)
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", d.cfg.ClientID)
	q.Set("request", request)
	return d.oauth.Endpoint.AuthURL + "?" + q.Encode(), nil
}

type duoAuthResult struct {
	Result    string `json:"result"`
	Status    string `json:"status"`
	StatusMsg string `json:"status_msg"`
}

type duoIDTokenClaims struct {
	PreferredUsername string        `json:"preferred_username"`
	AuthResult        duoAuthResult `json:"auth_result"`
	jwt.RegisteredClaims
}

// CompleteChallenge implements domain.SecondFactorBroker. It exchanges the
// authorization code and validates the returned id_token for user.
func (d *DuoBroker) CompleteChallenge(ctx context.Context, code string, user *domain.UserAccount) error {
	if code == "" {
		return domain.ErrSecondFactorDenied
	}

	endpoint := d.oauth.Endpoint.TokenURL
	assertion, err := d.clientAssertion(endpoint)
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.client)
	token, err := d.oauth.Exchange(ctx, code,
		oauth2.SetAuthURLParam("client_assertion_type", duoAssertionType),
		oauth2.SetAuthURLParam("client_assertion", assertion),
	)
	if err != nil {
		return classifyExchangeError(err)
	}
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return fmt.Errorf("%w: token response without id_token", domain.ErrSecondFactorDenied)
	}

	claims := &duoIDTokenClaims{}
	_, err = jwt.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(d.cfg.ClientSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithAudience(d.cfg.ClientID),
		jwt.WithIssuer(endpoint),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(d.now),
		jwt.WithLeeway(time.Minute),
	)
	if err != nil {
		return fmt.Errorf("%w: id_token: %v", domain.ErrSecondFactorDenied, err)
	}
	if claims.PreferredUsername != user.Username {
		return fmt.Errorf("%w: id_token issued for another user", domain.ErrSecondFactorDenied)
	}
	if claims.AuthResult.Status != "allow" {
		return fmt.Errorf("%w: auth result %q", domain.ErrSecondFactorDenied, claims.AuthResult.Status)
	}
	return nil
}

// classifyExchangeError treats 5xx and transport failures as an outage and any
// other refusal from the token endpoint as a denial.
func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < http.StatusInternalServerError {
		return fmt.Errorf("%w: token endpoint: %v", domain.ErrSecondFactorDenied, err)
	}
	return fmt.Errorf("%w: token endpoint: %v", domain.ErrBrokerUnavailable, err)
}

func (d *DuoBroker) clientAssertion(audience string) (string, error) {
	jti := make([]byte, 18)
	if _, err := rand.Read(jti); err != nil {
		return "", fmt.Errorf("duo: generate jti: %w", err)
	}
	now := d.now()
	claims := jwt.RegisteredClaims{
		Issuer:    d.cfg.ClientID,
		Subject:   d.cfg.ClientID,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(duoAssertionTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        hex.EncodeToString(jti),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(d.cfg.ClientSecret))
	if err != nil {
		return "", fmt.Errorf("duo: sign client assertion: %w", err)
	}
	return signed, nil
}

// postForm returns the HTTP status; transport failures map to ErrBrokerUnavailable.
func (d *DuoBroker) postForm(ctx context.Context, endpoint string, form url.Values, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("duo: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%w: read response: %v", domain.ErrBrokerUnavailable, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil && resp.StatusCode == http.StatusOK {
			return resp.StatusCode, fmt.Errorf("%w: decode response: %v", domain.ErrBrokerUnavailable, err)
		}
	}
	return resp.StatusCode, nil
}
