package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

var ErrNotConfigured = errors.New("payment gateway credentials are not configured")

// AccessToken is a bearer token issued by the mobile-money gateway.
type AccessToken struct {
	Token     string    `json:"accessToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MpesaClient exchanges consumer credentials for a Daraja OAuth token and
// reuses it until shortly before it expires.
type MpesaClient struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	HTTPClient     *http.Client

	mu     sync.Mutex
	cached AccessToken
}

func NewMpesaClient(baseURL, key, secret string) *MpesaClient {
	return &MpesaClient{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		ConsumerKey:    key,
		ConsumerSecret: secret,
		HTTPClient:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *MpesaClient) FetchAccessToken(ctx context.Context) (AccessToken, error) {
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return AccessToken{}, ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached.Token != "" && time.Until(c.cached.ExpiresAt) > time.Minute {
		return c.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return AccessToken{}, err
	}
	req.SetBasicAuth(c.ConsumerKey, c.ConsumerSecret)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return AccessToken{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return AccessToken{}, fmt.Errorf("token request: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return AccessToken{}, fmt.Errorf("token response: %w", err)
	}
	if body.AccessToken == "" {
		return AccessToken{}, errors.New("token response: empty access_token")
	}

	secs, err := strconv.Atoi(body.ExpiresIn)
	if err != nil || secs <= 0 {
		secs = 3599
	}
	c.cached = AccessToken{Token: body.AccessToken, ExpiresAt: time.Now().Add(time.Duration(secs) * time.Second)}
	return c.cached, nil
}
