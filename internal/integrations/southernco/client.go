package southernco

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultBaseURL is the vendor API endpoint.
const DefaultBaseURL = "https://customerservice2api.southerncompany.com"

// reauthMargin is how long before JWT expiry the client renews the
// session.
const reauthMargin = 10 * time.Minute

// Client talks to the vendor's customer-service API. It holds the JWT
// from the last login and renews it when EnsureAuth is called near
// expiry.
//
// All methods are thread-safe.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewClient creates a client for one login. baseURL "" selects
// DefaultBaseURL.
func NewClient(baseURL, username, password string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Authenticate logs in and stores the session JWT. Bad credentials
// surface as ErrAuth.
func (c *Client) Authenticate(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("encoding login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: login: %v", ErrConnect, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: login rejected with status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: login status %d", ErrConnect, resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding login response: %w", err)
	}
	if result.Token == "" {
		return fmt.Errorf("%w: login returned no token", ErrAuth)
	}

	expiry, err := tokenExpiry(result.Token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	c.mu.Lock()
	c.token = result.Token
	c.expiry = expiry
	c.mu.Unlock()
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// server vouches for its own token, the client only needs the clock.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing session token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("session token has no expiry")
	}
	return exp.Time, nil
}

// EnsureAuth re-authenticates when the session is missing or near
// expiry.
func (c *Client) EnsureAuth(ctx context.Context) error {
	c.mu.Lock()
	valid := c.token != "" && time.Until(c.expiry) > reauthMargin
	c.mu.Unlock()

	if valid {
		return nil
	}
	return c.Authenticate(ctx)
}

// TokenExpiry returns the current session's expiry, zero when not
// authenticated.
func (c *Client) TokenExpiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry
}

// GetAccounts lists the accounts on the login.
func (c *Client) GetAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.get(ctx, "/api/accounts", &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetMonthData fetches billing-cycle-to-date figures for one account.
func (c *Client) GetMonthData(ctx context.Context, accountNumber string) (*MonthlyUsage, error) {
	var usage MonthlyUsage
	path := "/api/accounts/" + url.PathEscape(accountNumber) + "/month"
	if err := c.get(ctx, path, &usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

// GetHourlyData fetches hourly records for one account over a window.
func (c *Client) GetHourlyData(ctx context.Context, accountNumber string, start, end time.Time) ([]HourlyEnergyUsage, error) {
	var records []HourlyEnergyUsage
	path := fmt.Sprintf("/api/accounts/%s/hourly?start=%s&end=%s",
		url.PathEscape(accountNumber),
		url.QueryEscape(start.Format(time.RFC3339)),
		url.QueryEscape(end.Format(time.RFC3339)),
	)
	if err := c.get(ctx, path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnect, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s: status %d", ErrAuth, path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s: status %d", ErrConnect, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}
