package roborock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the login endpoint used before the account's
// regional URL is known.
const DefaultBaseURL = "https://euiot.roborock.com"

// apiEnvelope wraps every vendor HTTP response.
type apiEnvelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
}

// Vendor result codes that mean the credentials, not the transport,
// were the problem.
const (
	codeInvalidEmail = 2008
	codeInvalidCode  = 2018
	codeAuthExpired  = 2010
)

// AccountClient talks to the vendor's HTTP account API: code login and
// home-data retrieval.
type AccountClient struct {
	baseURL string
	http    *http.Client
}

// NewAccountClient creates an account client. baseURL "" selects
// DefaultBaseURL.
func NewAccountClient(baseURL string) *AccountClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &AccountClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// BaseURL returns the regional base URL in use.
func (c *AccountClient) BaseURL() string { return c.baseURL }

// ResolveBaseURL asks the vendor which regional endpoint serves the
// email's account and re-points the client at it.
func (c *AccountClient) ResolveBaseURL(ctx context.Context, email string) error {
	var data struct {
		URL string `json:"url"`
	}
	err := c.post(ctx, "/api/v1/getUrlByEmail", url.Values{"email": {email}, "needtwostepauth": {"false"}}, &data)
	if err != nil {
		return err
	}
	if data.URL != "" {
		c.baseURL = strings.TrimRight(data.URL, "/")
	}
	return nil
}

// RequestCode asks the vendor to email a login code. An unknown or
// malformed email surfaces as ErrAuth.
func (c *AccountClient) RequestCode(ctx context.Context, email string) error {
	return c.post(ctx, "/api/v1/sendEmailCode", url.Values{
		"username": {email},
		"type":     {"auth"},
	}, nil)
}

// CodeLogin exchanges an emailed code for the account's credential
// bundle. A wrong or expired code surfaces as ErrAuth.
func (c *AccountClient) CodeLogin(ctx context.Context, email, code string) (*UserData, error) {
	var user UserData
	err := c.post(ctx, "/api/v1/loginWithCode", url.Values{
		"username":       {email},
		"verifycode":     {code},
		"verifycodetype": {"AUTH_EMAIL_CODE"},
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetHomeData fetches the account's devices and products.
func (c *AccountClient) GetHomeData(ctx context.Context, user *UserData) (*HomeData, error) {
	// The home ID comes from the user's profile endpoint.
	var meta struct {
		RRHomeID int64 `json:"rrHomeId"`
	}
	if err := c.get(ctx, "/api/v1/getHomeDetail", user.Token, &meta); err != nil {
		return nil, err
	}

	var home HomeData
	path := fmt.Sprintf("/api/v1/homes/%d", meta.RRHomeID)
	if err := c.get(ctx, path, user.Token, &home); err != nil {
		return nil, err
	}
	return &home, nil
}

// post sends a form-encoded request and decodes the envelope.
func (c *AccountClient) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

// get sends an authenticated request and decodes the envelope.
func (c *AccountClient) get(ctx context.Context, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", token)
	return c.do(req, out)
}

func (c *AccountClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnect, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s: status %d", ErrAuth, req.URL.Path, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: status %d", ErrConnect, req.URL.Path, resp.StatusCode)
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response from %s: %w", req.URL.Path, err)
	}

	// code 200 doubles as success in some endpoints
	if !env.Success && env.Code != 200 {
		switch env.Code {
		case codeInvalidEmail, codeInvalidCode, codeAuthExpired:
			return fmt.Errorf("%w: %s (code %d)", ErrAuth, env.Msg, env.Code)
		default:
			return fmt.Errorf("%w: %s (code %d)", ErrConnect, env.Msg, env.Code)
		}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding data from %s: %w", req.URL.Path, err)
		}
	}
	return nil
}
