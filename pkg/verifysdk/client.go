package verifysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// Client talks to one verification service and carries its cookies.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client with its own cookie jar.
func NewClient(baseURL string) *Client {
	jar, _ := cookiejar.New(nil) // never fails without options

	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// Login checks credentials and asks the service to deliver a code.
func (c *Client) Login(ctx context.Context, username, password string) (*Result, error) {
	return c.post(ctx, "/api/login", LoginRequest{Username: username, Password: password})
}

// Verify submits the delivered code. On success the session cookie is set.
func (c *Client) Verify(ctx context.Context, code string) (*Result, error) {
	return c.post(ctx, "/api/verify", VerifyRequest{Code: code})
}

// Resend asks for a new code for the pending challenge.
func (c *Client) Resend(ctx context.Context) (*Result, error) {
	return c.post(ctx, "/api/resend", nil)
}

// Logout drops the pending challenge and the session, if any.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.post(ctx, "/logout", nil)
	return err
}

// Me describes the current session.
func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/me", nil)
	if err != nil {
		return nil, err
	}

	var me MeResponse
	if err := decodeJSON(resp, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetLiveness calls /livez.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness calls /readyz.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var h HealthResponse
	if err := decodeJSON(resp, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*Result, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("verifysdk: encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, r)
	if err != nil {
		return nil, err
	}

	var res Result
	if err := decodeJSON(resp, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		// A 2xx body without the envelope's message is not the service talking.
		if res.Message == "" {
			return nil, fmt.Errorf("%w: HTTP %d without envelope", ErrUnexpectedResponse, resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: res.Message}
	}
	return &res, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("verifysdk: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verifysdk: send request: %w", err)
	}
	return resp, nil
}

// decodeJSON decodes a 2xx answer into target and maps anything else to an
// error.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("verifysdk: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(resp, body)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return nil
}
