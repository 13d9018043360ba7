package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is the HTTP implementation of Service. Every request attaches the
// supplied token as a bearer credential, appends a cache-defeating query
// parameter, and carries cookies through a shared jar so endpoints that read
// either location see both. Redirects are never followed; callers interpret
// status codes themselves.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

// NewClient builds a Client against the identity service base URL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
		now:    time.Now,
	}
}

// Login implements Service.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/login", "", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RefreshToken implements Service. The stale token travels both as the bearer
// header and in the body.
func (c *Client) RefreshToken(ctx context.Context, staleToken string) (*RefreshResult, error) {
	body := map[string]string{"token": staleToken}
	var result RefreshResult
	if err := c.do(ctx, http.MethodPost, "/token-refresh", staleToken, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyToken implements Service.
func (c *Client) VerifyToken(ctx context.Context, token string) (*VerifyResult, error) {
	var result VerifyResult
	if err := c.do(ctx, http.MethodGet, "/verify-token", token, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	url := c.baseURL + path + "?_ts=" + strconv.FormatInt(c.now().UnixNano(), 10)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures are rethrown, never swallowed; log enough to
		// tell "no credential" apart from "network down".
		c.logger.Error("identity request failed",
			zap.String("path", path),
			zap.Bool("has_token", token != ""),
			zap.Error(err),
		)
		return fmt.Errorf("identity %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("identity %s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var detail struct {
			Error   string `json:"error"`
			Expired bool   `json:"expired"`
		}
		if json.Unmarshal(payload, &detail) == nil {
			statusErr.Message = detail.Error
			statusErr.Expired = detail.Expired
		}
		return statusErr
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("identity %s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}
