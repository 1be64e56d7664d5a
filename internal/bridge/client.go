package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/baes-monitor/baes-core/internal/infrastructure/config"
)

// ErrRejected is returned when the API refuses a reading with a 4xx.
// Retrying the same frame will not help.
var ErrRejected = errors.New("bridge: reading rejected by the API")

// Client posts readings to the API.
type Client struct {
	http     *resty.Client
	login    string
	password string

	mu    sync.Mutex
	token string
}

type loginResponse struct {
	Token string `json:"token"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient builds a client from the bridge configuration.
func NewClient(cfg config.BridgeConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := resty.New().
		SetBaseURL(cfg.APIBaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: c, login: cfg.Login, password: cfg.Password}
}

// Login fetches a fresh bearer token. Without configured credentials the
// client posts anonymously.
func (c *Client) Login(ctx context.Context) error {
	if c.login == "" {
		return nil
	}
	var out loginResponse
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"login": c.login, "password": c.password}).
		SetResult(&out).
		SetError(&failure).
		Post("/auth/login")
	if err != nil {
		return fmt.Errorf("bridge: login request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("bridge: login failed with %d: %s", resp.StatusCode(), failure.Message)
	}

	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	return nil
}

// PostStatus sends one reading. A 401 triggers one re-login and retry.
func (c *Client) PostStatus(ctx context.Context, r *Reading) error {
	resp, err := c.post(ctx, r)
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusUnauthorized && c.login != "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
		if resp, err = c.post(ctx, r); err != nil {
			return err
		}
	}
	if resp.IsError() {
		failure, _ := resp.Error().(*apiError) //nolint:errcheck // nil when the body was not JSON
		msg := resp.Status()
		if failure != nil && failure.Message != "" {
			msg = failure.Message
		}
		if resp.StatusCode() < http.StatusInternalServerError {
			return fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode(), msg)
		}
		return fmt.Errorf("bridge: API error %d: %s", resp.StatusCode(), msg)
	}
	return nil
}

func (c *Client) post(ctx context.Context, r *Reading) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx).SetBody(r).SetError(&apiError{})
	c.mu.Lock()
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	c.mu.Unlock()

	resp, err := req.Post("/status")
	if err != nil {
		return nil, fmt.Errorf("bridge: posting status: %w", err)
	}
	return resp, nil
}
