package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// relayClient habla con la API HTTP del relay.
type relayClient struct {
	http  *resty.Client
	token string
}

type apiError struct {
	Error string `json:"error"`
}

type sessionRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Exchange  []string  `json:"exchange"`
}

type userProfile struct {
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Theme       string          `json:"theme"`
	Language    string          `json:"language"`
	Transcripts []sessionRecord `json:"transcripts"`
}

func newRelayClient(baseURL string, timeout time.Duration) *relayClient {
	return &relayClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

func (c *relayClient) login(ctx context.Context, credential string) error {
	var out struct {
		Token string `json:"token"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"credential": credential}).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/api/login")
	if err := checkResponse(resp, err); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if out.Token == "" {
		return errors.New("login: empty token")
	}
	c.token = out.Token
	return nil
}

func (c *relayClient) chat(ctx context.Context, message string) (string, error) {
	var out struct {
		Reply string `json:"reply"`
	}
	resp, err := c.authed(ctx).
		SetBody(map[string]string{"message": message}).
		SetResult(&out).
		Post("/api/chat")
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}
	return out.Reply, nil
}

func (c *relayClient) profile(ctx context.Context) (userProfile, error) {
	var out userProfile
	resp, err := c.authed(ctx).
		SetResult(&out).
		Get("/api/user")
	if err := checkResponse(resp, err); err != nil {
		return userProfile{}, err
	}
	return out, nil
}

func (c *relayClient) setTheme(ctx context.Context, theme string) error {
	resp, err := c.authed(ctx).
		SetBody(map[string]string{"theme": theme}).
		Post("/api/user")
	return checkResponse(resp, err)
}

func (c *relayClient) logout(ctx context.Context) error {
	resp, err := c.authed(ctx).Post("/api/logout")
	if err := checkResponse(resp, err); err != nil {
		return err
	}
	c.token = ""
	return nil
}

func (c *relayClient) authed(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetError(&apiError{})
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
		return fmt.Errorf("status=%d: %s", resp.StatusCode(), e.Error)
	}
	return fmt.Errorf("status=%d", resp.StatusCode())
}
