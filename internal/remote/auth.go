package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"swipedesk/internal/apperr"
)

type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Token is the auth service's answer to a password or refresh grant.
type Token struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         AuthUser `json:"user"`
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Token, error) {
	return c.grant(ctx, "password", map[string]string{"email": email, "password": password})
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Token, error) {
	return c.grant(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (c *Client) grant(ctx context.Context, grantType string, body map[string]string) (*Token, error) {
	q := url.Values{}
	q.Set("grant_type", grantType)
	op := "sign in"
	if grantType == "refresh_token" {
		op = "refresh session"
	}
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  q,
		body:   body,
		bearer: c.anonKey,
	})
	if err != nil {
		var re *apperr.RemoteError
		if errors.As(err, &re) && re.Status >= 400 && re.Status < 500 {
			msg := re.Message
			if msg == "" {
				msg = "Invalid credentials! Please try again."
			}
			return nil, apperr.Auth(msg, err)
		}
		return nil, err
	}
	var tok Token
	if err := json.Unmarshal(resp.body, &tok); err != nil {
		return nil, apperr.Remote(op, fmt.Errorf("decode token: %w", err))
	}
	if tok.AccessToken == "" {
		return nil, apperr.Auth("auth service returned no session", nil)
	}
	return &tok, nil
}

// SignOut revokes accessToken on the auth service.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	_, err := c.do(ctx, request{
		op:      "sign out",
		method:  http.MethodPost,
		path:    "/auth/v1/logout",
		bearer:  accessToken,
		allow:   []int{http.StatusUnauthorized, http.StatusNotFound},
		discard: true,
	})
	return err
}
