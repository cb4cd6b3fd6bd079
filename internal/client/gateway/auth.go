package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/avdeyev/catchdex/internal/client/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Register creates a real server account. The returned token is not stored
// by the gateway; that is the session store's job.
func (c *Client) Register(ctx context.Context, creds Credentials) (*models.Profile, string, error) {
	if err := validate.Struct(creds); err != nil {
		return nil, "", fmt.Errorf("invalid credentials: %w", err)
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", creds, &resp); err != nil {
		return nil, "", err
	}
	return resp.Account.toModel(), resp.Token, nil
}

// Login authenticates an existing account.
func (c *Client) Login(ctx context.Context, creds Credentials) (*models.Profile, string, error) {
	if err := validate.Struct(creds); err != nil {
		return nil, "", fmt.Errorf("invalid credentials: %w", err)
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", creds, &resp); err != nil {
		return nil, "", err
	}
	return resp.Account.toModel(), resp.Token, nil
}

// CurrentProfile fetches the profile bound to the current token.
func (c *Client) CurrentProfile(ctx context.Context) (*models.Profile, error) {
	var resp profilePayload
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil, &resp); err != nil {
		return nil, err
	}
	return resp.toModel(), nil
}
