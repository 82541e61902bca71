package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bobmcallan/surveylens/internal/models"
)

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The signing key lives on the backend; the client only needs the timestamp.
func TokenExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

func (c *Client) tokenExpired(token string) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return false
	}
	return !c.now().Before(exp)
}

// refreshIfExpired refreshes ahead of the request when the access token's exp has passed
func (c *Client) refreshIfExpired(ctx context.Context) error {
	if c.creds == nil {
		return nil
	}
	tokens := c.creds.Tokens()
	if tokens.Access == "" || tokens.Refresh == "" || !c.tokenExpired(tokens.Access) {
		return nil
	}
	c.logger.Debug().Msg("Access token expired, refreshing before request")
	return c.refresh(ctx, tokens.Access)
}

// refresh exchanges the refresh token for a new pair. staleAccess is the token
// the failing request used: if another request already replaced it, nothing is done.
// Any failure clears stored credentials and returns ErrSessionExpired.
func (c *Client) refresh(ctx context.Context, staleAccess string) error {
	if c.creds == nil {
		return ErrSessionExpired
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	tokens := c.creds.Tokens()
	if tokens.Access != "" && tokens.Access != staleAccess {
		return nil
	}
	if tokens.Refresh == "" {
		c.expireSession()
		return ErrSessionExpired
	}

	var pair models.TokenPair
	err := c.postJSON(ctx, authPrefix+"/refresh", map[string]string{"refresh_token": tokens.Refresh}, &pair)
	if err == nil && pair.AccessToken == "" {
		err = errors.New("refresh response carried no access token")
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("Token refresh failed")
		c.expireSession()
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	refreshToken := pair.RefreshToken
	if refreshToken == "" {
		refreshToken = tokens.Refresh
	}
	if err := c.creds.SetTokens(pair.AccessToken, refreshToken); err != nil {
		return fmt.Errorf("failed to store refreshed tokens: %w", err)
	}
	c.logger.Debug().Msg("Access token refreshed")
	return nil
}

func (c *Client) expireSession() {
	if c.creds == nil {
		return
	}
	if err := c.creds.Clear(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear credentials")
	}
}

// Login authenticates, stores both tokens, then fetches and stores the user profile
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	var pair models.TokenPair
	if err := c.postJSON(ctx, authPrefix+"/login", models.LoginRequest{Email: email, Password: password}, &pair); err != nil {
		return nil, err
	}
	if c.creds == nil {
		return nil, errors.New("no credential provider configured")
	}
	if err := c.creds.SetTokens(pair.AccessToken, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}

	user, err := c.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}
	if err := c.creds.SetUser(user); err != nil {
		return nil, fmt.Errorf("failed to store user profile: %w", err)
	}
	return user, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	var user models.User
	if err := c.postJSON(ctx, authPrefix+"/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Me returns the profile of the authenticated user
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.getJSON(ctx, authPrefix+"/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout notifies the backend when a session exists, then clears tokens and
// user. The local clear happens even if the backend call fails.
func (c *Client) Logout(ctx context.Context) error {
	if c.creds == nil {
		return nil
	}
	if c.creds.Tokens().Access != "" {
		if _, err := c.send(ctx, http.MethodPost, authPrefix+"/logout", nil); err != nil {
			c.logger.Debug().Err(err).Msg("Backend logout failed, clearing local session anyway")
		}
	}
	return c.creds.Clear()
}
