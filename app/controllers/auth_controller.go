package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/axdashboard/axdash/internal/pkg/leadconnector"
	"github.com/axdashboard/axdash/internal/pkg/oauth"
)

// Authenticator is the part of the credential service the auth routes use.
type Authenticator interface {
	AuthCodeURL() string
	Exchange(ctx context.Context, code string) (*oauth.Credential, error)
	Token(ctx context.Context, locationID string) (*oauth.Credential, error)
	Latest(ctx context.Context) (*oauth.Credential, error)
	RefreshAccessToken(ctx context.Context, locationID string) (string, error)
}

// ResourceFetcher reads the provider's protected resource with a bearer token.
type ResourceFetcher interface {
	ProtectedResource(ctx context.Context, accessToken string) (json.RawMessage, error)
}

// BackfillFunc runs the post-login work for a location.
type BackfillFunc func(ctx context.Context, locationID string)

type AuthController struct {
	creds        Authenticator
	resources    ResourceFetcher
	backfill     BackfillFunc
	dashboardURL string
}

// NewAuthController wires the OAuth routes. backfill may be nil.
func NewAuthController(creds Authenticator, resources ResourceFetcher, backfill BackfillFunc, dashboardURL string) *AuthController {
	return &AuthController{
		creds:        creds,
		resources:    resources,
		backfill:     backfill,
		dashboardURL: strings.TrimRight(dashboardURL, "/"),
	}
}

// HandleLogin GET /auth/login
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	return c.Redirect(ac.creds.AuthCodeURL(), fiber.StatusFound)
}

// HandleCallback GET /auth/callback
func (ac *AuthController) HandleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Authorization code not found")
	}

	cred, err := ac.creds.Exchange(c.UserContext(), code)
	if err != nil {
		log.Errorf("[OAuth] Error exchanging code: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Token exchange failed")
	}

	if ac.backfill != nil {
		ac.backfill(c.UserContext(), cred.LocationID)
	}

	q := url.Values{}
	q.Set("access_token", cred.AccessToken)
	q.Set("refresh_token", cred.RefreshToken)
	q.Set("locationId", cred.LocationID)
	return c.Redirect(ac.dashboardURL+"/?"+q.Encode(), fiber.StatusFound)
}

// HandleProtectedResource GET /auth/protected-resource
func (ac *AuthController) HandleProtectedResource(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var (
		cred *oauth.Credential
		err  error
	)
	if loc := c.Query("locationId"); loc != "" {
		cred, err = ac.creds.Token(ctx, loc)
	} else {
		cred, err = ac.creds.Latest(ctx)
	}
	if errors.Is(err, oauth.ErrNoCredentials) {
		return errorJSON(c, fiber.StatusUnauthorized, "No stored credentials")
	}
	if err != nil {
		log.Errorf("[OAuth] Could not load credentials: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "API request failed")
	}

	body, err := ac.resources.ProtectedResource(ctx, cred.AccessToken)
	if errors.Is(err, leadconnector.ErrUnauthorized) {
		if _, err := ac.creds.RefreshAccessToken(ctx, cred.LocationID); err != nil {
			log.Errorf("[OAuth] Refresh after 401 failed for %s: %v", cred.LocationID, err)
			return errorJSON(c, fiber.StatusInternalServerError, "API request failed")
		}
		return c.JSON(fiber.Map{"message": "Token refreshed, retry the request"})
	}
	if err != nil {
		log.Errorf("[OAuth] Protected resource request failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "API request failed")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
