package leadconnector

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"
)

// Credentials supplies and rotates access tokens per location.
type Credentials interface {
	AccessToken(ctx context.Context, locationID string) (string, error)
	RefreshAccessToken(ctx context.Context, locationID string) (string, error)
}

// WithRefresh runs call with the stored token of locationID. When the provider
// answers 401 the token is refreshed once and the call repeated.
func WithRefresh[T any](ctx context.Context, creds Credentials, locationID string, call func(token string) (T, error)) (T, error) {
	var zero T
	token, err := creds.AccessToken(ctx, locationID)
	if err != nil {
		return zero, err
	}

	out, err := call(token)
	if !errors.Is(err, ErrUnauthorized) {
		return out, err
	}

	log.Infof("[LeadConnector] Access token for location %s rejected, refreshing", locationID)
	token, err = creds.RefreshAccessToken(ctx, locationID)
	if err != nil {
		return zero, err
	}
	return call(token)
}
