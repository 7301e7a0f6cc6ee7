package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/axdashboard/axdash/app/models"
	"github.com/axdashboard/axdash/app/repository"
	"github.com/axdashboard/axdash/internal/pkg/metrics"
	"github.com/axdashboard/axdash/internal/pkg/security"
)

// ErrNoCredentials is returned when no token pair is stored for the requested location.
var ErrNoCredentials = errors.New("no stored credentials")

// Credential is a decrypted token pair for one location.
type Credential struct {
	LocationID   string
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    *time.Time
}

// CredentialService exchanges authorization codes, stores the resulting token
// pairs per location and refreshes them on demand.
type CredentialService struct {
	config     *oauth2.Config
	repo       repository.CredentialRepository
	cipher     *security.TokenCipher
	httpClient *http.Client
	refreshes  singleflight.Group
}

// NewCredentialService creates a credential service. A nil httpClient falls back
// to a client with a 15 second timeout.
func NewCredentialService(config *oauth2.Config, repo repository.CredentialRepository, cipher *security.TokenCipher, httpClient *http.Client) *CredentialService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &CredentialService{
		config:     config,
		repo:       repo,
		cipher:     cipher,
		httpClient: httpClient,
	}
}

// AuthCodeURL returns the consent screen URL. The location chooser does not
// round-trip a state value, so none is sent.
func (s *CredentialService) AuthCodeURL() string {
	return s.config.AuthCodeURL("")
}

// Exchange trades an authorization code for tokens and stores them under the
// location id returned by the provider.
func (s *CredentialService) Exchange(ctx context.Context, code string) (*Credential, error) {
	token, err := s.config.Exchange(s.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	locationID := extraString(token, "locationId")
	if locationID == "" {
		return nil, errors.New("token exchange: response has no locationId")
	}

	cred := credentialFromToken(locationID, token)
	if err := s.store(ctx, cred); err != nil {
		return nil, err
	}
	log.Infof("[OAuth] Stored credentials for location %s", locationID)
	return cred, nil
}

// Token returns the stored credential of a location.
func (s *CredentialService) Token(ctx context.Context, locationID string) (*Credential, error) {
	row, err := s.repo.GetByLocationID(ctx, locationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return s.decrypt(row)
}

// Latest returns the most recently stored credential of any location.
func (s *CredentialService) Latest(ctx context.Context) (*Credential, error) {
	row, err := s.repo.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("load latest credentials: %w", err)
	}
	return s.decrypt(row)
}

// Refresh rotates the token pair of a location and stores the new pair.
// Concurrent refreshes of the same location share one provider call.
func (s *CredentialService) Refresh(ctx context.Context, locationID string) (*Credential, error) {
	v, err, _ := s.refreshes.Do(locationID, func() (interface{}, error) {
		return s.refresh(ctx, locationID)
	})
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	return v.(*Credential), nil
}

// AccessToken returns the stored access token of a location.
func (s *CredentialService) AccessToken(ctx context.Context, locationID string) (string, error) {
	cred, err := s.Token(ctx, locationID)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// RefreshAccessToken refreshes a location and returns the new access token.
func (s *CredentialService) RefreshAccessToken(ctx context.Context, locationID string) (string, error) {
	cred, err := s.Refresh(ctx, locationID)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

func (s *CredentialService) refresh(ctx context.Context, locationID string) (*Credential, error) {
	current, err := s.Token(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if current.RefreshToken == "" {
		return nil, fmt.Errorf("refresh location %s: no refresh token stored", locationID)
	}

	// An empty access token forces the token source to refresh.
	source := s.config.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh location %s: %w", locationID, err)
	}

	cred := credentialFromToken(locationID, token)
	if cred.Scope == "" {
		cred.Scope = current.Scope
	}
	if err := s.store(ctx, cred); err != nil {
		return nil, err
	}
	log.Infof("[OAuth] Refreshed credentials for location %s", locationID)
	return cred, nil
}

func (s *CredentialService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func (s *CredentialService) store(ctx context.Context, cred *Credential) error {
	access, err := s.cipher.Encrypt(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, err := s.cipher.Encrypt(cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	row := &models.TenantCredential{
		LocationID:      cred.LocationID,
		AccessTokenEnc:  access,
		RefreshTokenEnc: refresh,
		Scope:           cred.Scope,
		TokenExpiresAt:  cred.ExpiresAt,
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}

func (s *CredentialService) decrypt(row *models.TenantCredential) (*Credential, error) {
	access, err := s.cipher.Decrypt(row.AccessTokenEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	refresh, err := s.cipher.Decrypt(row.RefreshTokenEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return &Credential{
		LocationID:   row.LocationID,
		AccessToken:  access,
		RefreshToken: refresh,
		Scope:        row.Scope,
		ExpiresAt:    row.TokenExpiresAt,
	}, nil
}

func credentialFromToken(locationID string, token *oauth2.Token) *Credential {
	cred := &Credential{
		LocationID:   locationID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scope:        strings.TrimSpace(extraString(token, "scope")),
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		cred.ExpiresAt = &expiry
	}
	return cred
}

func extraString(token *oauth2.Token, key string) string {
	if v, ok := token.Extra(key).(string); ok {
		return v
	}
	return ""
}
