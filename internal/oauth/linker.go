package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/authgate/authgate/internal/directory"
)

// Google endpoints, overridable through Config for tests.
const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// ErrProfileIncomplete is returned when the provider's profile lacks the
// fields required to resolve an account.
var ErrProfileIncomplete = errors.New("oauth profile missing required fields")

// Profile is the provider's identity assertion. It exists only for the
// duration of a callback.
type Profile struct {
	ID         string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Directory is the slice of the user-directory client the linker needs.
type Directory interface {
	GetByProviderID(ctx context.Context, providerID string) (*directory.User, error)
	GetByEmail(ctx context.Context, email string) (*directory.User, error)
	Patch(ctx context.Context, id string, patch directory.UserPatch) (*directory.User, error)
	CreateOAuth(ctx context.Context, u directory.User) (*directory.User, error)
}

// Config holds the provider settings for the Linker.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint overrides, empty means Google production endpoints.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// Linker negotiates the authorization-code flow with the provider and
// resolves the returned profile to a local user record.
type Linker struct {
	oauth       *oauth2.Config
	userInfoURL string
	directory   Directory
	http        *http.Client
}

// NewLinker creates a Linker for the given provider configuration.
func NewLinker(cfg Config, dir Directory) *Linker {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = googleAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = googleTokenURL
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"email", "profile"}
	}

	return &Linker{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		userInfoURL: userInfoURL,
		directory:   dir,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether provider credentials are configured.
func (l *Linker) Enabled() bool {
	return l.oauth.ClientID != "" && l.oauth.ClientSecret != ""
}

// AuthCodeURL builds the provider authorization URL for the given state.
func (l *Linker) AuthCodeURL(state string) string {
	return l.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a provider token.
func (l *Linker) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, l.http)
	tok, err := l.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok, nil
}

// FetchProfile retrieves the provider profile for an exchanged token.
func (l *Linker) FetchProfile(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}
	return &profile, nil
}

// Resolve maps a provider profile to a local user record: first by
// provider id, then by email (attaching the provider id to the existing
// account), and finally by creating a fresh free-tier account. Not-found
// falls through to the next step; any other directory error is fatal.
func (l *Linker) Resolve(ctx context.Context, p *Profile) (*directory.User, error) {
	if p.ID == "" || p.Email == "" {
		return nil, ErrProfileIncomplete
	}
	email := strings.ToLower(strings.TrimSpace(p.Email))

	u, err := l.directory.GetByProviderID(ctx, p.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, directory.ErrNotFound) {
		return nil, fmt.Errorf("looking up user by provider id: %w", err)
	}

	u, err = l.directory.GetByEmail(ctx, email)
	if err == nil {
		// Existing account with the same email: attach the provider id
		// instead of creating a duplicate.
		linked, err := l.directory.Patch(ctx, u.ID, directory.UserPatch{GoogleID: p.ID})
		if err != nil {
			return nil, fmt.Errorf("linking provider id: %w", err)
		}
		return linked, nil
	}
	if !errors.Is(err, directory.ErrNotFound) {
		return nil, fmt.Errorf("looking up user by email: %w", err)
	}

	firstname := p.GivenName
	if firstname == "" {
		firstname = "Google"
	}
	lastname := p.FamilyName
	if lastname == "" {
		lastname = "User"
	}

	created, err := l.directory.CreateOAuth(ctx, directory.User{
		Email:            email,
		Firstname:        firstname,
		Lastname:         lastname,
		SubscriptionTier: directory.TierFree,
		GoogleID:         p.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating oauth user: %w", err)
	}
	return created, nil
}
