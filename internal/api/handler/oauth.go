package handler

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/authgate/authgate/internal/api/response"
	"github.com/authgate/authgate/internal/identity"
	"github.com/authgate/authgate/internal/oauth"
)

const stateCookieName = "oauth_state"

// OAuthHandler drives the federated-login flow: it redirects the browser
// to the provider and turns the callback into a session token. Failures
// never surface as JSON; the browser is always redirected back to the
// frontend with an opaque error flag.
type OAuthHandler struct {
	linker      *oauth.Linker
	identity    *identity.Service
	frontendURL string
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(linker *oauth.Linker, svc *identity.Service, frontendURL string) *OAuthHandler {
	return &OAuthHandler{
		linker:      linker,
		identity:    svc,
		frontendURL: frontendURL,
	}
}

// Redirect handles GET /oauth/google.
func (h *OAuthHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	if !h.linker.Enabled() {
		response.Err(w, http.StatusInternalServerError, "oauth is not configured")
		return
	}

	state, err := newState()
	if err != nil {
		slog.Error("failed to generate oauth state", "error", err)
		response.Err(w, http.StatusInternalServerError, "failed to start oauth flow")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/oauth",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.linker.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /oauth/google/callback.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		slog.Warn("oauth provider returned error", "error", providerErr)
		h.redirectError(w, r)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.redirectError(w, r)
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != q.Get("state") {
		slog.Warn("oauth state mismatch")
		h.redirectError(w, r)
		return
	}

	tok, err := h.linker.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("oauth code exchange failed", "error", err)
		h.redirectError(w, r)
		return
	}

	profile, err := h.linker.FetchProfile(r.Context(), tok)
	if err != nil {
		slog.Error("oauth profile fetch failed", "error", err)
		h.redirectError(w, r)
		return
	}

	user, err := h.linker.Resolve(r.Context(), profile)
	if err != nil {
		slog.Error("oauth account resolution failed", "error", err)
		h.redirectError(w, r)
		return
	}

	sess, err := h.identity.SessionFor(user)
	if err != nil {
		slog.Error("oauth token issuance failed", "error", err)
		h.redirectError(w, r)
		return
	}

	slog.Info("oauth login succeeded", "email", user.Email)
	http.Redirect(w, r, h.frontendURL+"/auth/callback?token="+url.QueryEscape(sess.Token), http.StatusFound)
}

// redirectError sends the browser back to the login page with a generic
// flag. Internal error text never reaches the redirect URL.
func (h *OAuthHandler) redirectError(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.frontendURL+"/login?error=oauth_failed", http.StatusFound)
}

func newState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
