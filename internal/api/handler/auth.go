package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/authgate/authgate/internal/api/middleware"
	"github.com/authgate/authgate/internal/api/response"
	"github.com/authgate/authgate/internal/directory"
	"github.com/authgate/authgate/internal/identity"
)

const maxBodyBytes = 1 << 20

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	User registerUser `json:"user"`
}

type registerUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

type sessionResponse struct {
	Token string         `json:"token"`
	User  directory.User `json:"user"`
}

// AuthHandler handles the credential-based authentication endpoints.
type AuthHandler struct {
	identity *identity.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *identity.Service) *AuthHandler {
	return &AuthHandler{identity: svc}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	sess, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrMissingCredentials),
			errors.Is(err, identity.ErrInvalidCredentials):
			response.Err(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, directory.ErrUnavailable):
			slog.Error("login failed: directory unavailable", "error", err)
			response.Err(w, http.StatusServiceUnavailable, "authentication service unavailable")
		default:
			slog.Error("login failed", "error", err)
			response.Err(w, http.StatusInternalServerError, "server error during login")
		}
		return
	}

	response.Success(w, http.StatusOK, sessionResponse{Token: sess.Token, User: sess.User})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	sess, err := h.identity.Register(r.Context(), req.User.Email, req.User.Password, req.User.Firstname, req.User.Lastname)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrMissingFields):
			response.Err(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrEmailTaken):
			response.Err(w, http.StatusConflict, err.Error())
		case errors.Is(err, directory.ErrUnavailable):
			slog.Error("registration failed: directory unavailable", "error", err)
			response.Err(w, http.StatusServiceUnavailable, "authentication service unavailable")
		default:
			slog.Error("registration failed", "error", err)
			response.Err(w, http.StatusInternalServerError, "server error during registration")
		}
		return
	}

	response.SuccessMessage(w, http.StatusCreated,
		sessionResponse{Token: sess.Token, User: sess.User},
		"account created, a welcome email is on its way")
}

// Me handles GET /auth/me. Token extraction happens here rather than in
// the gate so missing, malformed and expired tokens each get their own
// message.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))

	user, err := h.identity.CurrentUser(r.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrMissingToken),
			errors.Is(err, identity.ErrMalformedToken),
			errors.Is(err, identity.ErrTokenExpired),
			errors.Is(err, identity.ErrInvalidToken),
			errors.Is(err, identity.ErrTokenMissingSubject),
			errors.Is(err, identity.ErrUserNotFound):
			response.Err(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, directory.ErrUnavailable):
			slog.Error("current-user lookup failed: directory unavailable", "error", err)
			response.Err(w, http.StatusServiceUnavailable, "authentication service unavailable")
		default:
			slog.Error("current-user lookup failed", "error", err)
			response.Err(w, http.StatusUnauthorized, "invalid token")
		}
		return
	}

	response.Success(w, http.StatusOK, user)
}

// Logout handles POST /auth/logout. Tokens are stateless, so there is
// nothing to revoke server side; the client simply discards its token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		slog.Info("user logged out", "id", p.ID)
	}
	response.SuccessMessage(w, http.StatusOK, nil, "logout successful")
}
