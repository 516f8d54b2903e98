package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/api"
	"github.com/authgate/authgate/internal/directory"
	"github.com/authgate/authgate/internal/identity"
	"github.com/authgate/authgate/internal/notification"
	"github.com/authgate/authgate/internal/password"
	"github.com/authgate/authgate/internal/token"
)

const (
	testSecret     = "test-signing-secret"
	testBcryptCost = 4
)

// memoryDirectory is an in-memory stand-in for the external user-directory
// service, speaking its HTTP protocol.
type memoryDirectory struct {
	mu    sync.Mutex
	seq   int
	users map[string]directory.User
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{users: make(map[string]directory.User)}
}

func (m *memoryDirectory) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/user/by-email/{email}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, u := range m.users {
			if u.Email == r.PathValue("email") {
				writeDirectoryResponse(w, http.StatusOK, u)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /api/user/by-google-id/{gid}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, u := range m.users {
			if u.GoogleID == r.PathValue("gid") {
				writeDirectoryResponse(w, http.StatusOK, u)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /api/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		u, ok := m.users[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeDirectoryResponse(w, http.StatusOK, u)
	})
	create := func(w http.ResponseWriter, r *http.Request) {
		var u directory.User
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, existing := range m.users {
			if existing.Email == u.Email {
				w.WriteHeader(http.StatusConflict)
				return
			}
		}
		m.seq++
		u.ID = fmt.Sprintf("user-%d", m.seq)
		m.users[u.ID] = u
		writeDirectoryResponse(w, http.StatusCreated, u)
	}
	mux.HandleFunc("POST /api/user", create)
	mux.HandleFunc("POST /api/user/google", create)
	mux.HandleFunc("PATCH /api/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch directory.UserPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		u, ok := m.users[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if patch.GoogleID != "" {
			u.GoogleID = patch.GoogleID
		}
		m.users[u.ID] = u
		writeDirectoryResponse(w, http.StatusOK, u)
	})
	return mux
}

func writeDirectoryResponse(w http.ResponseWriter, status int, u directory.User) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": u})
}

func newTestRouter(t *testing.T) (http.Handler, *memoryDirectory) {
	t.Helper()

	mem := newMemoryDirectory()
	dirSrv := httptest.NewServer(mem.handler())
	t.Cleanup(dirSrv.Close)

	notifSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(notifSrv.Close)

	dirClient := directory.NewClient(dirSrv.URL, time.Second)
	notifClient := notification.NewClient(notifSrv.URL, time.Second)
	codec := token.NewCodec(testSecret, time.Hour)
	hasher := password.NewHasher(testBcryptCost)
	svc := identity.NewService(dirClient, notifClient, codec, hasher)

	router := api.NewRouter(api.RouterDeps{
		Identity:      svc,
		Codec:         codec,
		Resolver:      dirClient,
		Version:       "test",
		LookupTimeout: time.Second,
	})
	return router, mem
}

func doJSON(t *testing.T, router http.Handler, method, target, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRegisterThenMe(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/register",
		`{"user":{"email":"alice@example.com","password":"s3cret","firstname":"Alice","lastname":"Smith"}}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	env := envelope(t, w)
	assert.Equal(t, true, env["success"])
	data := env["data"].(map[string]any)
	bearer := data["token"].(string)
	require.NotEmpty(t, bearer)

	w = doJSON(t, router, http.MethodGet, "/auth/me", "", bearer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	user := envelope(t, w)["data"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "Alice", user["firstname"])
	assert.Equal(t, "free", user["subscriptionTier"])
	assert.NotContains(t, user, "password")
}

func TestLoginWrongPassword(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/register",
		`{"user":{"email":"bob@example.com","password":"right","firstname":"Bob","lastname":"Jones"}}`, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/auth/login",
		`{"email":"bob@example.com","password":"wrong"}`, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := envelope(t, w)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "invalid credentials", env["message"])
}

func TestLoginAfterRegister(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/register",
		`{"user":{"email":"carol@example.com","password":"pw123","firstname":"Carol","lastname":"King"}}`, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/auth/login",
		`{"email":"carol@example.com","password":"pw123"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope(t, w)["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"user":{"email":"dup@example.com","password":"pw","firstname":"Dup","lastname":"User"}}`
	w := doJSON(t, router, http.MethodPost, "/auth/register", body, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/auth/register", body, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogoutRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authentication token required", envelope(t, w)["message"])
}

func TestLogoutWithToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/register",
		`{"user":{"email":"dave@example.com","password":"pw","firstname":"Dave","lastname":"Lee"}}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	bearer := envelope(t, w)["data"].(map[string]any)["token"].(string)

	w = doJSON(t, router, http.MethodPost, "/auth/logout", "", bearer)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "logout successful", envelope(t, w)["message"])
}

func TestMeWithDirectoryDown(t *testing.T) {
	dirSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := dirSrv.URL
	dirSrv.Close()

	dirClient := directory.NewClient(addr, time.Second)
	codec := token.NewCodec(testSecret, time.Hour)
	svc := identity.NewService(dirClient, notification.NewClient(addr, time.Second), codec, password.NewHasher(testBcryptCost))

	router := api.NewRouter(api.RouterDeps{
		Identity:      svc,
		Codec:         codec,
		Resolver:      dirClient,
		Version:       "test",
		LookupTimeout: time.Second,
	})

	bearer, err := codec.Issue("u1", "alice@example.com", "free")
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/auth/me", "", bearer)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "authentication service unavailable", envelope(t, w)["message"])
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope(t, w)["data"].(map[string]any)
	assert.Equal(t, "auth-gateway", data["service"])
	assert.Equal(t, "test", data["version"])
	assert.NotEmpty(t, data["timestamp"])
}
