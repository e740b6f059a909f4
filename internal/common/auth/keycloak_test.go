package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"dealer-portal/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fake Keycloak
// ==========================

type fakeKeycloak struct {
	tokenCalls int32
	users      []User
	deleted    []string
	active     bool
	createResp int
	noLocation bool
}

func (f *fakeKeycloak) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/realms/dealers/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "svc-token", ExpiresIn: 300})
	})

	mux.HandleFunc("/realms/dealers/protocol/openid-connect/token/introspect", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		json.NewEncoder(w).Encode(TokenInfo{Active: f.active, Username: "admin", Email: "admin@acme.com"})
	})

	mux.HandleFunc("/admin/realms/dealers/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			email := r.URL.Query().Get("email")
			matches := []User{}
			for _, u := range f.users {
				if u.Email == email {
					matches = append(matches, u)
				}
			}
			json.NewEncoder(w).Encode(matches)
		case http.MethodPost:
			if f.createResp != 0 {
				w.WriteHeader(f.createResp)
				return
			}
			var u User
			require.NoError(t, json.NewDecoder(r.Body).Decode(&u))
			if f.noLocation {
				w.WriteHeader(http.StatusCreated)
				return
			}
			u.ID = "kc-new"
			f.users = append(f.users, u)
			w.Header().Set("Location", "http://kc/admin/realms/dealers/users/kc-new")
			w.WriteHeader(http.StatusCreated)
		}
	})

	mux.HandleFunc("/admin/realms/dealers/users/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/admin/realms/dealers/users/"):]
		switch r.Method {
		case http.MethodDelete:
			f.deleted = append(f.deleted, id)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			for _, u := range f.users {
				if u.ID == id {
					json.NewEncoder(w).Encode(u)
					return
				}
			}
			w.WriteHeader(http.StatusNotFound)
		}
	})

	return mux
}

func newTestClient(t *testing.T, f *fakeKeycloak) *KeycloakClient {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewKeycloakClient(srv.URL+"/", "dealers", "portal", "secret")
}

// ==========================
// Tests
// ==========================

func TestKeycloakClient_GetUserByEmail(t *testing.T) {
	f := &fakeKeycloak{users: []User{{ID: "kc-1", Email: "jane@acme.com"}}}
	client := newTestClient(t, f)
	ctx := context.Background()

	user, err := client.GetUserByEmail(ctx, "jane@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "kc-1", user.ID)

	_, err = client.GetUserByEmail(ctx, "nobody@acme.com")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUserNotFound))

	// token is cached across calls
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls))
}

func TestKeycloakClient_CreateGetAndDeleteUser(t *testing.T) {
	f := &fakeKeycloak{}
	client := newTestClient(t, f)
	ctx := context.Background()

	created, err := client.CreateUser(ctx, &User{Email: "new@acme.com", FirstName: "New", Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, "kc-new", created.ID)
	assert.Equal(t, "new@acme.com", created.Username)

	fetched, err := client.GetUser(ctx, "kc-new")
	require.NoError(t, err)
	assert.Equal(t, "new@acme.com", fetched.Email)

	_, err = client.GetUser(ctx, "kc-missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeUserNotFound))

	require.NoError(t, client.DeleteUser(ctx, "kc-new"))
	assert.Equal(t, []string{"kc-new"}, f.deleted)
}

func TestKeycloakClient_CreateUserExists(t *testing.T) {
	f := &fakeKeycloak{createResp: http.StatusConflict}
	client := newTestClient(t, f)

	_, err := client.CreateUser(context.Background(), &User{Email: "taken@acme.com"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUserExists))
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(errors.ErrCodeUserExists))
}

func TestKeycloakClient_CreateUserWithoutLocation(t *testing.T) {
	f := &fakeKeycloak{noLocation: true}
	client := newTestClient(t, f)

	created, err := client.CreateUser(context.Background(), &User{Email: "new@acme.com"})
	require.Error(t, err)
	assert.Nil(t, created)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeExternalService, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestKeycloakClient_ValidateToken(t *testing.T) {
	f := &fakeKeycloak{active: true}
	client := newTestClient(t, f)

	info, err := client.ValidateToken(context.Background(), "caller-token")
	require.NoError(t, err)
	assert.Equal(t, "admin@acme.com", info.CallerEmail())

	f.active = false
	_, err = client.ValidateToken(context.Background(), "caller-token")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTokenInvalid))
}

func TestKeycloakClient_UnreachableIsExternalServiceError(t *testing.T) {
	client := NewKeycloakClient("http://127.0.0.1:1", "dealers", "portal", "secret")

	_, err := client.GetUserByEmail(context.Background(), "jane@acme.com")
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeExternalService, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestTokenInfo_CallerEmailFallsBackToUsername(t *testing.T) {
	info := &TokenInfo{Username: "ops@acme.com"}
	assert.Equal(t, "ops@acme.com", info.CallerEmail())
}
