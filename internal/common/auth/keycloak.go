// internal/common/auth/keycloak.go
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"dealer-portal/internal/common/errors"
)

// KeycloakClient talks to the Keycloak admin and OpenID Connect endpoints.
// It is the identity provider for admins and dealers.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// User represents a user in Keycloak.
type User struct {
	ID              string   `json:"id,omitempty"`
	Email           string   `json:"email"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	Username        string   `json:"username"`
	Enabled         bool     `json:"enabled"`
	EmailVerified   bool     `json:"emailVerified"`
	RequiredActions []string `json:"requiredActions,omitempty"`
}

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// TokenInfo holds the information returned by the token introspection endpoint.
type TokenInfo struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Iss       string `json:"iss,omitempty"`
}

// CallerEmail is the email the caller is identified by. Keycloak omits the
// email claim for users without one, in which case the username is used.
func (t *TokenInfo) CallerEmail() string {
	if t.Email != "" {
		return t.Email
	}
	return t.Username
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// token returns a cached service account token, fetching a new one with
// the client credentials grant once the cached one has expired.
func (k *KeycloakClient) token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && k.tokenExpiry.After(time.Now()) {
		return k.accessToken, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	resp, err := k.postForm(ctx, k.realmURL("/protocol/openid-connect/token"), data)
	if err != nil {
		return "", keycloakError("token request failed", err.Error(), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", keycloakError(
			"Failed to authenticate with Keycloak",
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)),
			isTransientHTTPError(resp.StatusCode),
		)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", keycloakError("Failed to decode token response", err.Error(), false)
	}

	// Refresh a little early so a token never expires mid request.
	k.accessToken = tokenResp.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - 10*time.Second)
	return k.accessToken, nil
}

// CreateUser creates a new user and returns it with the id Keycloak assigned.
func (k *KeycloakClient) CreateUser(ctx context.Context, user *User) (*User, error) {
	if user.Username == "" {
		user.Username = user.Email
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return nil, keycloakError("Failed to serialize user data", err.Error(), false)
	}

	resp, err := k.adminRequest(ctx, http.MethodPost, "/users", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return nil, userExists(fmt.Sprintf("a user with email %s already exists", user.Email))
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, unexpectedStatus("user creation", resp)
	}

	// Keycloak answers 201 with an empty body; the id is the last segment of Location.
	location := strings.TrimRight(resp.Header.Get("Location"), "/")
	user.ID = location[strings.LastIndex(location, "/")+1:]
	if user.ID == "" {
		return nil, keycloakError("Keycloak did not return the created user id",
			fmt.Sprintf("Location header: %q", resp.Header.Get("Location")), false)
	}
	return user, nil
}

// GetUserByEmail looks a user up by exact email. A missing user yields an
// error with code USER_NOT_FOUND.
func (k *KeycloakClient) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	path := "/users?exact=true&email=" + url.QueryEscape(email)
	resp, err := k.adminRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus("user search", resp)
	}

	var users []User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, keycloakError("Failed to decode user search results", err.Error(), false)
	}

	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, userNotFound(fmt.Sprintf("no user found with email: %s", email))
}

// GetUser retrieves a user by id.
func (k *KeycloakClient) GetUser(ctx context.Context, userID string) (*User, error) {
	resp, err := k.adminRequest(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, userNotFound(fmt.Sprintf("no user found with id: %s", userID))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus("user retrieval", resp)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, keycloakError("Failed to decode user details", err.Error(), false)
	}
	return &user, nil
}

// DeleteUser deletes a user by id. Deleting a user that is already gone succeeds.
func (k *KeycloakClient) DeleteUser(ctx context.Context, userID string) error {
	resp, err := k.adminRequest(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return unexpectedStatus("user deletion", resp)
	}
	return nil
}

// ValidateToken introspects an access token and returns its claims if it is active.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	resp, err := k.postForm(ctx, k.realmURL("/protocol/openid-connect/token/introspect"), data)
	if err != nil {
		return nil, keycloakError("Failed to send introspection request", err.Error(), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus("token introspection", resp)
	}

	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, keycloakError("Failed to decode token introspection response", err.Error(), false)
	}

	if !info.Active {
		stdErr := errors.NewAuthenticationError("token is expired, revoked or malformed")
		stdErr.Code = errors.ErrCodeTokenInvalid
		stdErr.Message = "Token is not active"
		return nil, stdErr
	}
	return &info, nil
}

func (k *KeycloakClient) realmURL(path string) string {
	return fmt.Sprintf("%s/realms/%s%s", k.baseURL, k.realm, path)
}

func (k *KeycloakClient) adminRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	token, err := k.token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/admin/realms/%s%s", k.baseURL, k.realm, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, keycloakError("Failed to create HTTP request", err.Error(), false)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, keycloakError("Failed to send request to Keycloak", err.Error(), true)
	}
	return resp, nil
}

func (k *KeycloakClient) postForm(ctx context.Context, endpoint string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return k.httpClient.Do(req)
}

func keycloakError(message, details string, retryable bool) *errors.StandardError {
	return &errors.StandardError{
		Code:      errors.ErrCodeExternalService,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Metadata:  map[string]interface{}{"service": "keycloak"},
		Timestamp: time.Now().UTC(),
	}
}

func userNotFound(details string) *errors.StandardError {
	return &errors.StandardError{
		Code:      errors.ErrCodeUserNotFound,
		Message:   "User not found",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func userExists(details string) *errors.StandardError {
	return &errors.StandardError{
		Code:      errors.ErrCodeUserExists,
		Message:   "User already exists",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func unexpectedStatus(operation string, resp *http.Response) *errors.StandardError {
	body, _ := io.ReadAll(resp.Body)
	return keycloakError(
		fmt.Sprintf("Keycloak API error during %s", operation),
		fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)),
		isTransientHTTPError(resp.StatusCode),
	)
}

// isTransientHTTPError returns true if the HTTP status code indicates a potentially transient error.
func isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
