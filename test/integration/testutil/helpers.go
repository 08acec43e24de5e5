//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Account is a registered user and its access token.
type Account struct {
	ID    uuid.UUID
	QRID  string
	Email string
	Token string
}

// Register creates a user through the API.
func (env *TestEnv) Register(name, email, password string) Account {
	env.t.Helper()
	resp := env.Do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name": name, "email": email, "password": password,
	}, "")
	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("Register: expected 201, got %d", resp.StatusCode)
	}

	var out struct {
		Tokens struct {
			Access string `json:"access"`
		} `json:"tokens"`
		User struct {
			ID   uuid.UUID `json:"id"`
			QRID string    `json:"qr_id"`
		} `json:"user"`
	}
	DecodeJSON(env.t, resp, &out)
	return Account{ID: out.User.ID, QRID: out.User.QRID, Email: email, Token: out.Tokens.Access}
}

// Login returns a fresh access token.
func (env *TestEnv) Login(email, password string) string {
	env.t.Helper()
	resp := env.Do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": email, "password": password,
	}, "")
	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("Login: expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Tokens struct {
			Access string `json:"access"`
		} `json:"tokens"`
	}
	DecodeJSON(env.t, resp, &out)
	return out.Tokens.Access
}

// RegisterAdmin registers a user, promotes it in the database and logs in
// again so the token carries the admin role.
func (env *TestEnv) RegisterAdmin(name, email, password string) Account {
	env.t.Helper()
	acc := env.Register(name, email, password)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := env.Pool.Exec(ctx, `UPDATE users SET role = 'admin' WHERE id = $1`, acc.ID); err != nil {
		env.t.Fatalf("RegisterAdmin: promote: %v", err)
	}
	acc.Token = env.Login(email, password)
	return acc
}

// Do sends a JSON request with an optional bearer token.
func (env *TestEnv) Do(method, path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertErrorCode checks the status and the error code of resp.
func AssertErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	DecodeJSON(t, resp, &errResp)
	if resp.StatusCode != status {
		t.Errorf("expected status %d, got %d", status, resp.StatusCode)
	}
	if errResp.Code != code {
		t.Errorf("expected error code %q, got %q (message: %s)", code, errResp.Code, errResp.Message)
	}
}

// CountOutboxEvents returns how many outbox rows reference aggregateID.
func (env *TestEnv) CountOutboxEvents(aggregateID string) int {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := env.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_outbox WHERE "aggregateId" = $1`, aggregateID).Scan(&count)
	if err != nil {
		env.t.Fatalf("CountOutboxEvents: %v", err)
	}
	return count
}
