package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"symposium/api/internal/auth"
)

func doJSON(t *testing.T, server *HTTPServer, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	var payload map[string]any
	if rr.Body.Len() > 0 && rr.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
		}
	}
	return rr, payload
}

func TestRegisterReturnsContract(t *testing.T) {
	fs := newFakeStore()
	server := NewHTTPServer(newTestService(fs, &fakeCompleter{}), "*", nil)

	rr, payload := doJSON(t, server, http.MethodPost, "/api/auth/register", "", `{"email":"  ada@example.com ","password":"secret-pw"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if token, _ := payload["token"].(string); token == "" {
		t.Fatalf("expected token")
	}
	if refresh, _ := payload["refreshToken"].(string); refresh == "" {
		t.Fatalf("expected refreshToken")
	}
	user, _ := payload["user"].(map[string]any)
	if user["email"] != "ada@example.com" || user["hasApiKey"] != false {
		t.Fatalf("unexpected user payload %v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Fatalf("password hash must not be serialized")
	}

	rr, payload = doJSON(t, server, http.MethodPost, "/api/auth/register", "", `{"email":"ada@example.com","password":"secret-pw"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for duplicate email, got %d", rr.Code)
	}
	if payload["error"] != "User with this email already exists" {
		t.Fatalf("unexpected conflict message %v", payload["error"])
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore(), &fakeCompleter{}), "*", nil)

	rr, payload := doJSON(t, server, http.MethodPost, "/api/auth/register", "", `{"email":"ada@example.com","password":"abc"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if payload["error"] != "Password must be at least 6 characters long" {
		t.Fatalf("unexpected message %v", payload["error"])
	}
}

func TestLoginWithWrongPasswordReturnsUnauthorized(t *testing.T) {
	fs := newFakeStore()
	fs.addUser("ada@example.com", "")
	server := NewHTTPServer(newTestService(fs, &fakeCompleter{}), "*", nil)

	rr, payload := doJSON(t, server, http.MethodPost, "/api/auth/login", "", `{"email":"ada@example.com","password":"wrong-pw"}`)
	assertUnauthorizedCode(t, rr)
	if payload["error"] != "Invalid email or password" {
		t.Fatalf("unexpected message %v", payload["error"])
	}

	rr, _ = doJSON(t, server, http.MethodPost, "/api/auth/login", "", `{"email":"ada@example.com","password":"secret-pw"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLoginRejectsInvalidBody(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore(), &fakeCompleter{}), "*", nil)

	rr, payload := doJSON(t, server, http.MethodPost, "/api/auth/login", "", `{"email":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["code"] != "INVALID_BODY" {
		t.Fatalf("expected code INVALID_BODY, got %v", payload["code"])
	}
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	fs := newFakeStore()
	server := NewHTTPServer(newTestService(fs, &fakeCompleter{}), "*", nil)

	_, registered := doJSON(t, server, http.MethodPost, "/api/auth/register", "", `{"email":"ada@example.com","password":"secret-pw"}`)
	refresh, _ := registered["refreshToken"].(string)

	rr, rotated := doJSON(t, server, http.MethodPost, "/api/auth/refresh", "", `{"refreshToken":"`+refresh+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rotated["refreshToken"] == refresh {
		t.Fatalf("expected rotated refresh token")
	}

	rr, payload := doJSON(t, server, http.MethodPost, "/api/auth/refresh", "", `{"refreshToken":"`+refresh+`"}`)
	assertUnauthorizedCode(t, rr)
	if payload["error"] != "Refresh token invalid" {
		t.Fatalf("unexpected message %v", payload["error"])
	}
}

func TestMeReturnsCurrentUser(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &fakeCompleter{})
	user := fs.addUser("ada@example.com", "sk-test")
	server := NewHTTPServer(svc, "*", nil)

	rr, payload := doJSON(t, server, http.MethodGet, "/api/auth/me", issueTestToken(t, user.ID, user.Email), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload["email"] != "ada@example.com" || payload["hasApiKey"] != true {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestProtectedRouteWithoutBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore(), &fakeCompleter{}), "*", nil)

	rr, _ := doJSON(t, server, http.MethodGet, "/api/projects", "", "")
	assertUnauthorizedCode(t, rr)
}

func TestProtectedRouteWithInvalidBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore(), &fakeCompleter{}), "*", nil)

	rr, _ := doJSON(t, server, http.MethodGet, "/api/projects", "definitely-not-a-token", "")
	assertUnauthorizedCode(t, rr)
}

func TestProtectedRouteWithExpiredBearerReturnsUnauthorized(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser("ada@example.com", "")
	server := NewHTTPServer(newTestService(fs, &fakeCompleter{}), "*", nil)

	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		JTI:    "jti-expired",
		Exp:    time.Now().Add(-1 * time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rr, _ := doJSON(t, server, http.MethodGet, "/api/projects", token, "")
	assertUnauthorizedCode(t, rr)
}

func TestTokenForDeletedUserReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore(), &fakeCompleter{}), "*", nil)

	rr, _ := doJSON(t, server, http.MethodGet, "/api/projects", issueTestToken(t, 4242, "gone@example.com"), "")
	assertUnauthorizedCode(t, rr)
}

func issueTestToken(t *testing.T, userID int64, email string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-secret"), auth.NewClaims(userID, email, time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func assertUnauthorizedCode(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected code UNAUTHORIZED, got %v", payload["code"])
	}
}
