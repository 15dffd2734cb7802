package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todoman/internal/model"
)

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, token string) (*model.User, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, token)
	}
	return nil, model.NewUnauthorizedError()
}

var _ Authenticator = (*mockAuthenticator)(nil)

// validTokenAuthenticator は "valid-token" のみを受理する。
func validTokenAuthenticator() *mockAuthenticator {
	return &mockAuthenticator{
		authenticateFn: func(_ context.Context, token string) (*model.User, error) {
			if token == "valid-token" {
				return &model.User{ID: "user-1", Email: "alice@example.com"}, nil
			}
			return nil, model.NewUnauthorizedError()
		},
	}
}

func assertUnauthorized(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if got := resp.Header.Get("WWW-Authenticate"); got != "Bearer" {
		t.Errorf("WWW-Authenticate = %q, want %q", got, "Bearer")
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
	}
}

func TestBearerAuth_ValidToken_InjectsUser(t *testing.T) {
	mw := NewBearerAuthMiddleware(validTokenAuthenticator())

	var captured *model.User
	var capturedID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = UserFromContext(r.Context())
		capturedID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured == nil || captured.Email != "alice@example.com" {
		t.Errorf("user = %+v, want alice@example.com", captured)
	}
	if capturedID != "user-1" {
		t.Errorf("userID = %q, want %q", capturedID, "user-1")
	}
}

func TestBearerAuth_SchemeIsCaseInsensitive(t *testing.T) {
	mw := NewBearerAuthMiddleware(validTokenAuthenticator())

	for _, header := range []string{"bearer valid-token", "BEARER valid-token", "Bearer  valid-token"} {
		called := false
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set("Authorization", header)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if !called {
			t.Errorf("header %q: handler should have been called", header)
		}
	}
}

// Authorizationヘッダーがない、または形式が不正な場合はハンドラーに到達しない。
func TestBearerAuth_MissingOrMalformedHeader_Returns401(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"ヘッダーなし", ""},
		{"スキームのみ", "Bearer"},
		{"スキームと空白のみ", "Bearer   "},
		{"Basicスキーム", "Basic dXNlcjpwYXNz"},
		{"トークンに空白を含む", "Bearer valid token"},
		{"スキームなし", "valid-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authCalled := false
			authn := &mockAuthenticator{
				authenticateFn: func(_ context.Context, _ string) (*model.User, error) {
					authCalled = true
					return nil, model.NewUnauthorizedError()
				},
			}
			handler := NewBearerAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assertUnauthorized(t, w)
			if authCalled {
				t.Error("authenticator should not be called for malformed header")
			}
		})
	}
}

func TestBearerAuth_InvalidToken_Returns401(t *testing.T) {
	handler := NewBearerAuthMiddleware(validTokenAuthenticator())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer expired-or-forged")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assertUnauthorized(t, w)
}

// ストア障害は401ではなく500として扱う。
func TestBearerAuth_StoreError_Returns500(t *testing.T) {
	authn := &mockAuthenticator{
		authenticateFn: func(_ context.Context, _ string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	handler := NewBearerAuthMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != "" {
		t.Errorf("WWW-Authenticate = %q, want empty for internal errors", got)
	}
}

func TestUserFromContext_Empty_ReturnsError(t *testing.T) {
	if _, err := UserFromContext(context.Background()); err == nil {
		t.Error("expected error for context without user")
	}
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for context without user")
	}
}

// TestRouterIntegration_ProtectedGroup は認証ミドルウェアを適用したルートグループのみが
// 保護されることを検証する。
func TestRouterIntegration_ProtectedGroup(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/public", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(NewBearerAuthMiddleware(validTokenAuthenticator()))
		r.Get("/api/protected", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
		})
	})

	// 公開ルートは認証不要
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public", nil))
	if w.Code != http.StatusOK {
		t.Errorf("public status = %d, want %d", w.Code, http.StatusOK)
	}

	// 保護ルートはトークンなしで401
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/protected", nil))
	assertUnauthorized(t, w)

	// 保護ルートは有効なトークンで200
	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("protected status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["user_id"] != "user-1" {
		t.Errorf("user_id = %q, want %q", body["user_id"], "user-1")
	}
}
