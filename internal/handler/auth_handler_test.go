package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/ideaboard/internal/auth"
	"github.com/hitoshi/ideaboard/internal/middleware"
	"github.com/hitoshi/ideaboard/internal/model"
)

// mockCredentialService はテスト用のクレデンシャル認証サービスモック。
type mockCredentialService struct {
	signupFn func(ctx context.Context, input auth.SignupInput) (*model.User, error)
	signinFn func(ctx context.Context, input auth.SigninInput) (*model.User, error)
}

func (m *mockCredentialService) Signup(ctx context.Context, input auth.SignupInput) (*model.User, error) {
	return m.signupFn(ctx, input)
}

func (m *mockCredentialService) Signin(ctx context.Context, input auth.SigninInput) (*model.User, error) {
	return m.signinFn(ctx, input)
}

// mockIdentityAuthenticator はテスト用の外部IdP認証モック。
type mockIdentityAuthenticator struct {
	authenticateFn func(ctx context.Context, assertion auth.ExternalAssertion) (*model.User, error)
}

func (m *mockIdentityAuthenticator) Authenticate(ctx context.Context, assertion auth.ExternalAssertion) (*model.User, error) {
	return m.authenticateFn(ctx, assertion)
}

// mockOAuthProvider はテスト用のOAuthプロバイダーモック。
type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*auth.ExternalAssertion, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	return m.getLoginURLFn(state)
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*auth.ExternalAssertion, error) {
	return m.exchangeCodeFn(ctx, code)
}

// mockSessionIssuer はテスト用のセッション発行モック。
type mockSessionIssuer struct {
	issueFn   func(user *model.User) (string, error)
	projectFn func(tokenString string) (*model.SessionView, bool)
}

func (m *mockSessionIssuer) Issue(user *model.User) (string, error) {
	if m.issueFn != nil {
		return m.issueFn(user)
	}
	return "issued-token", nil
}

func (m *mockSessionIssuer) Project(tokenString string) (*model.SessionView, bool) {
	if m.projectFn != nil {
		return m.projectFn(tokenString)
	}
	return nil, false
}

func (m *mockSessionIssuer) MaxAge() time.Duration {
	return 24 * time.Hour
}

// mockAvatarRefresher はテスト用のアバター取得モック。
type mockAvatarRefresher struct {
	refreshFn func(ctx context.Context, userID, imageURL string) error
	called    bool
}

func (m *mockAvatarRefresher) RefreshAvatar(ctx context.Context, userID, imageURL string) error {
	m.called = true
	if m.refreshFn != nil {
		return m.refreshFn(ctx, userID, imageURL)
	}
	return nil
}

// compile-time interface checks
var (
	_ CredentialServiceInterface     = (*mockCredentialService)(nil)
	_ IdentityAuthenticatorInterface = (*mockIdentityAuthenticator)(nil)
	_ OAuthProviderInterface         = (*mockOAuthProvider)(nil)
	_ SessionIssuerInterface         = (*mockSessionIssuer)(nil)
	_ AvatarRefresher                = (*mockAvatarRefresher)(nil)
)

func testAuthUser() *model.User {
	name := "Taro Yamada"
	return &model.User{
		ID:       "user-1",
		Email:    "taro@example.com",
		Name:     &name,
		Provider: model.ProviderCredentials,
		Role:     model.RoleUser,
	}
}

func newAuthHandler(credentials CredentialServiceInterface, identity IdentityAuthenticatorInterface, oauth OAuthProviderInterface, avatars AvatarRefresher) *AuthHandler {
	return NewAuthHandler(credentials, identity, oauth, &mockSessionIssuer{}, avatars, AuthHandlerConfig{
		BaseURL: "http://localhost:3000",
	})
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	res := rec.Result()
	defer res.Body.Close()
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// サインアップ成功時に201とユーザーIDが返ることを検証
func TestSignup_Success_Returns201(t *testing.T) {
	credentials := &mockCredentialService{
		signupFn: func(ctx context.Context, input auth.SignupInput) (*model.User, error) {
			if input.Email != "taro@example.com" {
				t.Errorf("input.Email = %q", input.Email)
			}
			return testAuthUser(), nil
		},
	}
	h := newAuthHandler(credentials, nil, nil, nil)

	body := `{"email":"taro@example.com","password":"Passw0rd!","confirmPassword":"Passw0rd!","name":"Taro Yamada"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp signupResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.UserID != "user-1" {
		t.Errorf("userId = %q, want user-1", resp.UserID)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not contain password fields")
	}
}

// 検証エラー時に400とフィールド詳細が返ることを検証
func TestSignup_ValidationError_Returns400WithDetails(t *testing.T) {
	credentials := &mockCredentialService{
		signupFn: func(ctx context.Context, input auth.SignupInput) (*model.User, error) {
			return nil, &model.ValidationError{
				Details: []model.FieldError{
					{Path: "email", Code: "email", Message: "invalid email"},
					{Path: "password", Code: "password", Message: "weak password"},
				},
			}
		},
	}
	h := newAuthHandler(credentials, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeValidationFailed {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidationFailed)
	}
	if len(body.Details) != 2 {
		t.Errorf("details length = %d, want 2", len(body.Details))
	}
}

// メールアドレス重複時に409が返ることを検証
func TestSignup_EmailTaken_Returns409(t *testing.T) {
	credentials := &mockCredentialService{
		signupFn: func(ctx context.Context, input auth.SignupInput) (*model.User, error) {
			return nil, model.NewEmailTakenError()
		},
	}
	h := newAuthHandler(credentials, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}

	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeEmailTaken {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeEmailTaken)
	}
}

// 不正なJSONで400が返ることを検証
func TestSignup_InvalidJSON_Returns400(t *testing.T) {
	h := newAuthHandler(&mockCredentialService{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{invalid`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// サインイン成功時にセッションCookieとビューが返ることを検証
func TestSignin_Success_SetsSessionCookie(t *testing.T) {
	credentials := &mockCredentialService{
		signinFn: func(ctx context.Context, input auth.SigninInput) (*model.User, error) {
			return testAuthUser(), nil
		},
	}
	h := newAuthHandler(credentials, nil, nil, nil)

	body := `{"email":"taro@example.com","password":"Passw0rd!"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Signin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	cookie := findCookie(t, rec, middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if cookie.Value != "issued-token" {
		t.Errorf("cookie value = %q, want issued-token", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if cookie.MaxAge != int((24 * time.Hour).Seconds()) {
		t.Errorf("cookie MaxAge = %d, want %d", cookie.MaxAge, int((24*time.Hour).Seconds()))
	}

	var view model.SessionView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if view.ID != "user-1" || view.Email != "taro@example.com" {
		t.Errorf("unexpected view: %+v", view)
	}
}

// 認証失敗時に401が返ることを検証
func TestSignin_InvalidCredentials_Returns401(t *testing.T) {
	credentials := &mockCredentialService{
		signinFn: func(ctx context.Context, input auth.SigninInput) (*model.User, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := newAuthHandler(credentials, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Signin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if findCookie(t, rec, middleware.SessionCookieName) != nil {
		t.Error("session cookie must not be set on failure")
	}
}

// Google OAuthフロー開始でstateクッキーとリダイレクトが発生することを検証
func TestGoogleLogin_RedirectsWithStateCookie(t *testing.T) {
	var receivedState string
	oauth := &mockOAuthProvider{
		getLoginURLFn: func(state string) string {
			receivedState = state
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	h := newAuthHandler(nil, nil, oauth, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	rec := httptest.NewRecorder()
	h.GoogleLogin(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}

	cookie := findCookie(t, rec, oauthStateCookie)
	if cookie == nil {
		t.Fatal("expected oauth state cookie")
	}
	if cookie.Value != receivedState {
		t.Errorf("cookie state = %q, login URL state = %q", cookie.Value, receivedState)
	}
	if !strings.Contains(rec.Header().Get("Location"), receivedState) {
		t.Error("redirect URL should contain the state")
	}
}

// state不一致でコールバックが400になることを検証
func TestGoogleCallback_StateMismatch_Returns400(t *testing.T) {
	h := newAuthHandler(nil, nil, &mockOAuthProvider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state=received", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "stored"})
	rec := httptest.NewRecorder()
	h.GoogleCallback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// OAuthコールバック成功でセッションが発行されダッシュボードへリダイレクトされることを検証
func TestGoogleCallback_Success_RedirectsToDashboard(t *testing.T) {
	oauth := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*auth.ExternalAssertion, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want auth-code", code)
			}
			return &auth.ExternalAssertion{
				Email:             "hanako@example.com",
				Name:              "Hanako Sato",
				Image:             "https://example.com/photo.jpg",
				ProviderAccountID: "google-123",
				ProviderName:      model.ProviderGoogle,
			}, nil
		},
	}
	identity := &mockIdentityAuthenticator{
		authenticateFn: func(ctx context.Context, assertion auth.ExternalAssertion) (*model.User, error) {
			user := testAuthUser()
			user.Provider = model.ProviderGoogle
			return user, nil
		},
	}
	avatars := &mockAvatarRefresher{}
	h := newAuthHandler(nil, identity, oauth, avatars)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "xyz"})
	rec := httptest.NewRecorder()
	h.GoogleCallback(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusTemporaryRedirect, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "http://localhost:3000/dashboard" {
		t.Errorf("Location = %q", got)
	}
	if findCookie(t, rec, middleware.SessionCookieName) == nil {
		t.Error("expected session cookie to be set")
	}
	if !avatars.called {
		t.Error("expected avatar refresh to be triggered")
	}
}

// アバター取得失敗でもサインインが成功することを検証
func TestGoogleCallback_AvatarFailure_DoesNotBlockSignin(t *testing.T) {
	oauth := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*auth.ExternalAssertion, error) {
			return &auth.ExternalAssertion{
				Email:        "hanako@example.com",
				Image:        "https://example.com/photo.jpg",
				ProviderName: model.ProviderGoogle,
			}, nil
		},
	}
	identity := &mockIdentityAuthenticator{
		authenticateFn: func(ctx context.Context, assertion auth.ExternalAssertion) (*model.User, error) {
			return testAuthUser(), nil
		},
	}
	avatars := &mockAvatarRefresher{
		refreshFn: func(ctx context.Context, userID, imageURL string) error {
			return model.NewAvatarFetchFailedError(context.DeadlineExceeded)
		},
	}
	h := newAuthHandler(nil, identity, oauth, avatars)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "xyz"})
	rec := httptest.NewRecorder()
	h.GoogleCallback(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}
}

// アサーション不正（拒否）が400、ストア障害が500になることを検証
func TestGoogleCallback_AuthenticateFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid assertion", model.NewInvalidAssertionError("email is required"), http.StatusBadRequest},
		{"store failure", model.NewStoreFailureError(context.DeadlineExceeded), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oauth := &mockOAuthProvider{
				exchangeCodeFn: func(ctx context.Context, code string) (*auth.ExternalAssertion, error) {
					return &auth.ExternalAssertion{Email: "x@example.com", ProviderName: model.ProviderGoogle}, nil
				},
			}
			identity := &mockIdentityAuthenticator{
				authenticateFn: func(ctx context.Context, assertion auth.ExternalAssertion) (*model.User, error) {
					return nil, tt.err
				},
			}
			h := newAuthHandler(nil, identity, oauth, nil)

			req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state=xyz", nil)
			req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "xyz"})
			rec := httptest.NewRecorder()
			h.GoogleCallback(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

// ログアウトでCookieがクリアされることを検証
func TestLogout_ClearsSessionCookie(t *testing.T) {
	h := newAuthHandler(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "some-token"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}

	cookie := findCookie(t, rec, middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie in response")
	}
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Errorf("cookie should be cleared: value=%q maxAge=%d", cookie.Value, cookie.MaxAge)
	}
}

// Meが有効なセッションでビューを返すことを検証
func TestMe_ValidSession_ReturnsView(t *testing.T) {
	sessions := &mockSessionIssuer{
		projectFn: func(tokenString string) (*model.SessionView, bool) {
			if tokenString != "valid-token" {
				return nil, false
			}
			return &model.SessionView{ID: "user-1", Email: "taro@example.com"}, true
		},
	}
	h := NewAuthHandler(nil, nil, nil, sessions, nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "valid-token"})
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var view model.SessionView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if view.ID != "user-1" {
		t.Errorf("ID = %q, want user-1", view.ID)
	}
}

// Meがセッションなし/無効トークンで401を返すことを検証
func TestMe_NoOrInvalidSession_Returns401(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil, &mockSessionIssuer{}, nil, AuthHandlerConfig{})

	// Cookieなし
	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no cookie: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	// 無効トークン
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "garbage"})
	rec = httptest.NewRecorder()
	h.Me(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
