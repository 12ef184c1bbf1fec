package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/ideaboard/internal/model"
)

const testSecret = "test-session-secret-32bytes-long!"

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		Secret: testSecret,
		MaxAge: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	return issuer
}

func tokenTestUser() *model.User {
	name := "Taro Yamada"
	image := "https://example.com/avatar.jpg"
	return &model.User{
		ID:       "user-1",
		Email:    "taro@example.com",
		Name:     &name,
		Image:    &image,
		Provider: model.ProviderCredentials,
		Role:     model.RoleUser,
	}
}

func TestNewTokenIssuer_EmptySecret_ReturnsError(t *testing.T) {
	_, err := NewTokenIssuer(TokenIssuerConfig{Secret: ""})
	if err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestNewTokenIssuer_ZeroMaxAge_DefaultsTo24Hours(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenIssuerConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if issuer.MaxAge() != 24*time.Hour {
		t.Errorf("MaxAge = %v, want %v", issuer.MaxAge(), 24*time.Hour)
	}
}

func TestIssueAndProject_RoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)
	user := tokenTestUser()

	token, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	view, ok := issuer.Project(token)
	if !ok {
		t.Fatal("Project should succeed for a freshly issued token")
	}

	if view.ID != "user-1" {
		t.Errorf("ID = %q, want user-1", view.ID)
	}
	if view.Email != "taro@example.com" {
		t.Errorf("Email = %q", view.Email)
	}
	if view.Name != "Taro Yamada" {
		t.Errorf("Name = %q", view.Name)
	}
	if view.Image != "https://example.com/avatar.jpg" {
		t.Errorf("Image = %q", view.Image)
	}
	if view.Provider != model.ProviderCredentials {
		t.Errorf("Provider = %q", view.Provider)
	}
}

func TestProject_ViewNeverContainsPasswordHash(t *testing.T) {
	issuer := newTestIssuer(t)
	user := tokenTestUser()
	hashed := "$2a$12$secret-hash-value"
	user.PasswordHash = &hashed

	token, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// トークン本体にハッシュが含まれないこと
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	for key, val := range claims {
		if s, ok := val.(string); ok && s == hashed {
			t.Errorf("claim %q contains the password hash", key)
		}
	}
}

func TestProject_TamperedToken_Fails(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.Issue(tokenTestUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// ペイロードの1文字を改変
	tampered := []byte(token)
	mid := len(tampered) / 2
	if tampered[mid] == 'a' {
		tampered[mid] = 'b'
	} else {
		tampered[mid] = 'a'
	}

	if _, ok := issuer.Project(string(tampered)); ok {
		t.Error("Project should fail for tampered token")
	}
}

func TestProject_WrongSecret_Fails(t *testing.T) {
	issuer := newTestIssuer(t)
	token, err := issuer.Issue(tokenTestUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	other, err := NewTokenIssuer(TokenIssuerConfig{
		Secret: "another-secret-entirely-32bytes!!",
		MaxAge: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}

	if _, ok := other.Project(token); ok {
		t.Error("Project should fail for token signed with a different secret")
	}
}

func TestProject_ExpiredToken_Fails(t *testing.T) {
	issuer := newTestIssuer(t)

	// 発行時刻を過去に固定してトークンを作り、検証は現在時刻で行う
	issued := time.Now().Add(-2 * time.Hour)
	issuer.now = func() time.Time { return issued }
	token, err := issuer.Issue(tokenTestUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	issuer.now = time.Now
	if _, ok := issuer.Project(token); ok {
		t.Error("Project should fail for expired token")
	}
}

func TestProject_NoneAlgorithm_Fails(t *testing.T) {
	issuer := newTestIssuer(t)

	// alg=noneのトークンは拒否されること
	claims := issuer.MintClaims(tokenTestUser())
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to create unsigned token: %v", err)
	}

	if _, ok := issuer.Project(unsigned); ok {
		t.Error("Project should reject alg=none tokens")
	}
}

func TestProject_MalformedInput_Fails(t *testing.T) {
	issuer := newTestIssuer(t)

	for _, input := range []string{"", "garbage", "a.b.c", "ey.ey.ey"} {
		if _, ok := issuer.Project(input); ok {
			t.Errorf("Project(%q) should fail", input)
		}
	}
}

func TestMintClaims_SetsExpiryFromMaxAge(t *testing.T) {
	issuer := newTestIssuer(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return fixed }

	claims := issuer.MintClaims(tokenTestUser())

	if !claims.IssuedAt.Time.Equal(fixed) {
		t.Errorf("IssuedAt = %v, want %v", claims.IssuedAt.Time, fixed)
	}
	if !claims.ExpiresAt.Time.Equal(fixed.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, fixed.Add(time.Hour))
	}
	if claims.Issuer != tokenIssuerName {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, tokenIssuerName)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
}
