package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/ideaboard/internal/model"
)

// tokenIssuerName はセッショントークンのiss claim値。
const tokenIssuerName = "ideaboard"

// SessionClaims はセッショントークンのクレームセット。
// サーバー側にセッションストアを持たないステートレス方式のため、
// セッションビューの復元に必要な情報をすべてクレームに埋め込む。
type SessionClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Image    string `json:"image,omitempty"`
	Provider string `json:"provider"`
}

// TokenIssuerConfig はTokenIssuerの設定。
type TokenIssuerConfig struct {
	Secret string        // HMAC署名鍵（必須）
	MaxAge time.Duration // トークン有効期間
}

// TokenIssuer は認証済みユーザーから署名付きセッショントークンを発行し、
// 受信トークンからセッションビューを復元する。
// トークンはHS256で署名され、自然失効以外の無効化手段を持たない
// （ステートレスセッションの設計上のトレードオフ）。
type TokenIssuer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。署名鍵が空の場合はエラーを返す。
func NewTokenIssuer(config TokenIssuerConfig) (*TokenIssuer, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if config.MaxAge <= 0 {
		config.MaxAge = 24 * time.Hour
	}
	return &TokenIssuer{
		secret: []byte(config.Secret),
		maxAge: config.MaxAge,
		now:    time.Now,
	}, nil
}

// MintClaims は認証済みユーザーからクレームセットを構築する。
// subjectにはUser.ID、providerには最後に使用したプロバイダーを設定する。
func (i *TokenIssuer) MintClaims(user *model.User) *SessionClaims {
	now := i.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    tokenIssuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.maxAge)),
		},
		Email:    user.Email,
		Name:     user.DisplayName(),
		Provider: user.Provider,
	}
	if user.Image != nil {
		claims.Image = *user.Image
	}
	return claims
}

// Issue は認証済みユーザーから署名付きセッショントークンを発行する。
func (i *TokenIssuer) Issue(user *model.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, i.MintClaims(user))
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// MaxAge はトークンの有効期間を返す。Cookieの有効期間設定に使用する。
func (i *TokenIssuer) MaxAge() time.Duration {
	return i.maxAge
}

// Project はトークン文字列を検証し、セッションビューに射影する。
// 署名不正・期限切れ・不正形式のいずれの場合もfalseを返し、
// エラーは返さない。検証失敗はルートゲートでは「セッションなし」として扱われる。
func (i *TokenIssuer) Project(tokenString string) (*model.SessionView, bool) {
	if tokenString == "" {
		return nil, false
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, false
	}

	return &model.SessionView{
		ID:       claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Image:    claims.Image,
		Provider: claims.Provider,
	}, true
}

// keyFunc は検証時に署名方式を確認して鍵を返す。
func (i *TokenIssuer) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
	}
	return i.secret, nil
}
