package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidTokenConfig はTokenConfigが不正な場合に返される。
var ErrInvalidTokenConfig = errors.New("invalid token config")

// TokenConfig はアクセストークンの署名設定。起動時に1回構築する。
type TokenConfig struct {
	Secret    string        // HMAC署名鍵
	Algorithm string        // HS256, HS384, HS512 のいずれか
	TTL       time.Duration // 発行からの有効期間
}

// TokenService はJWTアクセストークンの発行と検証を行う。
// トークンはサーバー側に保存しない。署名鍵を変更すると発行済みトークンは全て無効になる。
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenService はTokenServiceを生成する。
// 署名鍵が空、またはアルゴリズムがHMAC系でない場合はエラーを返す。
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: secret is empty", ErrInvalidTokenConfig)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidTokenConfig)
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidTokenConfig, cfg.Algorithm)
	}

	s := &TokenService{
		secret: []byte(cfg.Secret),
		method: method,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
	// jwt/v5はexpと同時刻のトークンを拒否するため、時刻に関するクレームはVerifyで判定する
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return s, nil
}

// Issue は設定された有効期間でsubjectのアクセストークンを発行する。
func (s *TokenService) Issue(subject string) (string, error) {
	return s.IssueWithTTL(subject, s.ttl)
}

// IssueWithTTL は指定した有効期間でsubjectのアクセストークンを発行する。
// クレームは sub, iat, exp の3つ。
func (s *TokenService) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(ttl))),
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、subjectを返す。
// 署名・アルゴリズム・有効期限のいずれかが不正、またはsubjectが空の場合は ("", false) を返す。
func (s *TokenService) Verify(tokenString string) (string, bool) {
	if tokenString == "" {
		return "", false
	}

	claims := &jwt.RegisteredClaims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	if !s.withinValidity(claims) {
		return "", false
	}
	if claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

// withinValidity は現在時刻がexp以下（nbfがあればnbf以降）であればtrueを返す。
// leewayは設けない。
func (s *TokenService) withinValidity(claims *jwt.RegisteredClaims) bool {
	if claims.ExpiresAt == nil {
		return false
	}
	now := s.now()
	if now.After(claims.ExpiresAt.Time) {
		return false
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return false
	}
	return true
}

// ceilSecond はtを秒単位に切り上げる。
// NumericDateは秒精度のため、切り捨てると発行+TTLより前に失効してしまう。
func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Second)
}
