// Package auth はパスワード認証とアクセストークンによるリクエスト認証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/todoman/internal/metrics"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// TokenTypeBearer はレスポンスに含めるトークン種別。
const TokenTypeBearer = "bearer"

// MaxEmailBytes はusers.emailカラム（VARCHAR(320)）に保存できるメールアドレスの上限。
const MaxEmailBytes = 320

// 未登録メールアドレスでのログイン時に照合するダミーパスワード。
const dummyPassword = "todoman-dummy-password"

// AuthResult は登録・ログイン成功時に返すアクセストークン。
type AuthResult struct {
	AccessToken string
	TokenType   string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   *PasswordHasher
	tokens   *TokenService
	metrics  metrics.MetricsCollector

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	hasher *PasswordHasher,
	tokens *TokenService,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		metrics:  collector,
	}
}

// Register は新規ユーザーを登録し、アクセストークンを発行する。
// メールアドレスが登録済みの場合はCONFLICTエラーを返す。
func (s *Service) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.ResultFailure)
		return nil, model.NewInvalidRequestError("メールアドレスとパスワードは必須です")
	}
	if !storableEmail(email) {
		s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.ResultFailure)
		return nil, model.NewInvalidRequestError("メールアドレスの形式が不正です")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.ResultFailure)
		return nil, model.NewEmailConflictError()
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// 存在確認と作成の間に同じメールアドレスが登録された場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.ResultFailure)
			return nil, model.NewEmailConflictError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	result, err := s.issue(email)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.ResultSuccess)
	slog.Info("user registered", slog.String("user_id", user.ID))
	return result, nil
}

// Login はメールアドレスとパスワードを照合し、アクセストークンを発行する。
// 未登録メールアドレスとパスワード不一致は同一のUNAUTHORIZEDエラーになる。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	// 保存できない値はDBに問い合わせず未登録として扱う
	var user *model.User
	if storableEmail(email) {
		found, err := s.userRepo.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by email: %w", err)
		}
		user = found
	}

	if user == nil {
		// 応答時間からアカウントの有無が推測されないよう、ダミーハッシュとも照合する
		s.hasher.Verify(password, s.getDummyHash())
		s.metrics.RecordAuthEvent(metrics.EventLogin, metrics.ResultFailure)
		return nil, model.NewInvalidCredentialsError()
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.RecordAuthEvent(metrics.EventLogin, metrics.ResultFailure)
		slog.Info("login failed", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	result, err := s.issue(user.Email)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthEvent(metrics.EventLogin, metrics.ResultSuccess)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return result, nil
}

// Authenticate はアクセストークンを検証し、トークンのsubjectに対応するユーザーを返す。
// トークンが不正・期限切れの場合、およびユーザーが存在しない場合はUNAUTHORIZEDエラーを返す。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	email, ok := s.tokens.Verify(token)
	if !ok {
		s.metrics.RecordAuthEvent(metrics.EventToken, metrics.ResultFailure)
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token subject: %w", err)
	}
	if user == nil {
		s.metrics.RecordAuthEvent(metrics.EventToken, metrics.ResultFailure)
		return nil, model.NewUnauthorizedError()
	}

	s.metrics.RecordAuthEvent(metrics.EventToken, metrics.ResultSuccess)
	return user, nil
}

// storableEmail はメールアドレスがusersテーブルに保存・照会できる値かを判定する。
// PostgreSQLはNULバイトと不正なUTF-8を受け付けない。
func storableEmail(email string) bool {
	return len(email) <= MaxEmailBytes &&
		utf8.ValidString(email) &&
		!strings.ContainsRune(email, 0)
}

func (s *Service) issue(email string) (*AuthResult, error) {
	token, err := s.tokens.Issue(email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	return &AuthResult{AccessToken: token, TokenType: TokenTypeBearer}, nil
}

// getDummyHash は設定コストで計算したダミーハッシュを返す。初回呼び出し時に計算する。
func (s *Service) getDummyHash() string {
	s.dummyOnce.Do(func() {
		hashed, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			slog.Error("failed to compute dummy password hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hashed
	})
	return s.dummyHash
}
