// Package auth はOAuth認証とパスワード認証、セッション管理、認証状態の通知を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/repository"
)

// 認証失敗時に画面へ表示するメッセージ
const (
	msgInvalidCredentials = "Invalid email or password"
	msgProviderFailed     = "Could not sign in with Google. Please try again."
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	PictureURL     string
	Locale         string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// Avatars はプロバイダのプロフィール画像を取り込む。
type Avatars interface {
	Import(ctx context.Context, userID, rawURL string) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int    // セッション有効期間（秒）
	BcryptCost    int    // 0ならbcrypt.DefaultCost
	DefaultLocale string // 言語が決まらない場合の既定値
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	broker      *Broker
	avatars     Avatars
	config      ServiceConfig
}

// NewService はServiceを生成する。brokerがnilなら新しいBrokerを使う。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	broker *Broker,
	config ServiceConfig,
) *Service {
	if broker == nil {
		broker = NewBroker()
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.DefaultLocale == "" {
		config.DefaultLocale = "en"
	}
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		broker:      broker,
		config:      config,
	}
}

// SetAvatars は新規ユーザーのプロフィール画像の取り込み先を設定する。
func (s *Service) SetAvatars(a Avatars) {
	s.avatars = a
}

// Broker は認証通知のブローカーを返す。
func (s *Service) Broker() *Broker {
	return s.broker
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に自動作成する。
// languageは新規ユーザーの言語設定（ブラウザの言語から解決したもの）。
func (s *Service) HandleCallback(ctx context.Context, code, language string) (*model.Session, *model.User, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, &model.AuthError{Message: msgProviderFailed, Err: err}
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var user *model.User
	if identity != nil {
		user, err = s.userRepo.FindByID(ctx, identity.UserID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, nil, model.NewUserNotFoundError()
		}
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		user, err = s.createOAuthUser(ctx, userInfo, language)
		if err != nil {
			return nil, nil, err
		}
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, user, nil
}

func (s *Service) createOAuthUser(ctx context.Context, info *OAuthUserInfo, language string) (*model.User, error) {
	now := time.Now()
	if language == "" {
		language = s.config.DefaultLocale
	}

	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     strings.ToLower(info.Email),
		Name:      info.Name,
		Admin:     false,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// プロフィール画像の取り込みに失敗してもログインは続行する
	if s.avatars != nil && info.PictureURL != "" {
		url, err := s.avatars.Import(ctx, newUser.ID, info.PictureURL)
		if err != nil {
			slog.Warn("failed to import avatar",
				slog.String("user_id", newUser.ID),
				slog.String("error", err.Error()),
			)
		} else {
			newUser.PhotoURL = url
		}
	}

	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         newUser.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}

	if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("provider", info.Provider),
	)
	return newUser, nil
}

// SignInWithPassword はメールアドレスとパスワードで認証し、セッションを発行する。
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, model.ProviderPassword, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil || identity.SecretHash == "" {
		return nil, nil, &model.AuthError{Message: msgInvalidCredentials}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.SecretHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, nil, &model.AuthError{Message: msgInvalidCredentials}
		}
		return nil, nil, &model.AuthError{Message: msgInvalidCredentials, Err: err}
	}

	user, err := s.userRepo.FindByID(ctx, identity.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, &model.AuthError{Message: msgInvalidCredentials}
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in with password", slog.String("user_id", user.ID))
	return session, user, nil
}

// CreateAccount はパスワード認証のアカウントを作成し、セッションを発行する。
func (s *Service) CreateAccount(ctx context.Context, email, password, name, language string) (*model.Session, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, nil, model.NewEmailInUseError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if language == "" {
		language = s.config.DefaultLocale
	}
	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	identity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       model.ProviderPassword,
		ProviderUserID: email,
		SecretHash:     string(hash),
		CreatedAt:      now,
	}
	if err := s.userRepo.CreateWithIdentity(ctx, user, identity); err != nil {
		return nil, nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("new user registered", slog.String("user_id", user.ID))
	return session, user, nil
}

// SignOut はセッションを破棄し、購読者へサインアウトを通知する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.broker.Publish(ctx, sessionID, "")
	slog.Info("user logged out")
	return nil
}

// CurrentIdentity はセッションのユーザーIDを返す。無効なセッションは空文字列を返す。
func (s *Service) CurrentIdentity(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return "", nil
	}
	return session.UserID, nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	userID, err := s.CurrentIdentity(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, &model.AuthError{Message: "session not found or expired"}
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Subscribe はsessionIDの認証状態を購読する。
// fnは直ちに現在の値で1回呼ばれ、以後は変化のたびに呼ばれる。
// 現在値の読み取り中に通知が届いた場合は、古い現在値を後から渡さない。
// ctxが終了するか戻り値を呼ぶと購読を解除する。
func (s *Service) Subscribe(ctx context.Context, sessionID string, fn func(userID string)) func() {
	var mu sync.Mutex
	delivered := false
	unsubscribe := s.broker.subscribe(sessionID, func(userID string) {
		mu.Lock()
		defer mu.Unlock()
		delivered = true
		fn(userID)
	})

	current, err := s.CurrentIdentity(ctx, sessionID)
	if err != nil {
		slog.Warn("failed to resolve current identity",
			slog.String("error", err.Error()),
		)
	}

	mu.Lock()
	if !delivered {
		fn(current)
	}
	mu.Unlock()

	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
