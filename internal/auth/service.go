// Package auth はローカル認証、OAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/callumw118/Secret-Register-Login/internal/credential"
	"github.com/callumw118/Secret-Register-Login/internal/model"
	"github.com/callumw118/Secret-Register-Login/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdPに対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// MetricsRecorder は認証イベントのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordRegistration(result string)
	RecordLogin(result string)
	RecordOAuthCallback(result string)
	RecordSessionEstablished()
	RecordSessionTerminated()
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionSecret string
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// ローカル登録/ログイン、OAuthコールバックの調停、セッションの発行・復元・破棄を担う。
type Service struct {
	oauth       OAuthProvider
	verifier    credential.Verifier
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	metrics     MetricsRecorder
	config      ServiceConfig
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	oauth OAuthProvider,
	verifier credential.Verifier,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		verifier:    verifier,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		metrics:     metrics,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// Register はローカルアカウントを登録し、セッションを発行する。
// 空のemail/passwordはストアに触れる前に拒否する。
// identity keyの衝突はDBのUNIQUE制約で検出し、既存行を上書きしない。
func (s *Service) Register(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, model.NewValidationError("email is required")
	}
	if password == "" {
		return nil, model.NewValidationError("password is required")
	}

	encoded, err := s.verifier.Encode(password)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user.Credential.String = encoded
	user.Credential.Valid = true

	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			s.recordRegistration("duplicate")
			return nil, model.NewDuplicateIdentityError(email)
		}
		s.recordRegistration("error")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		// ユーザー行は残るが、再ログインで再検証されるため許容する
		s.recordRegistration("error")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.recordRegistration("success")
	slog.Info("user registered",
		slog.String("user_id", user.ID),
	)

	return session, nil
}

// LoginLocal はローカル認証情報を検証し、セッションを発行する。
// ユーザー不在とパスワード不一致は同一のエラー値を返し、
// 不在時もダミー照合でタイミングを揃える。
// セッションは検証済みの保存済みユーザー行に対して確立する。
func (s *Service) LoginLocal(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.recordLogin("rejected")
		return nil, model.NewNotFoundOrMismatchError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		s.recordLogin("error")
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil || !user.Credential.Valid {
		// 不在（またはOAuth連携のみ）でも照合コストを消費する
		s.verifier.DummyCompare(password)
		s.recordLogin("rejected")
		return nil, model.NewNotFoundOrMismatchError()
	}

	if err := s.verifier.Compare(user.Credential.String, password); err != nil {
		s.recordLogin("rejected")
		return nil, model.NewNotFoundOrMismatchError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		s.recordLogin("error")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.recordLogin("success")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)

	return session, nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// provider subjectに紐付く既存ユーザーがいればそのユーザーで、
// いなければ原子的なfind-or-createで新規ユーザーを作成してログインする。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.recordOAuthCallback("exchange_failed")
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	now := time.Now()
	candidate := &model.User{
		ID:        uuid.New().String(),
		Email:     userInfo.Email,
		Name:      userInfo.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	identity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         candidate.ID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      now,
	}

	userID, created, err := s.identRepo.FindOrCreate(ctx, candidate, identity)
	if err != nil {
		s.recordOAuthCallback("error")
		return nil, fmt.Errorf("failed to find or create identity: %w", err)
	}

	if created {
		slog.Info("new user created via oauth",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		slog.Info("existing user logged in via oauth",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		s.recordOAuthCallback("error")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.recordOAuthCallback("success")
	return session, nil
}

// Restore はセッショントークンから現在のユーザーを復元する。
// 署名不正・期限切れ・セッション不在・ユーザー消失はすべてAnonymous（nil, nil）に
// 縮退し、エラーはストア障害の場合のみ返す。
func (s *Service) Restore(ctx context.Context, token string) (*model.User, error) {
	sessionID, ok := parseSessionToken(s.config.SessionSecret, token)
	if !ok {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	return user, nil
}

// Logout はトークンに対応するセッションを破棄する。冪等に動作する。
func (s *Service) Logout(ctx context.Context, token string) error {
	sessionID, ok := parseSessionToken(s.config.SessionSecret, token)
	if !ok {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionTerminated()
	}
	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// SessionToken はセッションに対する署名付きCookie値を返す。
func (s *Service) SessionToken(session *model.Session) string {
	return signSessionToken(s.config.SessionSecret, session.ID)
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionEstablished()
	}

	return session, nil
}

func (s *Service) recordRegistration(result string) {
	if s.metrics != nil {
		s.metrics.RecordRegistration(result)
	}
}

func (s *Service) recordLogin(result string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(result)
	}
}

func (s *Service) recordOAuthCallback(result string) {
	if s.metrics != nil {
		s.metrics.RecordOAuthCallback(result)
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
