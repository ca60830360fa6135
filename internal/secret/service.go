// Package secret はシークレット投稿と公開一覧のドメインロジックを提供する。
package secret

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/callumw118/Secret-Register-Login/internal/model"
	"github.com/callumw118/Secret-Register-Login/internal/repository"
)

// maxSecretLength は投稿できるシークレットの最大文字数。
const maxSecretLength = 1000

// Service はシークレット投稿のサービス層。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// List は投稿済みの全シークレットを返す。投稿者情報は含めない。
// 認証不要の公開一覧であるため、シークレット本文以外は一切返さない。
func (s *Service) List(ctx context.Context) ([]string, error) {
	users, err := s.userRepo.ListWithSecret(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}

	secrets := make([]string, 0, len(users))
	for _, u := range users {
		if u.HasSecret() {
			secrets = append(secrets, u.Secret.String)
		}
	}
	return secrets, nil
}

// Submit は認証済みユーザーのシークレットを更新する。
// 他ユーザーのシークレットには一切触れない（userIDはセッション由来）。
func (s *Service) Submit(ctx context.Context, userID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.NewValidationError("secret is required")
	}
	if len([]rune(text)) > maxSecretLength {
		return model.NewValidationError(fmt.Sprintf("secret must be %d characters or fewer", maxSecretLength))
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.userRepo.UpdateSecret(ctx, userID, text); err != nil {
		return fmt.Errorf("failed to update secret: %w", err)
	}

	slog.Info("secret submitted",
		slog.String("user_id", userID),
	)
	return nil
}
