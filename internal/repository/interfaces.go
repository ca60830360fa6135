// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/lib/pq"

	"github.com/callumw118/Secret-Register-Login/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はidentity key（メールアドレス）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// emailのUNIQUE制約違反はIsUniqueViolationで判定できるエラーとして返る。
	Create(ctx context.Context, user *model.User) error

	// UpdateSecret は指定ユーザーのシークレットを更新する。
	UpdateSecret(ctx context.Context, userID, secret string) error

	// ListWithSecret はシークレット投稿済みの全ユーザーを返す。
	ListWithSecret(ctx context.Context) ([]*model.User, error)
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// FindOrCreate は指定のprovider subjectに紐付くユーザーを原子的に取得または作成する。
	// 既存のidentityがあればそのユーザーIDを返し、候補のuser行は書き込まない。
	// なければuserとidentityを同一トランザクションで作成する。
	// 同一subjectへの並行呼び出しでもuser行はちょうど1行になる。
	FindOrCreate(ctx context.Context, user *model.User, identity *model.Identity) (userID string, created bool, err error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// IsUniqueViolation はPostgreSQLのUNIQUE制約違反（SQLSTATE 23505）かどうかを判定する。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
