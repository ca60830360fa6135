package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/callumw118/Secret-Register-Login/internal/model"
)

// PostgresIdentityRepo はPostgreSQLを使用したidentityリポジトリ。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	identity := &model.Identity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_user_id, created_at
		 FROM identities
		 WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderUserID, &identity.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return identity, nil
}

// FindOrCreate は指定のprovider subjectに紐付くユーザーを原子的に取得または作成する。
//
// 素朴なread-check-then-insertは並行する重複コールバックで二重アカウントを生むため、
// UNIQUE(provider, provider_user_id)制約を前提にINSERT ... ON CONFLICT DO NOTHINGを
// 同一トランザクション内で実行する。identity挿入が競合した場合はトランザクション全体を
// ロールバックし（候補のuser行も消える）、勝者のidentityを読み直して返す。
func (r *PostgresIdentityRepo) FindOrCreate(ctx context.Context, user *model.User, identity *model.Identity) (string, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 候補のユーザーを作成する。emailが既存のローカルアカウントと一致する場合は
	// 新規作成せず、そのアカウントにidentityを紐付ける（RETURNINGで既存IDを得る）。
	var userID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (id, email, name, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		 ON CONFLICT (email) DO UPDATE SET updated_at = now()
		 RETURNING id`,
		user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt,
	).Scan(&userID)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert candidate user: %w", err)
	}

	// identityを挿入。競合時は行が挿入されずRowsAffected=0になる。
	// 競合相手のトランザクションが未コミットの場合、ここはその決着まで待つ。
	result, err := tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (provider, provider_user_id) DO NOTHING`,
		identity.ID, userID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert identity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// 既存のidentityが勝った。候補ユーザーごとロールバックして勝者を読み直す。
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			return "", false, fmt.Errorf("failed to rollback transaction: %w", err)
		}

		existing, err := r.FindByProviderAndProviderUserID(ctx, identity.Provider, identity.ProviderUserID)
		if err != nil {
			return "", false, err
		}
		if existing == nil {
			return "", false, fmt.Errorf("identity vanished after conflict: provider=%s", identity.Provider)
		}
		return existing.UserID, false, nil
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return userID, true, nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
