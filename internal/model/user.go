// Package model はドメインモデルを定義する。
package model

import (
	"database/sql"
	"time"
)

// User はサービス利用ユーザーを表す。
// ローカル登録（email + password）またはOAuth連携のどちらかで作成される。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Credential はポリシーに従ってエンコード済みの認証情報。
	// OAuth連携のみのユーザーでは未設定（Valid=false）。
	// 平文のままこのフィールドに入ることはない。
	Credential sql.NullString

	// Secret はユーザーが投稿したシークレット。
	// 未投稿の間は未設定（Valid=false）。
	Secret sql.NullString
}

// HasSecret はユーザーがシークレットを投稿済みかどうかを返す。
func (u *User) HasSecret() bool {
	return u.Secret.Valid && u.Secret.String != ""
}

// Identity は外部IdPとの紐付け情報を表す。
// (provider, provider_user_id) はDB側のUNIQUE制約で一意に保たれる。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// IDはcrypto/randで生成される256ビットの不透明な値。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
