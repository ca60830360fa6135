// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/callumw118/Secret-Register-Login/internal/model"
)

const sessionCookieName = "session_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("auth_user")

// SessionRestorer はセッショントークンからユーザーを復元するインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionRestorer interface {
	// Restore はトークンからユーザーを復元する。Anonymousの場合は(nil, nil)。
	Restore(ctx context.Context, token string) (*model.User, error)
}

// NewSessionMiddleware はHTTP Only Cookieのセッショントークンを検証し、
// 復元したユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// トークン不在・改竄・期限切れ・ユーザー消失はすべてAnonymousとして
// そのまま後続に流す。認可の判定はRequireAuthが行う。
// 復元はリクエストごとに毎回実行し、リクエストをまたいでキャッシュしない。
func NewSessionMiddleware(restorer SessionRestorer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := restorer.Restore(r.Context(), cookie.Value)
			if err != nil {
				// ストア障害はAnonymousに縮退させ、リクエスト自体は通す
				slog.Error("failed to restore session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireAuthMiddleware は保護ルート用の認可ゲートを返す。
// セッションが復元されていないリクエストはloginPathへ303リダイレクトする。
// エラーボディは返さない。
func NewRequireAuthMiddleware(loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := UserFromContext(r.Context()); err != nil {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過した認証済みリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
