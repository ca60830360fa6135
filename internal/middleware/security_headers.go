package middleware

import "net/http"

// NewSecurityHeadersMiddleware は全レスポンスにセキュリティヘッダーを付与するミドルウェアを生成する。
// セッションCookieを扱うHTMLページが対象のため、クリックジャッキングと
// コンテンツタイプ推測への対策を一律に適用する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}
