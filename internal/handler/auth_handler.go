// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/callumw118/Secret-Register-Login/internal/model"
)

const (
	sessionCookieName = "session_token"
	oauthStateCookie  = "oauth_state"
)

// Renderer は画面描画のコラボレーターインターフェース。
// コアは描画結果を検査しない。
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	Register(ctx context.Context, email, password string) (*model.Session, error)
	LoginLocal(ctx context.Context, email, password string) (*model.Session, error)
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, token string) error
	SessionToken(session *model.Session) string
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は登録・ログイン・OAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	renderer Renderer
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, renderer Renderer, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		renderer: renderer,
		config:   config,
	}
}

// formPage はフォーム画面の描画ペイロード。
type formPage struct {
	Error string
}

// flashMessage はリダイレクトで引き回すエラーコードをユーザー向け文言に変換する。
func flashMessage(code string) string {
	switch code {
	case "credentials":
		return "メールアドレスまたはパスワードが正しくありません。"
	case "duplicate":
		return "このメールアドレスは既に登録されています。"
	case "invalid":
		return "入力内容を確認してください。"
	case "oauth":
		return "外部プロバイダーでの認証に失敗しました。再度お試しください。"
	default:
		return ""
	}
}

// ShowHome はトップページを表示する。
// GET /
func (h *AuthHandler) ShowHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, "home", nil)
}

// ShowLogin はログインフォームを表示する。
// GET /login
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login", formPage{Error: flashMessage(r.URL.Query().Get("error"))})
}

// ShowRegister は登録フォームを表示する。
// GET /register
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	h.render(w, "register", formPage{Error: flashMessage(r.URL.Query().Get("error"))})
}

// Register はローカルアカウントを登録し、セッションを確立する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/register?error=invalid", http.StatusSeeOther)
		return
	}

	session, err := h.service.Register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			switch appErr.Code {
			case model.ErrCodeDuplicateIdentity:
				http.Redirect(w, r, "/register?error=duplicate", http.StatusSeeOther)
			default:
				http.Redirect(w, r, "/register?error=invalid", http.StatusSeeOther)
			}
			return
		}
		slog.Error("registration failed", slog.String("error", err.Error()))
		h.renderError(w, model.NewStoreUnavailableError())
		return
	}

	h.setSessionCookie(w, h.service.SessionToken(session))
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

// Login はローカル認証情報を検証し、セッションを確立する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=credentials", http.StatusSeeOther)
		return
	}

	session, err := h.service.LoginLocal(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			// 不在と不一致は区別せず同じ文言で返す
			http.Redirect(w, r, "/login?error=credentials", http.StatusSeeOther)
			return
		}
		slog.Error("login failed", slog.String("error", err.Error()))
		h.renderError(w, model.NewStoreUnavailableError())
		return
	}

	h.setSessionCookie(w, h.service.SessionToken(session))
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		h.renderError(w, model.NewStoreUnavailableError())
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
// プロバイダー側の失敗（同意拒否、交換失敗、state不一致）はすべて
// セッションを確立せずログイン画面へリダイレクトする。
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		http.Redirect(w, r, "/login?error=oauth", http.StatusSeeOther)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得（同意拒否時はcodeが付かない）
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, "/login?error=oauth", http.StatusSeeOther)
		return
	}

	// 3. 認証処理
	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/login?error=oauth", http.StatusSeeOther)
		return
	}

	// 4. セッションCookieを設定して保護リソースへ
	h.setSessionCookie(w, h.service.SessionToken(session))
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

// Logout はセッションを破棄する。未ログインでも冪等に動作する。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// setSessionCookie はHTTP Onlyのセッションクッキーを設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションクッキーを削除する。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// render はテンプレートを描画する。失敗はログのみに記録する。
func (h *AuthHandler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Render(w, name, data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
	}
}

// renderError は汎用エラーページを描画する。
func (h *AuthHandler) renderError(w http.ResponseWriter, appErr *model.AppError) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if err := h.renderer.Render(w, "error", appErr); err != nil {
		slog.Error("failed to render error page", slog.String("error", err.Error()))
	}
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
