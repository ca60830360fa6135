package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/callumw118/Secret-Register-Login/internal/middleware"
	"github.com/callumw118/Secret-Register-Login/internal/model"
)

// SecretServiceInterface はシークレットハンドラーが必要とするサービスインターフェース。
type SecretServiceInterface interface {
	List(ctx context.Context) ([]string, error)
	Submit(ctx context.Context, userID, text string) error
}

// SecretHandler はシークレットの一覧と投稿のHTTPハンドラー。
type SecretHandler struct {
	service  SecretServiceInterface
	renderer Renderer
}

// NewSecretHandler はSecretHandlerを生成する。
func NewSecretHandler(service SecretServiceInterface, renderer Renderer) *SecretHandler {
	return &SecretHandler{
		service:  service,
		renderer: renderer,
	}
}

// secretsPage はシークレット一覧の描画ペイロード。
type secretsPage struct {
	Secrets []string
}

// ShowSecrets は投稿済みシークレットの公開一覧を表示する。
// GET /secrets
func (h *SecretHandler) ShowSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := h.service.List(r.Context())
	if err != nil {
		slog.Error("failed to list secrets", slog.String("error", err.Error()))
		h.renderError(w, model.NewStoreUnavailableError())
		return
	}

	h.render(w, "secrets", secretsPage{Secrets: secrets})
}

// ShowSubmit はシークレット投稿フォームを表示する。
// GET /submit（要認証）
func (h *SecretHandler) ShowSubmit(w http.ResponseWriter, r *http.Request) {
	h.render(w, "submit", formPage{Error: flashMessage(r.URL.Query().Get("error"))})
}

// Submit は現在のユーザーのシークレットを更新する。
// POST /submit（要認証）
func (h *SecretHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		// 認可ゲートを通過しているはずだが、念のためログインへ戻す
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/submit?error=invalid", http.StatusSeeOther)
		return
	}

	if err := h.service.Submit(r.Context(), userID, r.PostFormValue("secret")); err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) && appErr.Category == "validation" {
			http.Redirect(w, r, "/submit?error=invalid", http.StatusSeeOther)
			return
		}
		slog.Error("failed to submit secret",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		h.renderError(w, model.NewStoreUnavailableError())
		return
	}

	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

// render はテンプレートを描画する。失敗はログのみに記録する。
func (h *SecretHandler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Render(w, name, data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
	}
}

// renderError は汎用エラーページを描画する。
func (h *SecretHandler) renderError(w http.ResponseWriter, appErr *model.AppError) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if err := h.renderer.Render(w, "error", appErr); err != nil {
		slog.Error("failed to render error page", slog.String("error", err.Error()))
	}
}
