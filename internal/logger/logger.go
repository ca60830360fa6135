// Package logger はJSON構造化ログの初期化を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// 認証情報がログに混入した場合に備えて値を伏せるキー。
var redactedKeys = map[string]bool{
	"password":   true,
	"credential": true,
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// パスワード等の機微なキーは値を"[REDACTED]"に置き換える。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if redactedKeys[a.Key] {
				a.Value = slog.StringValue("[REDACTED]")
			}
			return a
		},
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}
