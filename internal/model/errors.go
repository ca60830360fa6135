package model

import "fmt"

// AppError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type AppError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeDuplicateIdentity      = "DUPLICATE_IDENTITY"
	ErrCodeNotFoundOrMismatch     = "NOT_FOUND_OR_MISMATCH"
	ErrCodeStoreUnavailable       = "STORE_UNAVAILABLE"
	ErrCodeProviderExchangeFailed = "PROVIDER_EXCHANGE_FAILED"
	ErrCodeValidation             = "VALIDATION_FAILED"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
)

// NewDuplicateIdentityError は登録済みのidentity keyで再登録しようとした場合のエラーを生成する。
func NewDuplicateIdentityError(email string) *AppError {
	return &AppError{
		Code:     ErrCodeDuplicateIdentity,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "auth",
		Action:   "別のメールアドレスで登録するか、ログインしてください。",
	}
}

// NewNotFoundOrMismatchError はログイン失敗エラーを生成する。
// ユーザー不在とパスワード不一致のどちらが原因かは開示しない。
func NewNotFoundOrMismatchError() *AppError {
	return &AppError{
		Code:     ErrCodeNotFoundOrMismatch,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewStoreUnavailableError はデータストアの一時障害エラーを生成する。
func NewStoreUnavailableError() *AppError {
	return &AppError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "一時的な障害が発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProviderExchangeFailedError はOAuthプロバイダーとの交換失敗エラーを生成する。
func NewProviderExchangeFailedError() *AppError {
	return &AppError{
		Code:     ErrCodeProviderExchangeFailed,
		Message:  "外部プロバイダーでの認証に失敗しました。",
		Category: "auth",
		Action:   "再度ログインをお試しください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *AppError {
	return &AppError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
