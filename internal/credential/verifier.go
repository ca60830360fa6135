// Package credential は認証情報のエンコードと照合ポリシーを提供する。
// デプロイ時にbcryptハッシュ方式またはAES-GCM可逆暗号方式のどちらかを選択する。
package credential

import "errors"

// ErrMismatch は保存済み認証情報と平文が一致しない場合に返る。
// ユーザー不在との区別を呼び出し元に開示しないため、エラー値はこの1種に揃える。
var ErrMismatch = errors.New("credential mismatch")

// Verifier は認証情報の保存形式へのエンコードと照合を提供する。
type Verifier interface {
	// Encode は平文をポリシーに従って保存形式にエンコードする。
	// 戻り値に平文が含まれることはない。
	Encode(plaintext string) (string, error)

	// Compare は保存形式と平文を照合する。不一致の場合はErrMismatchを返す。
	Compare(stored, plaintext string) error

	// DummyCompare はユーザー不在時に本物の照合と同等のコストを消費する。
	// ユーザー不在とパスワード不一致がレスポンスタイミングで区別できないようにする。
	DummyCompare(plaintext string)
}
