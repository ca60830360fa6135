package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

const nonceSize = 12

// AESVerifier はプロセス全体の共有シークレットによる可逆暗号方式の認証情報ポリシー。
// 平文をAES-256-GCMで暗号化して保存し、照合時に復号して定数時間比較する。
// 鍵は共有シークレットのSHA-256ダイジェストから導出する。
type AESVerifier struct {
	aead cipher.AEAD

	// dummyStored はDummyCompare用に起動時に1回エンコードした固定値。
	dummyStored string
}

// NewAESVerifier は共有シークレットからAESVerifierを生成する。
func NewAESVerifier(secret string) (*AESVerifier, error) {
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	v := &AESVerifier{aead: aead}

	dummy, err := v.Encode("dummy-credential")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy credential: %w", err)
	}
	v.dummyStored = dummy

	return v, nil
}

// Encode は平文を暗号化してbase64エンコードした保存形式を返す。
// 書き込みごとにランダムな12バイトnonceを生成し、nonce || ciphertext を連結する。
func (v *AESVerifier) Encode(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, ciphertext...)), nil
}

// Compare は保存形式を復号して平文と定数時間比較する。
func (v *AESVerifier) Compare(stored, plaintext string) error {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) < nonceSize {
		return ErrMismatch
	}

	decrypted, err := v.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return ErrMismatch
	}

	if subtle.ConstantTimeCompare(decrypted, []byte(plaintext)) != 1 {
		return ErrMismatch
	}
	return nil
}

// DummyCompare は固定の保存値に対する照合を実行してタイミングを揃える。
func (v *AESVerifier) DummyCompare(plaintext string) {
	_ = v.Compare(v.dummyStored, plaintext)
}

// compile-time interface check
var _ Verifier = (*AESVerifier)(nil)
