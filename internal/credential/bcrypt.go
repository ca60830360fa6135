package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash はDummyCompare用の固定bcryptハッシュ。
// 照合コストを本物と揃えるためだけに使い、どの平文とも一致させない。
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// BcryptVerifier はソルト付き一方向ハッシュによる認証情報ポリシー。
// ソルトはbcryptのエンコード形式に含まれるため別管理は不要。
type BcryptVerifier struct {
	cost int
}

// NewBcryptVerifier はBcryptVerifierを生成する。
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{cost: bcrypt.DefaultCost}
}

// Encode は平文をbcryptハッシュにエンコードする。
func (v *BcryptVerifier) Encode(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash credential: %w", err)
	}
	return string(hash), nil
}

// Compare は保存済みハッシュと平文を照合する。
func (v *BcryptVerifier) Compare(stored, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		// 保存形式が壊れている場合も呼び出し元には不一致として扱わせる
		return ErrMismatch
	}
	return nil
}

// DummyCompare は固定ハッシュに対する照合を実行してタイミングを揃える。
func (v *BcryptVerifier) DummyCompare(plaintext string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plaintext))
}

// compile-time interface check
var _ Verifier = (*BcryptVerifier)(nil)
