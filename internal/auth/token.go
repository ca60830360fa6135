package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// セッショントークンはCookieで運ばれる "セッションID.HMACタグ" の形式。
// IDそのものは推測不能な乱数だが、署名タグによって改竄トークンを
// ストアに問い合わせる前に弾ける。

// signSessionToken はセッションIDにHMAC-SHA256の署名タグを付与する。
func signSessionToken(secret, sessionID string) string {
	return sessionID + "." + sessionTag(secret, sessionID)
}

// parseSessionToken はトークンの署名を検証し、セッションIDを返す。
// 形式不正または署名不一致の場合はok=falseを返す。検証は定数時間で行う。
func parseSessionToken(secret, token string) (string, bool) {
	sessionID, tag, found := strings.Cut(token, ".")
	if !found || sessionID == "" || tag == "" {
		return "", false
	}
	expected := sessionTag(secret, sessionID)
	if !hmac.Equal([]byte(tag), []byte(expected)) {
		return "", false
	}
	return sessionID, true
}

// sessionTag はセッションIDに対するHMAC-SHA256タグを計算する。
func sessionTag(secret, sessionID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}
