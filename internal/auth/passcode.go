package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPasscode 使用 bcrypt 生成编辑器口令哈希。
func HashPasscode(passcode string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash passcode: %w", err)
	}
	return string(bytes), nil
}

// CheckPasscode 校验口令是否匹配哈希；空哈希表示未设置口令。
func CheckPasscode(passcode, hash string) bool {
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)) == nil
}
