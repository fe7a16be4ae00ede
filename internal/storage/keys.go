package storage

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxKeyLength = 200

// PhotoExtensions maps accepted photo content types to object key extensions.
var PhotoExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// SessionPrefix 返回会话下全部对象的公共前缀。
func SessionPrefix(sessionID string) string {
	return fmt.Sprintf("sessions/%s/", sessionID)
}

// NewPhotoKey 生成会话照片的对象键：sessions/{sid}/photos/{uuid}{ext}。
func NewPhotoKey(sessionID, ext string) string {
	return SessionPrefix(sessionID) + "photos/" + uuid.NewString() + ext
}

// NewPDFKey 生成 PDF 对象键：fliers/{id}/{uuid}.pdf。
func NewPDFKey(flierID uint) string {
	return fmt.Sprintf("fliers/%d/%s.pdf", flierID, uuid.NewString())
}

// IsValidPhotoKey 校验对象键属于该会话的照片目录，且没有路径穿越。
func IsValidPhotoKey(sessionID, key string) bool {
	if sessionID == "" || key == "" || !utf8.ValidString(key) {
		return false
	}
	if !strings.HasPrefix(key, SessionPrefix(sessionID)+"photos/") {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	if len(key) > maxKeyLength {
		return false
	}
	ext := strings.ToLower(path.Ext(key))
	for _, allowed := range PhotoExtensions {
		if ext == allowed {
			return true
		}
	}
	return ext == ".jpeg"
}
