package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// IsNoSuchKey 判断照片或 PDF 对象是否不存在。
func IsNoSuchKey(err error) bool {
	return matchError(err,
		[]string{"nosuchkey", "notfound"},
		[]string{"nosuchkey", "specified key does not exist", "not found"},
	)
}

// IsNoSuchBucket 判断存储桶是否不存在；worker 遇到时不再重试。
func IsNoSuchBucket(err error) bool {
	return matchError(err,
		[]string{"nosuchbucket"},
		[]string{"nosuchbucket", "specified bucket does not exist"},
	)
}

// matchError 先比对 S3 错误码，再退回到错误文本（网关可能只留下字符串）。
func matchError(err error, codes, phrases []string) bool {
	if err == nil {
		return false
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		code := strings.ToLower(strings.TrimSpace(resp.Code))
		for _, c := range codes {
			if code == c {
				return true
			}
		}
	}
	text := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
