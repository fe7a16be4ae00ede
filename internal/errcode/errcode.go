// Package errcode 定义推送给编辑器的 PDF 任务结果码。
package errcode

// 结果码约定：
// - 0：成功
// - 4xxx：已出图但有降级（例如主持人照片缺失，改用首字母）
// - 5xxx：任务失败
const (
	OK                 = 0
	PhotoMissing       = 4004
	SystemError        = 5000
	ContentMalformed   = 5001
	RenderFailed       = 5002
	StorageUnavailable = 5003
)

// Failed reports whether code means no PDF was produced.
func Failed(code int) bool {
	return code >= SystemError
}
