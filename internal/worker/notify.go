package worker

// FlierNotifyMessage 是通过 Redis Pub/Sub 转发给浏览器的 WebSocket 消息。
// 字段名与编辑器页面脚本的解析保持一致。
type FlierNotifyMessage struct {
	Status        string   `json:"status"`
	FlierID       uint     `json:"flier_id"`
	CorrelationID string   `json:"correlation_id"`
	ErrorCode     int      `json:"error_code"`
	ErrorMessage  string   `json:"error_message"`
	MissingPhotos []string `json:"missing_photos,omitempty"`
}
