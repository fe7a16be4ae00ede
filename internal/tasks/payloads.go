package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeFlierPDF = "flier:pdf"
)

// FlierPDFPayload 描述生成传单 PDF 所需的最小信息。
type FlierPDFPayload struct {
	FlierID       uint   `json:"flier_id"`
	SessionID     string `json:"session_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPDFGenerateTask 构造一个新的传单 PDF 生成任务。
func NewPDFGenerateTask(id uint, sessionID, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(FlierPDFPayload{
		FlierID:       id,
		SessionID:     sessionID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeFlierPDF, payload), nil
}

// NotifyChannel 返回会话的 Redis Pub/Sub 通知频道。
func NotifyChannel(sessionID string) string {
	return "flier_notify:" + sessionID
}
