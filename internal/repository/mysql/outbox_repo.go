package mysql

import (
	"context"
	"encoding/json"
	"time"

	"Coop_Voting/internal/model"

	"gorm.io/gorm"
)

// MaxOutboxRetry 超过次数的事件不再投递，留给人工排查
const MaxOutboxRetry = 10

type OutboxRepository struct {
	DB *gorm.DB
}

// insertOutbox 必须使用调用方的事务句柄，保证事件和业务数据同时提交
func insertOutbox(tx *gorm.DB, event string, pollID, coopID uint64, fields map[string]any) error {
	body := map[string]any{
		"event":          event,
		"event_time":     time.Now().UTC().Format(time.RFC3339Nano),
		"poll_id":        pollID,
		"cooperative_id": coopID,
	}
	for k, v := range fields {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tx.Create(&model.PollOutbox{
		EventType:     event,
		PollID:        pollID,
		CooperativeID: coopID,
		Payload:       string(payload),
		Status:        model.OutboxPending,
	}).Error
}

// List 取待投递和可重试的事件，按 id 顺序
func (r *OutboxRepository) List(ctx context.Context, batchSize int) ([]model.PollOutbox, error) {
	var list []model.PollOutbox
	if err := r.DB.WithContext(ctx).
		Where("status <> ? AND retry < ?", model.OutboxSent, MaxOutboxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RetryUpdate 投递失败，记录重试次数
func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.PollOutbox{}).Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.PollOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}
