package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/axdashboard/axdash/app/models"
)

type pendingWebhookRepository struct {
	db *gorm.DB
}

// NewPendingWebhookRepository creates a reconciliation marker repository backed by GORM.
func NewPendingWebhookRepository(db *gorm.DB) PendingWebhookRepository {
	return &pendingWebhookRepository{db: db}
}

func (r *pendingWebhookRepository) Create(ctx context.Context, p *models.PendingWebhook) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *pendingWebhookRepository) ListUnprocessed(ctx context.Context, limit int) ([]models.PendingWebhook, error) {
	pending := make([]models.PendingWebhook, 0)
	db := r.db.WithContext(ctx).Where("processed = ?", false).Order("id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&pending).Error
	return pending, err
}

func (r *pendingWebhookRepository) MarkProcessed(ctx context.Context, id uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.PendingWebhook{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed":    true,
		"processed_at": &now,
		"last_error":   "",
	}).Error
}

func (r *pendingWebhookRepository) RecordFailure(ctx context.Context, id uint, msg string) error {
	return r.db.WithContext(ctx).Model(&models.PendingWebhook{}).Where("id = ?", id).
		Update("last_error", msg).Error
}

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a webhook event log repository backed by GORM.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists inserts the event unless one with the same EventID exists.
// It reports whether a new row was written and returns the stored row either way.
func (r *webhookEventRepository) CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := db.Where("event_id = ?", event.EventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *webhookEventRepository) GetByID(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkAttempt counts a processing attempt and records its error, if any.
func (r *webhookEventRepository) MarkAttempt(ctx context.Context, id uint, processingError string) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"attempts":         gorm.Expr("attempts + ?", 1),
		"processing_error": processingError,
	}).Error
}

// Touch bumps updated_at without counting an attempt.
func (r *webhookEventRepository) Touch(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed_at":     &now,
		"processing_error": "",
	}).Error
}

func (r *webhookEventRepository) MarkDeadLettered(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"dead_lettered_at": &now,
		"processing_error": processingError,
	}).Error
}

// ResetForReplay clears terminal state so the event can be processed again.
func (r *webhookEventRepository) ResetForReplay(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"dead_lettered_at": nil,
		"processed_at":     nil,
		"attempts":         0,
		"processing_error": "",
	}).Error
}

func (r *webhookEventRepository) ListDeadLettered(ctx context.Context, offset, limit int) ([]models.WebhookEvent, int64, error) {
	events := make([]models.WebhookEvent, 0)
	var total int64
	base := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("dead_lettered_at IS NOT NULL").
		Session(&gorm.Session{})
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := base.Order("dead_lettered_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, total, err
}

// ListStale returns unfinished events untouched since olderThan.
func (r *webhookEventRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]models.WebhookEvent, error) {
	events := make([]models.WebhookEvent, 0)
	err := r.db.WithContext(ctx).
		Where("processed_at IS NULL AND dead_lettered_at IS NULL AND updated_at < ?", olderThan).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
