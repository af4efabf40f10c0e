package repository

import (
	"context"

	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/models"
	"gorm.io/gorm"
)

type NotificationLogRepository interface {
	SaveLog(ctx context.Context, log *models.NotificationLog) error
	ListByOrder(ctx context.Context, orderRef string) ([]models.NotificationLog, error)
}

type notificationLogRepository struct {
	db *gorm.DB
}

func NewNotificationLogRepository(db *gorm.DB) NotificationLogRepository {
	return &notificationLogRepository{db: db}
}

func (r *notificationLogRepository) SaveLog(ctx context.Context, log *models.NotificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *notificationLogRepository) ListByOrder(ctx context.Context, orderRef string) ([]models.NotificationLog, error) {
	var logs []models.NotificationLog
	err := r.db.WithContext(ctx).
		Where("order_ref = ?", orderRef).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}
