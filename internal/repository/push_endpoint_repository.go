package repository

import (
	"context"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"gorm.io/gorm"
)

type PushEndpointRepository struct {
	db *gorm.DB
}

func NewPushEndpointRepository(db *gorm.DB) *PushEndpointRepository {
	return &PushEndpointRepository{db: db}
}

func (r *PushEndpointRepository) ListByUser(ctx context.Context, userID uint) ([]models.PushEndpoint, error) {
	var endpoints []models.PushEndpoint
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&endpoints).Error
	return endpoints, translate(err, apperr.ErrUserNotFound, "list push endpoints")
}

// Upsert registers a device token, refreshing updated_at when the same
// (user, token, platform) triple is already known.
func (r *PushEndpointRepository) Upsert(ctx context.Context, endpoint *models.PushEndpoint) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO push_endpoints (user_id, token, platform, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON CONFLICT (user_id, token, platform) DO UPDATE
		SET updated_at = NOW()
	`, endpoint.UserID, endpoint.Token, endpoint.Platform).Error
	return translate(err, apperr.ErrUserNotFound, "upsert push endpoint")
}

func (r *PushEndpointRepository) Delete(ctx context.Context, userID uint, token string, platform models.Platform) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ? AND platform = ?", userID, token, platform).
		Delete(&models.PushEndpoint{}).Error
	return translate(err, apperr.ErrUserNotFound, "delete push endpoint")
}
