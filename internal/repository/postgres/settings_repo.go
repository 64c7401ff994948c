package postgres

import (
	"context"
	"errors"

	"github.com/mpetrov/pinwall/internal/domain"
	"gorm.io/gorm"
)

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *settingsRepository {
	return &settingsRepository{db: db}
}

// Get returns the single settings row. A missing row means the site has not
// been configured yet; both flags default to off in that case.
func (r *settingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	var settings domain.Settings
	err := r.db.WithContext(ctx).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &domain.Settings{}, nil
		}
		return nil, err
	}
	return &settings, nil
}
