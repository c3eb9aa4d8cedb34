package repository

import (
	"context"

	"portal/internal/cache"
	"portal/internal/models"

	"gorm.io/gorm"
)

// NewsRepository defines the interface for news data operations
type NewsRepository interface {
	Create(ctx context.Context, item *models.News) error
	GetByID(ctx context.Context, id uint) (*models.News, error)
	List(ctx context.Context, limit, offset int) ([]*models.News, error)
	Delete(ctx context.Context, id uint) error
}

type newsRepository struct {
	db *gorm.DB
}

// NewNewsRepository creates a new news repository
func NewNewsRepository(db *gorm.DB) NewsRepository {
	return &newsRepository{db: db}
}

func (r *newsRepository) Create(ctx context.Context, item *models.News) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return err
	}
	cache.InvalidateNewsLists(ctx)
	return nil
}

func (r *newsRepository) GetByID(ctx context.Context, id uint) (*models.News, error) {
	var item models.News
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *newsRepository) List(ctx context.Context, limit, offset int) ([]*models.News, error) {
	var items []*models.News
	err := cache.Aside(ctx, cache.NewsListKey(limit, offset), &items, cache.NewsTTL, func() error {
		return r.db.WithContext(ctx).
			Order("created_at DESC").
			Limit(limit).
			Offset(offset).
			Find(&items).Error
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *newsRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.News{}, id).Error; err != nil {
		return err
	}
	cache.InvalidateNewsLists(ctx)
	return nil
}
