package repository

import (
	"context"

	"portal/internal/cache"
	"portal/internal/models"

	"gorm.io/gorm"
)

// PostListFilter narrows a post listing query.
type PostListFilter struct {
	// Status filters by moderation status; empty means no filter (ALL).
	Status models.PostStatus
	// AlertOnly limits results to posts with the alert flag set.
	AlertOnly bool
	// HasReports limits results to posts with at least one report.
	HasReports bool
	// IncludeReports eager-loads each post's reports.
	IncludeReports bool
	Limit          int
	Offset         int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, includeReports bool) (*models.Post, error)
	List(ctx context.Context, filter PostListFilter) ([]*models.Post, error)
	Save(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	AddReport(ctx context.Context, report *models.PostReport) error
	IncrementLikes(ctx context.Context, id uint, delta int) (int, error)
	IncrementShares(ctx context.Context, id uint) (int, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint, includeReports bool) (*models.Post, error) {
	var post models.Post

	// Only the report-free variant is cached; moderation reads that pull in
	// reports must always see the current rows.
	if includeReports {
		err := r.db.WithContext(ctx).
			Preload("Media").
			Preload("Reports").
			First(&post, id).Error
		if err != nil {
			return nil, err
		}
		return &post, nil
	}

	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		return r.db.WithContext(ctx).Preload("Media").First(&post, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostListFilter) ([]*models.Post, error) {
	var posts []*models.Post

	q := r.db.WithContext(ctx).Preload("Media")
	if filter.IncludeReports {
		q = q.Preload("Reports")
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.AlertOnly {
		q = q.Where("alert = ?", true)
	}
	if filter.HasReports {
		q = q.Where("EXISTS (SELECT 1 FROM post_reports WHERE post_reports.post_id = posts.id)")
	}

	err := q.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Save(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.PostKey(post.ID))
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Select("Media", "Reports").Delete(&models.Post{ID: id}).Error; err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.PostKey(id))
	return nil
}

func (r *postRepository) AddReport(ctx context.Context, report *models.PostReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// IncrementLikes applies an atomic delta to the likes counter and returns the
// resulting value. The counter is clamped to zero: if the delta drives it
// negative, a corrective write resets it.
func (r *postRepository) IncrementLikes(ctx context.Context, id uint, delta int) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("likes", gorm.Expr("likes + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var likes int
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Pluck("likes", &likes).Error; err != nil {
		return 0, err
	}

	if likes < 0 {
		if err := r.db.WithContext(ctx).
			Model(&models.Post{}).
			Where("id = ?", id).
			UpdateColumn("likes", 0).Error; err != nil {
			return 0, err
		}
		likes = 0
	}

	cache.Invalidate(ctx, cache.PostKey(id))
	return likes, nil
}

func (r *postRepository) IncrementShares(ctx context.Context, id uint) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("shares", gorm.Expr("shares + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var shares int
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Pluck("shares", &shares).Error; err != nil {
		return 0, err
	}

	cache.Invalidate(ctx, cache.PostKey(id))
	return shares, nil
}
