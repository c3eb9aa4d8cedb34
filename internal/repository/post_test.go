package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"portal/internal/cache"
	"portal/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.PostMedia{},
		&models.PostReport{},
		&models.Event{},
		&models.News{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func createPost(t *testing.T, db *gorm.DB, status models.PostStatus) *models.Post {
	t.Helper()
	post := &models.Post{
		Content:  "test content",
		Category: "general",
		Status:   status,
	}
	assert.NoError(t, db.Create(post).Error)
	return post
}

func TestPostRepositoryLikesClamp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := createPost(t, db, models.PostStatusApproved)

	likes, err := repo.IncrementLikes(ctx, post.ID, 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, likes)

	likes, err = repo.IncrementLikes(ctx, post.ID, -1)
	assert.NoError(t, err)
	assert.Equal(t, 0, likes)

	// Retracting past zero clamps instead of going negative.
	likes, err = repo.IncrementLikes(ctx, post.ID, -1)
	assert.NoError(t, err)
	assert.Equal(t, 0, likes)

	var stored models.Post
	assert.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, 0, stored.Likes)
}

func TestPostRepositoryGetByIDCachesAndInvalidates(t *testing.T) {
	db := setupTestDB(t)
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	repo := NewPostRepository(db)
	ctx := context.Background()
	post := createPost(t, db, models.PostStatusApproved)
	key := fmt.Sprintf("post:%d", post.ID)

	got, err := repo.GetByID(ctx, post.ID, false)
	assert.NoError(t, err)
	assert.Equal(t, "test content", got.Content)
	assert.True(t, mr.Exists(key))

	// A second read within the TTL is served from cache, not the table.
	assert.NoError(t, db.Model(post).Update("content", "changed underneath").Error)
	got, err = repo.GetByID(ctx, post.ID, false)
	assert.NoError(t, err)
	assert.Equal(t, "test content", got.Content)

	// The report-including variant bypasses the cache.
	fresh, err := repo.GetByID(ctx, post.ID, true)
	assert.NoError(t, err)
	assert.Equal(t, "changed underneath", fresh.Content)

	// Save drops the cached entry; the next read sees the stored row.
	got.Content = "saved content"
	assert.NoError(t, repo.Save(ctx, got))
	assert.False(t, mr.Exists(key))
	got, err = repo.GetByID(ctx, post.ID, false)
	assert.NoError(t, err)
	assert.Equal(t, "saved content", got.Content)

	// Counter writes invalidate too.
	assert.True(t, mr.Exists(key))
	_, err = repo.IncrementLikes(ctx, post.ID, 1)
	assert.NoError(t, err)
	assert.False(t, mr.Exists(key))
}

func TestPostRepositoryLikesUnknownPost(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)

	_, err := repo.IncrementLikes(context.Background(), 999, 1)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPostRepositoryListStatusFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	createPost(t, db, models.PostStatusApproved)
	createPost(t, db, models.PostStatusPending)
	createPost(t, db, models.PostStatusRejected)

	approved, err := repo.List(ctx, PostListFilter{Status: models.PostStatusApproved, Limit: 20})
	assert.NoError(t, err)
	assert.Len(t, approved, 1)
	assert.Equal(t, models.PostStatusApproved, approved[0].Status)

	all, err := repo.List(ctx, PostListFilter{Limit: 20})
	assert.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPostRepositoryListHasReports(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	reported := createPost(t, db, models.PostStatusApproved)
	createPost(t, db, models.PostStatusApproved)

	assert.NoError(t, repo.AddReport(ctx, &models.PostReport{PostID: reported.ID, Reason: "spam"}))

	posts, err := repo.List(ctx, PostListFilter{HasReports: true, IncludeReports: true, Limit: 20})
	assert.NoError(t, err)
	assert.Len(t, posts, 1)
	assert.Equal(t, reported.ID, posts[0].ID)
	assert.Len(t, posts[0].Reports, 1)
}

func TestPostRepositoryAlertFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alerting := createPost(t, db, models.PostStatusApproved)
	assert.NoError(t, db.Model(alerting).Update("alert", true).Error)
	createPost(t, db, models.PostStatusApproved)

	posts, err := repo.List(ctx, PostListFilter{AlertOnly: true, Limit: 20})
	assert.NoError(t, err)
	assert.Len(t, posts, 1)
	assert.Equal(t, alerting.ID, posts[0].ID)
}

func TestPostRepositoryIncrementShares(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := createPost(t, db, models.PostStatusApproved)

	shares, err := repo.IncrementShares(ctx, post.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, shares)

	shares, err = repo.IncrementShares(ctx, post.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, shares)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	assert.NoError(t, err)
	return d
}

func TestEventRepositoryListOrdering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	later := &models.Event{Title: "Later", StartDate: mustDate(t, "2025-06-01"), Status: models.EventStatusApproved}
	earlier := &models.Event{Title: "Earlier", StartDate: mustDate(t, "2025-03-01"), Status: models.EventStatusApproved}
	pending := &models.Event{Title: "Pending", StartDate: mustDate(t, "2025-04-01"), Status: models.EventStatusPending}
	for _, e := range []*models.Event{later, earlier, pending} {
		assert.NoError(t, db.Create(e).Error)
	}

	events, err := repo.List(ctx, models.EventStatusApproved, 20, 0)
	assert.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, "Earlier", events[0].Title)
	assert.Equal(t, "Later", events[1].Title)

	all, err := repo.List(ctx, "", 20, 0)
	assert.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUserRepositoryGetByEmailOrUsername(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Name: "Test", Username: "testuser", Email: "test@example.com", Password: "x"}
	assert.NoError(t, repo.Create(ctx, user))

	byEmail, err := repo.GetByEmailOrUsername(ctx, "test@example.com", "other")
	assert.NoError(t, err)
	assert.NotNil(t, byEmail)

	byUsername, err := repo.GetByEmailOrUsername(ctx, "other@example.com", "testuser")
	assert.NoError(t, err)
	assert.NotNil(t, byUsername)

	missing, err := repo.GetByEmailOrUsername(ctx, "other@example.com", "other")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
