// Package service contains business logic that spans repositories and storage.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"portal/internal/middleware"
	"portal/internal/models"
	"portal/internal/repository"
	"portal/internal/storage"
)

// MaxPostMediaFiles caps how many attachments a single post may carry.
const MaxPostMediaFiles = 6

// MediaFile is one uploaded file from the multipart request.
type MediaFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// CreatePostInput carries everything needed to create a post.
type CreatePostInput struct {
	UserID       uint
	Content      string
	Category     string
	Location     string
	EventDate    *time.Time
	PollQuestion string
	PollOptions  json.RawMessage
	Files        []MediaFile
}

// PostService implements post creation and the moderation workflow.
type PostService struct {
	posts repository.PostRepository
	users repository.UserRepository
	store storage.ObjectStore
}

// NewPostService returns a new PostService.
func NewPostService(posts repository.PostRepository, users repository.UserRepository, store storage.ObjectStore) *PostService {
	return &PostService{posts: posts, users: users, store: store}
}

// Create validates the input, uploads media before the database row exists,
// and deletes every uploaded object if any later step fails. New posts always
// start PENDING.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, models.NewValidationError("Category is required")
	}
	if len(in.Files) > MaxPostMediaFiles {
		return nil, models.NewValidationError(fmt.Sprintf("At most %d media files are allowed", MaxPostMediaFiles))
	}
	for _, f := range in.Files {
		if !storage.IsAllowedMediaMIME(f.ContentType) {
			return nil, models.NewValidationError("Only image and video uploads are allowed")
		}
	}

	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Unknown user")
	}

	// Upload all files first; the database row is only created once every
	// object is in storage. On any failure the objects uploaded so far are
	// removed (best-effort, no idempotency across a crash).
	var media []models.PostMedia
	for _, f := range in.Files {
		objectPath := storage.ObjectName("posts", f.Filename)
		url, uerr := s.store.Upload(ctx, objectPath, f.Content, f.ContentType)
		if uerr != nil {
			s.cleanupMedia(ctx, media)
			return nil, models.NewInternalError(uerr)
		}
		media = append(media, models.PostMedia{
			URL:         url,
			StoragePath: objectPath,
			MimeType:    f.ContentType,
		})
	}

	userID := in.UserID
	post := &models.Post{
		UserID:       &userID,
		AuthorName:   user.Name,
		AuthorAvatar: user.AvatarURL,
		Content:      in.Content,
		Category:     in.Category,
		Location:     in.Location,
		EventDate:    in.EventDate,
		PollQuestion: in.PollQuestion,
		PollOptions:  in.PollOptions,
		Status:       models.PostStatusPending,
		Media:        media,
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.cleanupMedia(ctx, media)
		return nil, err
	}

	return post, nil
}

// Approve flips a post to APPROVED. Approving an already-approved post is a
// no-op returning the stored row unchanged.
func (s *PostService) Approve(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if post.Status == models.PostStatusApproved {
		return post, nil
	}

	post.Status = models.PostStatusApproved
	post.RejectionReason = ""
	if err := s.posts.Save(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Reject flips a post to REJECTED, records the reason and clears the alert flag.
func (s *PostService) Reject(ctx context.Context, id uint, reason string) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}

	post.Status = models.PostStatusRejected
	post.RejectionReason = reason
	post.Alert = false
	if err := s.posts.Save(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// ToggleAlert flips a post's alert flag.
func (s *PostService) ToggleAlert(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}

	post.Alert = !post.Alert
	if err := s.posts.Save(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete removes a post row and best-effort removes its media objects.
func (s *PostService) Delete(ctx context.Context, id uint) error {
	post, err := s.posts.GetByID(ctx, id, false)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	s.cleanupMedia(ctx, post.Media)
	return nil
}

// Report records an abuse report against a post.
func (s *PostService) Report(ctx context.Context, id uint, reason string) (*models.PostReport, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, models.NewValidationError("Reason is required")
	}
	if _, err := s.posts.GetByID(ctx, id, false); err != nil {
		return nil, err
	}

	report := &models.PostReport{PostID: id, Reason: reason}
	if err := s.posts.AddReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// cleanupMedia deletes uploaded objects after a failed creation or a post
// delete. Failures are logged, not returned; the compensation is best-effort.
func (s *PostService) cleanupMedia(ctx context.Context, media []models.PostMedia) {
	for _, m := range media {
		if err := s.store.Remove(ctx, m.StoragePath); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to remove uploaded media object",
				slog.String("path", m.StoragePath),
				slog.String("error", err.Error()))
		}
	}
}
