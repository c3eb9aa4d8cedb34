// Package seed populates the database with realistic development data.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"portal/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var postCategories = []string{"general", "question", "event", "marketplace", "lost-and-found"}

// Seeder creates fake users, posts, events and news in the configured database.
type Seeder struct {
	db *gorm.DB
}

func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// ClearAll removes all seedable rows. Order matters for foreign keys.
func (s *Seeder) ClearAll() error {
	for _, table := range []string{"post_reports", "post_media", "posts", "events", "news", "users"} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Run seeds the requested number of users and posts plus a fixed set of
// events and news entries.
func (s *Seeder) Run(numUsers, numPosts int) error {
	gofakeit.Seed(time.Now().UnixNano())

	users, err := s.createUsers(numUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("Created %d users", len(users))

	if err := s.createPosts(users, numPosts); err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("Created %d posts", numPosts)

	if err := s.createEvents(12); err != nil {
		return fmt.Errorf("failed to create events: %w", err)
	}
	if err := s.createNews(8); err != nil {
		return fmt.Errorf("failed to create news: %w", err)
	}

	log.Println("Seeding complete")
	return nil
}

func (s *Seeder) createUsers(n int) ([]models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		user := models.User{
			Name:      gofakeit.Name(),
			Username:  fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999)),
			Email:     gofakeit.Email(),
			Password:  string(hashed),
			Verified:  true,
			Bio:       gofakeit.Sentence(10),
			City:      gofakeit.City(),
			AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) createPosts(users []models.User, n int) error {
	if len(users) == 0 {
		return fmt.Errorf("no users to attach posts to")
	}

	for i := 0; i < n; i++ {
		author := users[rand.Intn(len(users))]
		post := models.Post{
			UserID:       &author.ID,
			AuthorName:   author.Name,
			AuthorAvatar: author.AvatarURL,
			Content:      gofakeit.Paragraph(1, 3, 8, "\n"),
			Category:     postCategories[rand.Intn(len(postCategories))],
			Location:     gofakeit.City(),
			Likes:        gofakeit.Number(0, 200),
			Shares:       gofakeit.Number(0, 40),
			Status:       models.PostStatusApproved,
		}

		// Keep a slice pending so the moderation queue has content.
		if i%5 == 0 {
			post.Status = models.PostStatusPending
		}
		if i%9 == 0 {
			post.Alert = true
		}

		if err := s.db.Create(&post).Error; err != nil {
			return err
		}

		if i%7 == 0 {
			report := models.PostReport{
				PostID: post.ID,
				Reason: gofakeit.Sentence(8),
			}
			if err := s.db.Create(&report).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) createEvents(n int) error {
	for i := 0; i < n; i++ {
		start := time.Now().AddDate(0, 0, gofakeit.Number(1, 60))
		start = time.Date(start.Year(), start.Month(), start.Day(), 12, 0, 0, 0, time.UTC)
		end := start.Add(time.Duration(gofakeit.Number(1, 6)) * time.Hour)

		event := models.Event{
			Title:       gofakeit.Sentence(4),
			Description: gofakeit.Paragraph(1, 2, 6, "\n"),
			Category:    gofakeit.RandomString([]string{"community", "sports", "culture", "market"}),
			Location:    gofakeit.City(),
			StartDate:   start,
			EndDate:     &end,
			Status:      models.EventStatusApproved,
		}
		if i%4 == 0 {
			event.Status = models.EventStatusPending
		}
		if err := s.db.Create(&event).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) createNews(n int) error {
	for i := 0; i < n; i++ {
		item := models.News{
			Title:    gofakeit.Sentence(6),
			Source:   gofakeit.Company(),
			URL:      gofakeit.URL(),
			ImageURL: fmt.Sprintf("https://picsum.photos/seed/%s/600/400", gofakeit.UUID()),
		}
		if err := s.db.Create(&item).Error; err != nil {
			return err
		}
	}
	return nil
}
