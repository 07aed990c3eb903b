package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account
const DefaultPassword = "password123"

// Seed data clusters around this point so nearby queries return results
var (
	centerLat = 40.7291
	centerLon = -73.9965
)

var keywordPool = []string{
	"coffee", "subway", "library", "gym", "concert", "park", "bookstore",
	"bar", "museum", "beach", "train", "dog", "rain", "bike", "laundromat",
}

// Seeder handles database seeding operations
type Seeder struct {
	db    *gorm.DB
	posts repository.PostRepository
	hash  string
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	// Note: Seed returns an error only for invalid sources
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db, posts: repository.NewPostRepository(db)}
}

func (s *Seeder) passwordHash() (string, error) {
	if s.hash != "" {
		return s.hash, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	s.hash = string(hashed)
	return s.hash, nil
}

// SeedDev seeds the development database with realistic data
func (s *Seeder) SeedDev(ctx context.Context, userCount, postCount int) error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating users...")
	users, err := s.seedUsers(ctx, userCount)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	if len(users) < 2 {
		return errors.New("need at least two users to seed interactions")
	}

	log("Creating posts...")
	posts, err := s.seedPosts(ctx, users, postCount)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	log("Creating comments and votes...")
	if err := s.seedEngagement(ctx, users, posts); err != nil {
		return fmt.Errorf("failed to seed engagement: %w", err)
	}

	log("Creating friend requests and messages...")
	if err := s.seedSocial(ctx, users); err != nil {
		return fmt.Errorf("failed to seed social graph: %w", err)
	}

	log("Creating access codes...")
	if _, err := s.SeedAccessCodes(ctx, 20); err != nil {
		return fmt.Errorf("failed to seed access codes: %w", err)
	}

	return nil
}

// SeedTest seeds a small fixed data set. Running it twice is a no-op.
func (s *Seeder) SeedTest(ctx context.Context) error {
	accounts := []struct {
		username  string
		firstName string
		lastName  string
		superuser bool
	}{
		{"alice", "Alice", "Smith", false},
		{"bob", "Bob", "Johnson", false},
		{"charlie", "Charlie", "Brown", false},
		{"diana", "Diana", "Prince", false},
		{"admin", "Ada", "Admin", true},
	}

	hash, err := s.passwordHash()
	if err != nil {
		return err
	}

	var users []models.User
	for i, acct := range accounts {
		var user models.User
		err := s.db.WithContext(ctx).Where("username = ?", acct.username).First(&user).Error
		if err == nil {
			users = append(users, user)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		lat, lon := jitter(float64(i) * 0.2)
		user = models.User{
			Email:        acct.username + "@example.com",
			Username:     acct.username,
			PasswordHash: hash,
			FirstName:    acct.firstName,
			LastName:     acct.lastName,
			Latitude:     &lat,
			Longitude:    &lon,
			IsSuperuser:  acct.superuser,
		}
		if err := s.createUser(ctx, &user, []string{"coffee"}); err != nil {
			return fmt.Errorf("failed to create test user %s: %w", acct.username, err)
		}
		users = append(users, user)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	logger.Log.Info("Creating test posts...")
	posts, err := s.seedPosts(ctx, users[:len(users)-1], 5)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}
	return s.seedEngagement(ctx, users, posts)
}

// SeedSystemVoters creates the accounts the synthetic vote job votes as
func (s *Seeder) SeedSystemVoters(ctx context.Context, usernames []string) error {
	hash, err := s.passwordHash()
	if err != nil {
		return err
	}
	for _, name := range usernames {
		user := models.User{Email: name + "@system.mist.app", Username: name, PasswordHash: hash}
		err := s.db.WithContext(ctx).Where(models.User{Username: name}).FirstOrCreate(&user).Error
		if err != nil {
			return fmt.Errorf("failed to create system voter %s: %w", name, err)
		}
	}
	return nil
}

// SeedAccessCodes creates n unclaimed access codes and returns them
func (s *Seeder) SeedAccessCodes(ctx context.Context, n int) ([]string, error) {
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code := models.AccessCode{Code: strings.ToUpper(gofakeit.LetterN(4) + "-" + gofakeit.DigitN(4))}
		err := s.db.WithContext(ctx).Create(&code).Error
		if database.IsDuplicate(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		codes = append(codes, code.Code)
	}
	return codes, nil
}

// Clean removes all Mist data (use with caution!)
func (s *Seeder) Clean(ctx context.Context) error {
	tables := []string{
		"notifications", "badges", "access_codes", "mistbox_opens", "mistboxes",
		"messages", "blocks", "match_requests", "friend_requests", "views",
		"features", "favorites", "tags", "comment_flags", "comment_votes",
		"comments", "post_flags", "post_votes", "post_words", "words", "posts",
		"bans", "password_resets", "phone_number_authentications",
		"email_authentications", "users",
	}
	for _, table := range tables {
		if err := s.db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) createUser(ctx context.Context, user *models.User, keywords []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Mistbox{
			UserID:    user.ID,
			Keywords:  keywords,
			OpensLeft: models.DefaultMistboxOpens,
		}).Error
	})
}

// seedUsers creates users with realistic data
func (s *Seeder) seedUsers(ctx context.Context, count int) ([]models.User, error) {
	hash, err := s.passwordHash()
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		lat, lon := jitter(5)
		sex := []string{"m", "f", "x"}[rand.Intn(3)]
		dob := gofakeit.DateRange(time.Now().AddDate(-40, 0, 0), time.Now().AddDate(-18, 0, 0))
		user := models.User{
			Email:        strings.ToLower(gofakeit.Email()),
			Username:     strings.ToLower(gofakeit.Username()),
			PasswordHash: hash,
			FirstName:    gofakeit.FirstName(),
			LastName:     gofakeit.LastName(),
			Sex:          sex,
			DateOfBirth:  &dob,
			Latitude:     &lat,
			Longitude:    &lon,
		}

		err := s.createUser(ctx, &user, pickKeywords(rand.Intn(4)))
		if database.IsDuplicate(err) {
			// gofakeit collided with an existing account
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	logger.Log.Info("Seeded users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Seeder) seedPosts(ctx context.Context, users []models.User, count int) ([]models.Post, error) {
	posts := make([]models.Post, 0, count)
	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		author := users[rand.Intn(len(users))]
		lat, lon := jitter(3)
		place := keywordPool[rand.Intn(len(keywordPool))]
		created := now.Add(-time.Duration(rand.Intn(72*60)) * time.Minute)

		post := models.Post{
			Title:     truncate("Saw you at the "+place+" in "+gofakeit.City(), 40),
			Body:      truncate(gofakeit.HipsterSentence()+" You had "+gofakeit.Color()+" shoes and a "+place+" vibe.", 1000),
			AuthorID:  author.ID,
			Timestamp: models.EpochOf(created),
			CreatedAt: created,
			Latitude:  &lat,
			Longitude: &lon,
		}
		if err := s.posts.CreatePost(ctx, &post); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *Seeder) seedEngagement(ctx context.Context, users []models.User, posts []models.Post) error {
	db := s.db.WithContext(ctx)
	for _, post := range posts {
		for _, u := range users {
			if u.ID == post.AuthorID {
				continue
			}
			switch r := rand.Float64(); {
			case r < 0.4:
				vote := models.PostVote{VoterID: u.ID, PostID: post.ID, Rating: 1 + rand.Intn(5)}
				if err := db.Create(&vote).Error; err != nil && !database.IsDuplicate(err) {
					return err
				}
			case r < 0.5:
				comment := models.Comment{Body: gofakeit.HipsterSentence(), PostID: post.ID, AuthorID: u.ID}
				if err := db.Create(&comment).Error; err != nil {
					return err
				}
			case r < 0.55:
				fav := models.Favorite{UserID: u.ID, PostID: post.ID}
				if err := db.Create(&fav).Error; err != nil && !database.IsDuplicate(err) {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Seeder) seedSocial(ctx context.Context, users []models.User) error {
	db := s.db.WithContext(ctx)
	for i, u := range users {
		other := users[(i+1+rand.Intn(len(users)-1))%len(users)]
		if other.ID == u.ID {
			continue
		}
		fr := models.FriendRequest{FriendingUserID: u.ID, FriendedUserID: other.ID}
		if err := db.Create(&fr).Error; err != nil && !database.IsDuplicate(err) {
			return err
		}
		for j := 0; j < rand.Intn(4); j++ {
			sender, receiver := u, other
			if j%2 == 1 {
				sender, receiver = other, u
			}
			msg := models.Message{Body: gofakeit.HipsterSentence(), SenderID: sender.ID, ReceiverID: receiver.ID}
			if err := db.Create(&msg).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// jitter returns a point within roughly km of the seed center
func jitter(km float64) (float64, float64) {
	dLat := (rand.Float64()*2 - 1) * km / 111.0
	dLon := (rand.Float64()*2 - 1) * km / (111.0 * math.Cos(centerLat*math.Pi/180))
	return centerLat + dLat, centerLon + dLon
}

func pickKeywords(n int) []string {
	out := make([]string, 0, n)
	for _, i := range rand.Perm(len(keywordPool))[:n] {
		out = append(out, keywordPool[i])
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
