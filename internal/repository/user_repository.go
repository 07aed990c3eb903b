package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/mistapp/backend/internal/geo"
	"github.com/mistapp/backend/internal/models"
	"gorm.io/gorm"
)

// UserFilter narrows a user listing. Zero values mean no filter.
type UserFilter struct {
	Text       string
	Box        *geo.BoundingBox
	ExcludeIDs []string
	Limit      int
}

// UserRepository handles all database operations for users
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByLogin(ctx context.Context, emailOrUsername string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID string) error

	GetUsers(ctx context.Context, userIDs []string) ([]*models.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]*models.User, error)
	Usernames(ctx context.Context, userIDs []string) (map[string]string, error)

	IsBanned(ctx context.Context, email string) (bool, error)
	Ban(ctx context.Context, email string) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) first(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser gets a user by ID
func (r *userRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return r.first(ctx, "id = ?", userID)
}

// GetUserByEmail gets a user by email (case-insensitive)
func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

// GetUserByUsername gets a user by username (case-insensitive)
func (r *userRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username)))
}

// GetUserByLogin accepts either an email or a username
func (r *userRepository) GetUserByLogin(ctx context.Context, emailOrUsername string) (*models.User, error) {
	login := strings.ToLower(strings.TrimSpace(emailOrUsername))
	return r.first(ctx, "LOWER(email) = ? OR LOWER(username) = ?", login, login)
}

func (r *userRepository) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.first(ctx, "phone_number = ?", phone)
}

func (r *userRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if user == nil || user.ID == "" {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Save(user).Error
}

// DeleteUser removes the user along with everything they own
func (r *userRepository) DeleteUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var postIDs []string
		if err := tx.Model(&models.Post{}).Where("author_id = ?", userID).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if err := deletePostsTx(tx, postIDs); err != nil {
			return err
		}

		var commentIDs []string
		if err := tx.Model(&models.Comment{}).Where("author_id = ?", userID).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if err := deleteCommentsTx(tx, commentIDs); err != nil {
			return err
		}

		owned := []struct {
			model interface{}
			query string
		}{
			{&models.PostVote{}, "voter_id = ?"},
			{&models.PostFlag{}, "flagger_id = ?"},
			{&models.CommentVote{}, "voter_id = ?"},
			{&models.CommentFlag{}, "flagger_id = ?"},
			{&models.Tag{}, "tagged_user_id = ? OR tagging_user_id = ?"},
			{&models.Favorite{}, "user_id = ?"},
			{&models.View{}, "user_id = ?"},
			{&models.FriendRequest{}, "friending_user_id = ? OR friended_user_id = ?"},
			{&models.MatchRequest{}, "match_requesting_user_id = ? OR match_requested_user_id = ?"},
			{&models.Block{}, "blocking_user_id = ? OR blocked_user_id = ?"},
			{&models.Message{}, "sender_id = ? OR receiver_id = ?"},
			{&models.Notification{}, "user_id = ?"},
			{&models.Mistbox{}, "user_id = ?"},
			{&models.MistboxOpen{}, "user_id = ?"},
			{&models.Badge{}, "user_id = ?"},
		}
		for _, o := range owned {
			args := []interface{}{userID}
			if strings.Contains(o.query, " OR ") {
				args = append(args, userID)
			}
			if err := tx.Where(o.query, args...).Delete(o.model).Error; err != nil {
				return err
			}
		}

		return tx.Where("id = ?", userID).Delete(&models.User{}).Error
	})
}

// GetUsers gets multiple users by IDs
func (r *userRepository) GetUsers(ctx context.Context, userIDs []string) ([]*models.User, error) {
	var users []*models.User
	if len(userIDs) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error
	return users, err
}

// ListUsers searches users by username or name, optionally inside a box
func (r *userRepository) ListUsers(ctx context.Context, filter UserFilter) ([]*models.User, error) {
	var users []*models.User

	q := r.db.WithContext(ctx).Model(&models.User{})
	if filter.Text != "" {
		pattern := "%" + strings.ToLower(filter.Text) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			pattern, pattern, pattern)
	}
	if filter.Box != nil {
		q = withinBox(q, "users", *filter.Box)
	}
	if len(filter.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", filter.ExcludeIDs)
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxCandidates {
		limit = MaxCandidates
	}
	err := q.Order("username ASC").Limit(limit).Find(&users).Error
	return users, err
}

// Usernames maps user ids to usernames
func (r *userRepository) Usernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	var rows []struct {
		ID       string
		Username string
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("id, username").
		Where("id IN ?", userIDs).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.Username
	}
	return names, nil
}

func (r *userRepository) IsBanned(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Ban{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	return count > 0, err
}

// Ban records a ban for email. It reports whether a new ban was created;
// banning an already banned email is a no-op.
func (r *userRepository) Ban(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	banned, err := r.IsBanned(ctx, email)
	if err != nil || banned {
		return false, err
	}
	err = r.db.WithContext(ctx).Create(&models.Ban{Email: email}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	return err == nil, err
}

func withinBox(q *gorm.DB, table string, box geo.BoundingBox) *gorm.DB {
	q = q.Where(table+".latitude IS NOT NULL AND "+table+".longitude IS NOT NULL").
		Where(table+".latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat)
	if !box.AllLongitudes {
		q = q.Where(table+".longitude BETWEEN ? AND ?", box.MinLon, box.MaxLon)
	}
	return q
}
