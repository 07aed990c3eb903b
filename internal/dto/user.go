package dto

import (
	"time"

	"github.com/mistapp/backend/internal/models"
)

// UserResponse is the public user representation
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Picture   string    `json:"picture,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Distance  *float64  `json:"distance,omitempty"`
	CreatedAt time.Time `json:"date_joined"`
}

// UserDetailResponse includes private fields, returned only to the user
// themselves.
type UserDetailResponse struct {
	UserResponse
	Email       string     `json:"email"`
	PhoneNumber *string    `json:"phone_number,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Sex         string     `json:"sex,omitempty"`
	IsSuperuser bool       `json:"is_superuser"`
}

// UpdateUserRequest supports partial profile updates
type UpdateUserRequest struct {
	FirstName     *string    `json:"first_name,omitempty" binding:"omitempty,max=150"`
	LastName      *string    `json:"last_name,omitempty" binding:"omitempty,max=150"`
	Username      *string    `json:"username,omitempty" binding:"omitempty,min=1,max=150"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	Sex           *string    `json:"sex,omitempty"`
	Latitude      *float64   `json:"latitude,omitempty" binding:"omitempty,min=-90,max=90"`
	Longitude     *float64   `json:"longitude,omitempty" binding:"omitempty,min=-180,max=180"`
	ExpoPushToken *string    `json:"expo_push_token,omitempty"`
}

// ToUserResponse converts models.User to UserResponse (excludes sensitive fields)
func ToUserResponse(user *models.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Picture:   user.ProfilePictureURL,
		Latitude:  user.Latitude,
		Longitude: user.Longitude,
		CreatedAt: user.CreatedAt,
	}
}

// ToUserDetailResponse converts models.User for its owner
func ToUserDetailResponse(user *models.User) *UserDetailResponse {
	if user == nil {
		return nil
	}
	return &UserDetailResponse{
		UserResponse: *ToUserResponse(user),
		Email:        user.Email,
		PhoneNumber:  user.PhoneNumber,
		DateOfBirth:  user.DateOfBirth,
		Sex:          user.Sex,
		IsSuperuser:  user.IsSuperuser,
	}
}
