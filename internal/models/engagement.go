package models

import "gorm.io/gorm"

// PostVote is one user's vote on a post. Rating defaults to 1.
type PostVote struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	VoterID   string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_post_votes_voter_post" json:"voter"`
	PostID    string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_post_votes_voter_post;index" json:"post"`
	Rating    int     `gorm:"not null" json:"rating"`
	Emoji     string  `json:"emoji,omitempty"`
	Timestamp float64 `gorm:"not null" json:"timestamp"`
}

// PostFlag marks a post as objectionable
type PostFlag struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FlaggerID string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_post_flags_flagger_post" json:"flagger"`
	PostID    string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_post_flags_flagger_post;index" json:"post"`
	Timestamp float64 `gorm:"not null" json:"timestamp"`
}

type Comment struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Body      string  `gorm:"type:text;not null" json:"body"`
	PostID    string  `gorm:"type:varchar(36);not null;index" json:"post"`
	AuthorID  string  `gorm:"type:varchar(36);not null;index" json:"author"`
	Timestamp float64 `gorm:"not null" json:"timestamp"`
}

type CommentVote struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	VoterID   string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_comment_votes_voter_comment" json:"voter"`
	CommentID string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_comment_votes_voter_comment;index" json:"comment"`
	Timestamp float64 `gorm:"not null" json:"timestamp"`
}

type CommentFlag struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FlaggerID string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_comment_flags_flagger_comment" json:"flagger"`
	CommentID string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_comment_flags_flagger_comment;index" json:"comment"`
	Timestamp float64 `gorm:"not null" json:"timestamp"`
}

// Tag mentions a user inside a comment
type Tag struct {
	ID            string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CommentID     string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_tags_comment_tagged" json:"comment"`
	TaggedUserID  string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_tags_comment_tagged;index" json:"tagged_user"`
	TaggingUserID string  `gorm:"type:varchar(36);not null" json:"tagging_user"`
	Timestamp     float64 `gorm:"not null" json:"timestamp"`
}

type Favorite struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_favorites_user_post" json:"user"`
	PostID    string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_favorites_user_post" json:"post"`
	Timestamp float64 `gorm:"not null" json:"timestamp"`
}

// Feature puts a post on the featured list for the day of its timestamp
type Feature struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID    string  `gorm:"type:varchar(36);not null;uniqueIndex" json:"post"`
	Timestamp float64 `gorm:"not null;index" json:"timestamp"`
}

// View records that a user has seen a post
type View struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_views_user_post" json:"user"`
	PostID    string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_views_user_post" json:"post"`
	Timestamp float64 `gorm:"not null" json:"timestamp"`
}

func (v *PostVote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	stampIfZero(&v.Timestamp)
	return nil
}

func (f *PostFlag) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = generateUUID()
	}
	stampIfZero(&f.Timestamp)
	return nil
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	stampIfZero(&c.Timestamp)
	return nil
}

func (v *CommentVote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	stampIfZero(&v.Timestamp)
	return nil
}

func (f *CommentFlag) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = generateUUID()
	}
	stampIfZero(&f.Timestamp)
	return nil
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = generateUUID()
	}
	stampIfZero(&t.Timestamp)
	return nil
}

func (f *Favorite) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = generateUUID()
	}
	stampIfZero(&f.Timestamp)
	return nil
}

func (f *Feature) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = generateUUID()
	}
	stampIfZero(&f.Timestamp)
	return nil
}

func (v *View) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	stampIfZero(&v.Timestamp)
	return nil
}
