package models

import (
	"time"

	"github.com/google/uuid"
)

func generateUUID() string {
	return uuid.New().String()
}

// NowEpoch returns the current time as fractional Unix seconds, the
// timestamp format the mobile client reads and writes.
func NowEpoch() float64 {
	return EpochOf(time.Now())
}

// EpochOf converts t to fractional Unix seconds
func EpochOf(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// TimeOf converts fractional Unix seconds back to a UTC time
func TimeOf(epoch float64) time.Time {
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

func stampIfZero(ts *float64) {
	if *ts == 0 {
		*ts = NowEpoch()
	}
}

// All returns every model in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&EmailAuthentication{},
		&PhoneNumberAuthentication{},
		&PasswordReset{},
		&Ban{},
		&Word{},
		&Post{},
		&PostVote{},
		&PostFlag{},
		&Comment{},
		&CommentVote{},
		&CommentFlag{},
		&Tag{},
		&Favorite{},
		&Feature{},
		&View{},
		&FriendRequest{},
		&MatchRequest{},
		&Block{},
		&Message{},
		&Notification{},
		&Mistbox{},
		&MistboxOpen{},
		&AccessCode{},
		&Badge{},
	}
}
