package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/metrics"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/ranking"
	"github.com/mistapp/backend/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// SyntheticVotesJobName is the lock and metric name of the vote tally
	SyntheticVotesJobName = "synthetic_votes"

	// SyntheticVoteWindow is how young a post must be to get system votes
	SyntheticVoteWindow = 24 * time.Hour

	// SyntheticVoteThreshold is the vote count at which a post stops
	// receiving system votes
	SyntheticVoteThreshold = 3
)

// SyntheticVotes gives young posts with few votes a vote from each system
// account so new content is not buried before anyone sees it
type SyntheticVotes struct {
	db     *gorm.DB
	posts  repository.PostRepository
	users  repository.UserRepository
	voters []string // usernames
	now    func() time.Time
}

// NewSyntheticVotes creates the job. voters are system account usernames.
func NewSyntheticVotes(db *gorm.DB, voters []string) *SyntheticVotes {
	return &SyntheticVotes{
		db:     db,
		posts:  repository.NewPostRepository(db),
		users:  repository.NewUserRepository(db),
		voters: voters,
		now:    time.Now,
	}
}

// Job wraps the tally for the scheduler
func (j *SyntheticVotes) Job() Job {
	return Job{Name: SyntheticVotesJobName, Schedule: Hourly(), Run: j.Run}
}

// Run casts the system votes. Votes that already exist are skipped.
func (j *SyntheticVotes) Run(ctx context.Context) error {
	if len(j.voters) == 0 {
		return nil
	}

	voterIDs := make([]string, 0, len(j.voters))
	for _, name := range j.voters {
		u, err := j.users.GetUserByUsername(ctx, name)
		if err != nil {
			logger.WarnWithFields("Unknown system voter", err, zap.String("username", name))
			continue
		}
		voterIDs = append(voterIDs, u.ID)
	}
	if len(voterIDs) == 0 {
		return fmt.Errorf("none of the %d system voters exist", len(j.voters))
	}

	since := j.now().Add(-SyntheticVoteWindow)
	candidates, err := j.posts.ListPosts(ctx, repository.PostFilter{CreatedAfter: &since})
	if err != nil {
		return fmt.Errorf("list recent posts: %w", err)
	}
	ids := make([]string, len(candidates))
	for i, p := range candidates {
		ids[i] = p.ID
	}
	stats, err := j.posts.Stats(ctx, ids)
	if err != nil {
		return fmt.Errorf("post stats: %w", err)
	}

	cast := 0
	for _, post := range candidates {
		if stats[post.ID].NumVotes >= SyntheticVoteThreshold {
			continue
		}
		for _, voterID := range voterIDs {
			if voterID == post.AuthorID {
				continue
			}
			err := j.vote(ctx, voterID, post.ID)
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			if err != nil {
				logger.WarnWithFields("Failed to cast system vote", err, logger.WithPostID(post.ID))
				continue
			}
			cast++
			metrics.Get().VotesCastBySystem.Inc()
		}
	}

	logger.Log.Info("Cast system votes", zap.Int("votes", cast), zap.Int("candidates", len(candidates)))
	return nil
}

func (j *SyntheticVotes) vote(ctx context.Context, voterID, postID string) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Where("id = ?", postID).First(&post).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.PostVote{VoterID: voterID, PostID: postID, Rating: 1}).Error; err != nil {
			return err
		}
		return tx.Model(&post).UpdateColumn("timestamp", ranking.BumpTimestamp(post.Timestamp, j.now())).Error
	})
}
