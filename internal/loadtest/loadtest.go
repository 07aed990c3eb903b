// Package loadtest drives synthetic traffic against a running Mist API.
//
// Users are registered through the normal email-code flow, so the target
// server must run with AUTH_TEST_CODES=true and a known AUTH_STATIC_CODE.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-resty/resty/v2"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/telemetry"
	"go.uber.org/zap"
)

// Config controls a load test run
type Config struct {
	BaseURL  string
	Users    int
	Workers  int
	Duration time.Duration
	Code     string // static verification code the server issues

	Latitude  float64
	Longitude float64
	RadiusKM  float64
}

// DefaultConfig returns a small run against a local server
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:8000",
		Users:     10,
		Workers:   4,
		Duration:  30 * time.Second,
		Code:      "123456",
		Latitude:  40.7291,
		Longitude: -73.9965,
		RadiusKM:  5,
	}
}

// Session is a registered synthetic user
type Session struct {
	UserID   string
	Username string
	Token    string
}

// Runner registers users and issues traffic
type Runner struct {
	cfg   Config
	http  *resty.Client
	stats *Stats

	mu    sync.Mutex
	posts []string
}

// New creates a runner
func New(cfg Config) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	client := resty.NewWithClient(telemetry.NewInstrumentedHTTPClient(15 * time.Second))
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("Content-Type", "application/json")
	return &Runner{cfg: cfg, http: client, stats: NewStats()}
}

// Stats returns the collected latencies
func (r *Runner) Stats() *Stats {
	return r.stats
}

type tokenResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

type idResponse struct {
	ID string `json:"id"`
}

// call issues one request and records its latency under endpoint
func (r *Runner) call(ctx context.Context, endpoint, method, path, token string, body, result interface{}) error {
	req := r.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	elapsed := time.Since(start)
	if err != nil {
		// requests cut off by the end of the run are not failures
		if ctx.Err() == nil {
			r.stats.Record(endpoint, elapsed, false)
		}
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	if resp.IsError() {
		r.stats.Record(endpoint, elapsed, false)
		return fmt.Errorf("%s: status %d", endpoint, resp.StatusCode())
	}
	r.stats.Record(endpoint, elapsed, true)
	return nil
}

// Register creates cfg.Users accounts. Registration failures are logged and
// skipped; an error is returned only when nobody could register.
func (r *Runner) Register(ctx context.Context) ([]Session, error) {
	sessions := make([]Session, 0, r.cfg.Users)
	for i := 0; i < r.cfg.Users; i++ {
		s, err := r.registerOne(ctx)
		if err != nil {
			logger.WarnWithFields("Failed to register load test user", err, zap.Int("index", i))
			continue
		}
		sessions = append(sessions, s)
	}
	if len(sessions) == 0 {
		return nil, errors.New("no load test users registered")
	}
	return sessions, nil
}

func (r *Runner) registerOne(ctx context.Context) (Session, error) {
	suffix := gofakeit.LetterN(6)
	email := strings.ToLower(fmt.Sprintf("load+%s@%s", suffix, "example.com"))
	username := strings.ToLower(gofakeit.Username() + suffix)

	if err := r.call(ctx, "auth.email_code", "POST", "/api/v1/auth/email-codes", "",
		map[string]string{"email": email}, nil); err != nil {
		return Session{}, err
	}
	if err := r.call(ctx, "auth.validate", "POST", "/api/v1/auth/email-codes/validate", "",
		map[string]string{"email": email, "code": r.cfg.Code}, nil); err != nil {
		return Session{}, err
	}

	lat, lon := r.point()
	var tok tokenResponse
	err := r.call(ctx, "auth.register", "POST", "/api/v1/auth/register", "", map[string]interface{}{
		"email":      email,
		"username":   username,
		"password":   gofakeit.Password(true, true, true, false, false, 12),
		"first_name": gofakeit.FirstName(),
		"last_name":  gofakeit.LastName(),
		"latitude":   lat,
		"longitude":  lon,
	}, &tok)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: tok.User.ID, Username: username, Token: tok.Token}, nil
}

// Run registers users, then issues mixed traffic until cfg.Duration elapses
// or ctx is cancelled
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	sessions, err := r.Register(ctx)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Registered load test users", zap.Int("users", len(sessions)))

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)))
			for i := w; ctx.Err() == nil; i++ {
				r.step(ctx, rng, sessions[i%len(sessions)])
			}
		}(w)
	}
	wg.Wait()

	return r.stats.Report(time.Since(start)), nil
}

func (r *Runner) step(ctx context.Context, rng *rand.Rand, s Session) {
	var err error
	switch n := rng.Intn(100); {
	case n < 30:
		err = r.createPost(ctx, s)
	case n < 60:
		err = r.call(ctx, "posts.list", "GET", "/api/v1/posts", s.Token, nil, nil)
	case n < 70:
		lat, lon := r.point()
		path := fmt.Sprintf("/api/v1/posts/nearby?latitude=%f&longitude=%f", lat, lon)
		err = r.call(ctx, "posts.nearby", "GET", path, s.Token, nil, nil)
	case n < 85:
		if post := r.randomPost(rng); post != "" {
			err = r.call(ctx, "votes.create", "POST", "/api/v1/votes", s.Token,
				map[string]interface{}{"post": post, "rating": 1}, nil)
		}
	default:
		if post := r.randomPost(rng); post != "" {
			err = r.call(ctx, "comments.create", "POST", "/api/v1/comments", s.Token,
				map[string]string{"post": post, "body": gofakeit.HipsterSentence()}, nil)
		}
	}
	if err != nil && ctx.Err() == nil {
		logger.Log.Debug("Load test request failed", zap.Error(err))
	}
}

func (r *Runner) createPost(ctx context.Context, s Session) error {
	lat, lon := r.point()
	title := "Saw you near " + gofakeit.Noun()
	if len(title) > 40 {
		title = title[:40]
	}
	var created idResponse
	err := r.call(ctx, "posts.create", "POST", "/api/v1/posts", s.Token, map[string]interface{}{
		"title":     title,
		"body":      gofakeit.HipsterSentence(),
		"latitude":  lat,
		"longitude": lon,
	}, &created)
	if err != nil {
		return err
	}
	if created.ID != "" {
		r.mu.Lock()
		r.posts = append(r.posts, created.ID)
		r.mu.Unlock()
	}
	return nil
}

func (r *Runner) randomPost(rng *rand.Rand) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.posts) == 0 {
		return ""
	}
	return r.posts[rng.Intn(len(r.posts))]
}

// point returns a random location within cfg.RadiusKM of the center
func (r *Runner) point() (float64, float64) {
	km := r.cfg.RadiusKM
	dLat := (rand.Float64()*2 - 1) * km / 111.0
	dLon := (rand.Float64()*2 - 1) * km / (111.0 * math.Cos(r.cfg.Latitude*math.Pi/180))
	return r.cfg.Latitude + dLat, r.cfg.Longitude + dLon
}
