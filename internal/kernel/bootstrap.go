package kernel

import (
	"context"
	"net/http"

	"github.com/mistapp/backend/internal/auth"
	"github.com/mistapp/backend/internal/cache"
	"github.com/mistapp/backend/internal/config"
	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/email"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/push"
	"github.com/mistapp/backend/internal/search"
	"github.com/mistapp/backend/internal/sms"
	"github.com/mistapp/backend/internal/storage"
	"github.com/mistapp/backend/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Build connects every dependency cfg enables and registers its shutdown
// hook. The database is required; Redis, Elasticsearch, SES, S3 and Twilio
// are optional and a failure to reach them is logged, not returned.
func Build(ctx context.Context, cfg *config.Config) (*Kernel, error) {
	k := New().SetLogger(logger.Log)

	if err := database.Initialize(cfg.Database.Driver, cfg.Database.URL, cfg.Environment == "development"); err != nil {
		return nil, err
	}
	db := database.DB
	if cfg.Telemetry.Enabled {
		if err := db.Use(telemetry.GORMTracingPlugin(cfg.Database.Driver)); err != nil {
			logger.WarnWithFields("Failed to install GORM tracing", err)
		}
	}
	k.SetDB(db)
	k.OnCleanup(func(context.Context) error { return database.Close() })

	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			logger.WarnWithFields("Redis unavailable, continuing without cache", err)
		} else {
			k.SetCache(redisClient)
			k.OnCleanup(func(context.Context) error { return redisClient.Close() })
		}
	}

	if cfg.Search.Enabled {
		searchClient, err := search.NewClient(cfg.Search.URL, otelhttp.NewTransport(http.DefaultTransport))
		if err != nil {
			logger.WarnWithFields("Elasticsearch unavailable, falling back to word search", err)
		} else if err := searchClient.InitializeIndices(ctx); err != nil {
			logger.WarnWithFields("Failed to initialize search indices", err)
		} else {
			k.SetSearchClient(searchClient)
		}
	}

	if cfg.AWS.Bucket != "" {
		uploader, err := storage.NewS3Uploader(cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.CDNBaseURL)
		if err != nil {
			logger.WarnWithFields("Failed to initialize S3 uploader", err)
		} else {
			if err := uploader.CheckBucketAccess(ctx); err != nil {
				logger.WarnWithFields("S3 bucket access failed, profile picture uploads will fail", err,
					zap.String("bucket", cfg.AWS.Bucket))
			}
			k.SetUploader(uploader)
		}
	}

	k.SetPushSender(push.NewClient(cfg.Push.URL))

	// nil senders must stay untyped nil so auth falls back to logging codes
	var emailSender auth.EmailSender
	if cfg.AWS.EmailFrom != "" {
		svc, err := email.NewEmailService(cfg.AWS.Region, cfg.AWS.EmailFrom, cfg.AWS.EmailName)
		if err != nil {
			logger.WarnWithFields("Failed to initialize SES, email codes will only be logged", err)
		} else {
			emailSender = svc
		}
	}
	var smsSender auth.SMSSender
	if cfg.SMS.AccountSID != "" {
		smsSender = sms.NewTwilioClient(sms.Config{
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			FromNumber: cfg.SMS.FromNumber,
			BaseURL:    cfg.SMS.BaseURL,
		})
	}

	k.SetAuthService(auth.NewService(db, auth.Config{
		JWTSecret:  cfg.Secret(),
		TokenTTL:   cfg.Auth.TokenTTL,
		CodeTTL:    cfg.Auth.CodeTTL,
		TestCodes:  cfg.Auth.TestCodes,
		StaticCode: cfg.Auth.StaticCode,
	}, emailSender, smsSender))

	if err := k.Validate(); err != nil {
		_ = k.Cleanup(ctx)
		return nil, err
	}
	return k, nil
}
