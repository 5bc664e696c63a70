package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/open-zaak/open-zaak/backend/go-services/api/openapi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/accounts"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/autorisaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/besluiten"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/catalogi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/config"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/database"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten/repository"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/notificaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/oidc"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/remote"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/schema"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/storage"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
)

// Models are the gorm models of all relational components.
func Models() []interface{} {
	var out []interface{}
	out = append(out, catalogi.Models()...)
	out = append(out, besluiten.Models()...)
	return append(out, autorisaties.Models()...)
}

// Connect opens the backends selected by cfg. The returned cleanup closes them.
func Connect(ctx context.Context, cfg *config.Config) (*Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Deps, func(), error) {
		cleanup()
		return nil, func() {}, err
	}
	d := &Deps{Config: cfg, Checks: map[string]Check{}}

	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = client.Close()
		} else {
			logger.Infof("Connected to Redis: %s", addr)
			d.Redis = client
			closers = append(closers, func() { _ = client.Close() })
			d.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}

	db, err := database.OpenGorm(cfg.Database.Driver, cfg.Database.DSN, Models()...)
	if err != nil {
		return fail(err)
	}
	d.DB = db
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, func() { _ = sqlDB.Close() })
	}

	failed := notificaties.FailedStore(notificaties.NewMemoryFailedStore())
	switch cfg.Storage.Backend {
	case "mongo":
		client, err := connectMongo(ctx, cfg.MongoDB)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
		d.Checks["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		mdb := client.Database(cfg.MongoDB.Database)
		if d.Documents, err = repository.NewMongoRepo(ctx, mdb); err != nil {
			return fail(err)
		}
		if failed, err = notificaties.NewMongoFailedStore(ctx, mdb); err != nil {
			return fail(err)
		}
		d.Accounts = accounts.NewMongoRepository(mdb)
	default:
		d.Documents = repository.NewMemoryRepo()
		d.Accounts = accounts.NewMemoryRepository()
	}

	if cfg.MinIO.Endpoint != "" {
		content, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			return fail(err)
		}
		d.Content = content
	} else {
		d.Content = storage.NewMemoryStorage()
	}

	client := newRemoteClient(cfg, d.Redis)
	d.Fetcher = client
	d.Loader = schema.NewLoader(client)
	registerSpecs(d.Loader, cfg.APISpecs)

	sender, closeSender, err := newSender(cfg.Notifications)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeSender)
	d.Notifier = notificaties.NewNotifier(sender, failed, notificaties.Disabled(cfg.Notifications.Disabled))

	if issuer := cfg.Keycloak.IssuerURL(); issuer != "" {
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			d.AdminVerifier = ver
		}
	}
	return d, cleanup, nil
}

// connectMongo retries with backoff to tolerate startup races.
func connectMongo(ctx context.Context, cfg config.MongoDBConfig) (*mongo.Client, error) {
	const maxAttempts = 5
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := database.ConnectMongo(ctx, cfg)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("could not connect to MongoDB after %d attempts: %w", maxAttempts, lastErr)
}

func newRemoteClient(cfg *config.Config, rdb *redis.Client) *remote.Client {
	creds := make([]remote.Credentials, 0, len(cfg.Remote.Services))
	for _, s := range cfg.Remote.Services {
		creds = append(creds, remote.Credentials{APIRoot: s.APIRoot, ClientID: s.ClientID, Secret: s.Secret})
	}
	var cache remote.Cache = remote.NewMemoryCache()
	if rdb != nil {
		cache = remote.NewRedisCache(rdb)
	}
	return remote.NewClient(
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		remote.WithCredentials(creds...),
		remote.WithCache(cache, cfg.Remote.CacheTTL),
	)
}

// registerSpecs serves the embedded documents for the configured spec URLs, so
// validating remote resources does not need to download them.
func registerSpecs(l *schema.Loader, specs config.APISpecConfig) {
	for component, specURL := range map[string]string{
		"documenten": specs.DRC,
		"besluiten":  specs.BRC,
		"catalogi":   specs.ZTC,
		"zaken":      specs.ZRC,
	} {
		if specURL == "" {
			continue
		}
		if doc, err := openapi.Document(component); err == nil {
			l.Register(specURL, doc)
		}
	}
}

func newSender(cfg config.NotificationsConfig) (notificaties.Sender, func(), error) {
	noop := func() {}
	if cfg.Disabled {
		return nil, noop, nil
	}
	switch cfg.Backend {
	case "kafka":
		s, err := notificaties.NewKafkaSender(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		if cfg.NRCURL == "" {
			return nil, noop, nil
		}
		return notificaties.NewHTTPSender(cfg.NRCURL, cfg.ClientID, cfg.Secret, &http.Client{Timeout: 10 * time.Second}), noop, nil
	}
}
