// Package app wires collegepay's components from configuration. The API, the
// worker and the operator CLI all start from Open.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"collegepay/internal/auth"
	"collegepay/internal/cloudinary"
	"collegepay/internal/config"
	"collegepay/internal/directory"
	"collegepay/internal/identity"
	"collegepay/internal/notify"
	"collegepay/internal/payment"
	"collegepay/internal/queue"
	"collegepay/internal/store"
	"collegepay/internal/worker"
)

// App holds the wired services.
type App struct {
	Config config.App

	DB      *store.DB
	Redis   *store.Redis
	Records store.Records
	Queue   queue.Queue

	Users    *directory.Service
	Provider *auth.Provider
	Guard    *auth.Guard
	Resolver *identity.Resolver
	Payments *payment.Service
}

// Open connects the configured backends. Postgres schemas are migrated on the
// way up.
func Open(ctx context.Context, cfg config.App) (*App, error) {
	a := &App{Config: cfg}

	switch cfg.StoreBackend {
	case "memory":
		a.Records = store.NewMemory()
		slog.Warn("using in-memory store, records are lost on restart")
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db connect failed: %w", err)
		}
		a.DB = db
		if err := store.Migrate(ctx, db.Client); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate failed: %w", err)
		}
		a.Records = store.NewPostgres(db.Client)
	}

	if cfg.CacheBackend == "redis" || cfg.QueueBackend == "redis" {
		a.Redis = store.NewRedis(cfg.RedisAddr)
		if !a.Redis.Healthy(ctx) {
			slog.Warn("redis not reachable at startup", "addr", cfg.RedisAddr)
		}
	}

	q, err := openQueue(cfg, a.redisClient())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Queue = q

	var cache *redis.Client
	if cfg.CacheBackend == "redis" {
		cache = a.redisClient()
	}
	a.Users = directory.New(a.Records, cache, cfg.DirectoryCacheTTL)

	var revocations auth.Revocations = auth.NewMemoryRevocations()
	if client := a.redisClient(); client != nil {
		revocations = auth.NewRedisRevocations(client)
	}
	a.Provider = auth.NewProvider(a.Records, revocations, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
	a.Guard = auth.NewGuard(a.Users)

	var codes *identity.Codes
	if cfg.OTPRequired {
		var codeStore identity.CodeStore = identity.NewMemoryCodeStore()
		if client := a.redisClient(); client != nil {
			codeStore = identity.NewRedisCodeStore(client)
		}
		codes = identity.NewCodes(codeStore, identity.LogSender{}, cfg.OTPTTL)
	}
	a.Resolver = identity.NewResolver(a.Users, a.Provider, codes)
	a.Payments = payment.NewService(a.Records, a.Users, a.Guard, a.Queue, cfg.ProofMaxBytes)
	return a, nil
}

func openQueue(cfg config.App, client *redis.Client) (queue.Queue, error) {
	switch cfg.QueueBackend {
	case "redis":
		return queue.NewRedisQueue(client, cfg.QueueKey), nil
	case "kafka":
		q, err := queue.NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic, "")
		if err != nil {
			return nil, fmt.Errorf("kafka connect failed: %w", err)
		}
		return q, nil
	default:
		return queue.NewInMemory(64), nil
	}
}

func (a *App) redisClient() *redis.Client {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Client
}

// Processor builds the background worker from the configured integrations.
func (a *App) Processor() *worker.Processor {
	var uploader worker.Uploader
	if a.Config.CloudinaryEnabled() {
		uploader = cloudinary.New(a.Config.CloudinaryCloudName, a.Config.CloudinaryAPIKey, a.Config.CloudinaryAPISecret, a.Config.CloudinaryFolder)
		slog.Info("Cloudinary configured", "cloud", a.Config.CloudinaryCloudName)
	} else {
		slog.Info("Cloudinary not configured, proofs stay inline")
	}

	var notifier notify.Notifier = notify.Log{}
	if a.Config.PubNubEnabled() {
		notifier = notify.NewPubNub(a.Config)
		slog.Info("PubNub notifications enabled")
	}
	return worker.NewProcessor(a.Payments, uploader, notifier)
}

// Healthy reports backend connectivity for /healthz.
func (a *App) Healthy(ctx context.Context) map[string]bool {
	out := map[string]bool{}
	if a.DB != nil {
		out["db"] = a.DB.Healthy(ctx)
	}
	if a.Redis != nil {
		out["redis"] = a.Redis.Healthy(ctx)
	}
	return out
}

// Close releases every connection Open made.
func (a *App) Close() {
	if c, ok := a.Queue.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("Close(): queue close failed", "error", err)
		}
	}
	_ = a.Redis.Close()
	_ = a.DB.Close()
}
