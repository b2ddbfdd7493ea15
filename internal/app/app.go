package app

import (
	"codingescape/internal/cache"
	"codingescape/internal/config"
	"codingescape/internal/repository"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// App holds the backends shared by the server and the seeder
type App struct {
	Store       *repository.Store
	Redis       *redis.Client // nil when REDIS_URI is unset
	Leaderboard cache.LeaderboardCache
	Runs        cache.RunCache
}

// Open connects the configured store and, when configured, Redis
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Store: store}

	if cfg.RedisURI == "" {
		log.Println("Warning: REDIS_URI not set, caches disabled")
		return a, nil
	}
	rdb, err := OpenRedis(ctx, cfg.RedisURI)
	if err != nil {
		store.Close(ctx)
		return nil, err
	}
	a.Redis = rdb
	a.Leaderboard = cache.NewLeaderboardCache(rdb)
	a.Runs = cache.NewRunCache(rdb)
	return a, nil
}

// Close releases every backend
func (a *App) Close(ctx context.Context) {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if err := a.Store.Close(ctx); err != nil {
		log.Printf("Store close error: %v", err)
	}
}

// OpenStore picks the Mongo or SQLite repositories
func OpenStore(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		store, err := repository.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Printf("Using SQLite store at %s", cfg.SQLitePath)
		return store, nil

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			client.Disconnect(ctx)
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		store, err := repository.NewMongoStore(ctx, client, cfg.MongoDB)
		if err != nil {
			client.Disconnect(ctx)
			return nil, err
		}
		log.Println("Connected to MongoDB")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want mongo or sqlite)", cfg.StoreDriver)
	}
}

// OpenRedis accepts host:port or a redis:// URL
func OpenRedis(ctx context.Context, uri string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.HasPrefix(uri, "redis://") || strings.HasPrefix(uri, "rediss://") {
		var err error
		if opts, err = redis.ParseURL(uri); err != nil {
			return nil, fmt.Errorf("parse REDIS_URI: %w", err)
		}
	} else {
		opts = &redis.Options{Addr: uri}
	}

	rdb := redis.NewClient(opts)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Println("Connected to Redis")
	return rdb, nil
}
