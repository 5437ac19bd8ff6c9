package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ayush/storefinder/internal/config"
	"github.com/ayush/storefinder/internal/photos"
	"github.com/ayush/storefinder/internal/store"
)

// deps are the external services the server talks to.
type deps struct {
	mongo   *mongo.Client
	pg      *pgxpool.Pool
	redis   *redis.Client
	stores  *store.MongoStore
	users   *store.UserStore
	reviews *store.PostgresStore
	files   photos.FileStore
}

func openDeps(ctx context.Context, cfg config.Config) (_ *deps, err error) {
	d := &deps{}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	// ── MongoDB ──────────────────────────────────────────────
	if d.mongo, err = store.Connect(ctx, cfg.MongoURI); err != nil {
		return nil, err
	}
	db := d.mongo.Database(cfg.MongoDB)
	d.stores = store.NewMongoStore(db)
	d.users = store.NewUserStore(db)

	// ── PostgreSQL ───────────────────────────────────────────
	if d.pg, err = pgxpool.New(ctx, cfg.PostgresDSN); err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err = d.pg.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	d.reviews = store.NewPostgresStore(d.pg)

	// ── Redis ────────────────────────────────────────────────
	if d.redis, err = store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
		return nil, err
	}

	// ── Photos ───────────────────────────────────────────────
	if d.files, err = openFileStore(ctx, cfg.Photos); err != nil {
		return nil, err
	}
	return d, nil
}

func openFileStore(ctx context.Context, cfg config.PhotoConfig) (photos.FileStore, error) {
	if cfg.Backend == "minio" {
		m, err := store.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	disk, err := store.NewDiskStore(cfg.UploadsDir)
	if err != nil {
		return nil, err
	}
	return disk, nil
}

// migrate applies the review schema and the MongoDB indexes.
func (d *deps) migrate(ctx context.Context) error {
	if err := d.reviews.Migrate(ctx); err != nil {
		return err
	}
	if err := d.stores.EnsureIndexes(ctx); err != nil {
		return err
	}
	return d.users.EnsureIndexes(ctx)
}

func (d *deps) Close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Error().Err(err).Msg("close redis")
		}
	}
	if d.pg != nil {
		d.pg.Close()
	}
	if d.mongo != nil {
		if err := d.mongo.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("disconnect mongo")
		}
	}
}
