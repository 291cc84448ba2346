package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaam8/lingua_bot/internal/api"
	"github.com/jaam8/lingua_bot/internal/audio"
	"github.com/jaam8/lingua_bot/internal/config"
	"github.com/jaam8/lingua_bot/internal/generator"
	"github.com/jaam8/lingua_bot/internal/repository"
	"github.com/jaam8/lingua_bot/internal/service"
	"github.com/jaam8/lingua_bot/internal/tally"
	"github.com/jaam8/lingua_bot/pkg/database"
	"github.com/jaam8/lingua_bot/pkg/logger"
	"github.com/jaam8/lingua_bot/pkg/openai"
	"github.com/jaam8/lingua_bot/pkg/redis"
	"github.com/jaam8/lingua_bot/pkg/storage"
	"github.com/jaam8/lingua_bot/pkg/tarantool"
	"github.com/mattermost/mattermost-server/v6/model"
	got "github.com/tarantool/go-tarantool"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds what the commands share; closers run in reverse order.
type app struct {
	cfg *config.Config
	log *zap.Logger

	closers []func()
}

func newApp() (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}
	a.onClose(func() { _ = log.Sync() })
	return a, nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) stories() (*repository.StoryRepository, error) {
	db, err := database.New(a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { closeDB(db, a.log) })
	a.log.Info("story database opened", zap.String("driver", a.cfg.Database.Driver))
	return repository.NewStoryRepository(db, a.log), nil
}

func closeDB(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err = sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}

// openAI returns nil when no key is configured.
func (a *app) openAI() (*openai.Client, error) {
	if a.cfg.OpenAI.APIKey == "" {
		return nil, nil
	}
	return openai.New(a.cfg.OpenAI, a.cfg.Retry, a.log)
}

func (a *app) generator(ctx context.Context, oa *openai.Client) (generator.Generator, error) {
	return generator.New(ctx, a.cfg.Generator, oa, a.cfg.Retry, a.log)
}

func (a *app) redis(ctx context.Context) (*redis.Client, error) {
	if !a.cfg.Redis.Enabled() {
		return nil, nil
	}
	rdb, err := redis.NewClient(ctx, a.cfg.Redis, a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = rdb.Close() })
	return rdb, nil
}

// tally builds the poll tally, mirrored to tarantool when it is enabled.
func (a *app) tally(ctx context.Context) (*tally.Tally, error) {
	if !a.cfg.Tarantool.Enabled {
		return tally.New(a.log), nil
	}
	conn, err := tarantool.New(a.cfg.Tarantool)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { closeTarantool(conn, a.log) })
	t := tally.New(a.log, tally.WithStore(repository.NewQuizPollRepository(conn, a.log)))
	a.onClose(t.Close)
	if _, err = t.Restore(ctx); err != nil {
		a.log.Warn("starting with an empty poll tally", zap.Error(err))
	}
	return t, nil
}

func closeTarantool(conn *got.Connection, log *zap.Logger) {
	if err := conn.CloseGraceful(); err != nil {
		log.Warn("failed to close tarantool", zap.Error(err))
	}
}

// mattermost logs the bot in and returns its REST client and user id.
func (a *app) mattermost() (*model.Client4, string, error) {
	if err := a.cfg.Bot(); err != nil {
		return nil, "", err
	}
	client := model.NewAPIv4Client(a.cfg.MmURL)
	client.SetToken(a.cfg.BotToken)
	user, resp, err := client.GetUser("me", "")
	a.log.Debug("get bot user", zap.Int("status_code", statusCode(resp)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to get bot user: %w", err)
	}
	return client, user.Id, nil
}

func statusCode(resp *model.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// delivery wires the cycle with its optional redis lock and S3 archive.
func (a *app) delivery(ctx context.Context, ch *api.Channel, t *tally.Tally) (*service.DeliveryService, error) {
	stories, err := a.stories()
	if err != nil {
		return nil, err
	}
	oa, err := a.openAI()
	if err != nil {
		return nil, err
	}
	gen, err := a.generator(ctx, oa)
	if err != nil {
		return nil, err
	}
	renderer, err := audio.New(ctx, a.cfg.Audio, oa, a.cfg.Generator.GeminiKey, a.cfg.Retry, a.log)
	if err != nil {
		return nil, err
	}

	opts := []service.DeliveryOption{service.WithRetry(a.cfg.Retry)}
	rdb, err := a.redis(ctx)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		opts = append(opts, service.WithLocker(rdb))
	}
	if a.cfg.Storage.Enabled() {
		archive, err := storage.NewS3(ctx, a.cfg.Storage, a.log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithArchive(archive))
	}
	return service.NewDeliveryService(stories, gen, renderer, ch, t, a.cfg.Delivery, a.cfg.Audio.Language, a.log, opts...), nil
}

var errNoOpenAIKey = errors.New("OPENAI_API_KEY is required")
