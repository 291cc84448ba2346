// Package retry runs transient network calls a bounded number of times with
// exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

type Config struct {
	MaxTries        uint          `yaml:"RETRY_MAX_TRIES" env:"RETRY_MAX_TRIES" env-default:"3"`
	InitialInterval time.Duration `yaml:"RETRY_INITIAL_INTERVAL" env:"RETRY_INITIAL_INTERVAL" env-default:"500ms"`
	MaxInterval     time.Duration `yaml:"RETRY_MAX_INTERVAL" env:"RETRY_MAX_INTERVAL" env-default:"5s"`
}

func Default() Config {
	return Config{MaxTries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls fn until it succeeds, returns a permanent error, runs out of tries or
// ctx is done.
func Do[T any](ctx context.Context, cfg Config, l *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	tries := cfg.MaxTries
	if tries == 0 {
		tries = 1
	}
	return backoff.Retry(ctx, func() (T, error) {
		return fn(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.Warn("retrying after error",
				zap.String("op", op),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)
}
