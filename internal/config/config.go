package config

import (
	"errors"
	"io/fs"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jaam8/lingua_bot/internal/audio"
	"github.com/jaam8/lingua_bot/internal/dashboard"
	"github.com/jaam8/lingua_bot/internal/generator"
	"github.com/jaam8/lingua_bot/internal/scheduler"
	"github.com/jaam8/lingua_bot/internal/service"
	"github.com/jaam8/lingua_bot/pkg/database"
	"github.com/jaam8/lingua_bot/pkg/openai"
	"github.com/jaam8/lingua_bot/pkg/redis"
	"github.com/jaam8/lingua_bot/pkg/retry"
	"github.com/jaam8/lingua_bot/pkg/storage"
	"github.com/jaam8/lingua_bot/pkg/tarantool"
	"github.com/joho/godotenv"
)

type Config struct {
	RestPort          string `yaml:"REST_PORT"           env:"REST_PORT" env-default:"8080"`
	BotToken          string `yaml:"BOT_TOKEN"           env:"BOT_TOKEN"`
	MmURL             string `yaml:"MM_URL"              env:"MM_URL"`
	MmWsURL           string `yaml:"MM_WS_URL"           env:"MM_WS_URL"`
	ChannelID         string `yaml:"CHANNEL_ID"          env:"CHANNEL_ID"`
	OperatorChannelID string `yaml:"OPERATOR_CHANNEL_ID" env:"OPERATOR_CHANNEL_ID"`
	LogLevel          string `yaml:"LOG_LEVEL"           env:"LOG_LEVEL" env-default:"debug"`

	Tarantool tarantool.Config       `yaml:"TARANTOOL" env:"TARANTOOL"`
	Redis     redis.Config           `yaml:"REDIS"     env:"REDIS"`
	Database  database.Config        `yaml:"DATABASE"  env:"DATABASE"`
	Storage   storage.Config         `yaml:"STORAGE"   env:"STORAGE"`
	OpenAI    openai.Config          `yaml:"OPENAI"    env:"OPENAI"`
	Retry     retry.Config           `yaml:"RETRY"     env:"RETRY"`
	Generator generator.Config       `yaml:"GENERATOR" env:"GENERATOR"`
	Audio     audio.Config           `yaml:"AUDIO"     env:"AUDIO"`
	Delivery  service.DeliveryConfig `yaml:"DELIVERY"  env:"DELIVERY"`
	Scheduler scheduler.Config       `yaml:"SCHEDULER" env:"SCHEDULER"`
	Dashboard dashboard.Config       `yaml:"DASHBOARD" env:"DASHBOARD"`
}

// New reads the environment, loading .env first when one exists.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Bot checks the settings the Mattermost side cannot run without.
func (c *Config) Bot() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if c.MmURL == "" {
		errs = append(errs, errors.New("MM_URL is required"))
	}
	if c.MmWsURL == "" {
		errs = append(errs, errors.New("MM_WS_URL is required"))
	}
	if c.ChannelID == "" {
		errs = append(errs, errors.New("CHANNEL_ID is required"))
	}
	return errors.Join(errs...)
}
