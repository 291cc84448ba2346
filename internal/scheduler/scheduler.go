// Package scheduler fires the daily delivery cycle.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Config struct {
	DailyAt  string `yaml:"DAILY_AT" env:"DAILY_AT" env-default:"09:00"`
	Timezone string `yaml:"TIMEZONE" env:"TIMEZONE" env-default:"Europe/Berlin"`
	AutoArm  bool   `yaml:"AUTO_ARM" env:"AUTO_ARM" env-default:"false"`
}

type Job func(ctx context.Context)

type Scheduler struct {
	mu      sync.Mutex
	c       *cron.Cron
	spec    string
	dailyAt string
	job     Job
	ctx     context.Context
	entry   cron.EntryID
	armed   bool
	l       *zap.Logger
}

// New prepares a scheduler; jobs get ctx, so cancelling it stops running cycles.
func New(ctx context.Context, cfg Config, job Job, l *zap.Logger) (*Scheduler, error) {
	spec, err := CronSpec(cfg.DailyAt)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler: timezone %q: %w", cfg.Timezone, err)
	}
	return &Scheduler{
		c:       cron.New(cron.WithLocation(loc)),
		spec:    spec,
		dailyAt: cfg.DailyAt,
		job:     job,
		ctx:     ctx,
		l:       l,
	}, nil
}

// CronSpec turns HH:MM into a daily five-field cron expression.
func CronSpec(dailyAt string) (string, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(dailyAt), ":")
	if !ok {
		return "", fmt.Errorf("scheduler: DAILY_AT %q is not HH:MM", dailyAt)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("scheduler: DAILY_AT %q has a bad hour", dailyAt)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("scheduler: DAILY_AT %q has a bad minute", dailyAt)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Arm registers the daily job. It returns false when the job was armed before.
func (s *Scheduler) Arm() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armed {
		return false, nil
	}
	id, err := s.c.AddFunc(s.spec, func() {
		s.l.Info("scheduled delivery cycle fired")
		s.job(s.ctx)
	})
	if err != nil {
		return false, fmt.Errorf("scheduler: arm: %w", err)
	}
	s.entry = id
	s.armed = true
	s.l.Info("daily delivery armed", zap.String("daily_at", s.dailyAt), zap.String("spec", s.spec))
	return true, nil
}

func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *Scheduler) DailyAt() string {
	return s.dailyAt
}

// Next is the next fire time; zero until armed and started.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return time.Time{}
	}
	return s.c.Entry(s.entry).Next
}

func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron runner and waits for a running job or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
