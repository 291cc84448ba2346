package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaam8/lingua_bot/internal/api"
	"github.com/jaam8/lingua_bot/internal/dashboard"
	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/jaam8/lingua_bot/internal/scheduler"
	"github.com/jaam8/lingua_bot/internal/service"
	"github.com/mattermost/mattermost-server/v6/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const stopTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "lingua_bot",
		Short:        "Daily German stories, grammar and quizzes for a Mattermost channel",
		SilenceUsage: true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bot and the daily scheduler",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "story",
			Short: "Deliver one story and grammar topic now, then exit",
			Args:  cobra.NoArgs,
			RunE:  runStory,
		},
		newPopulateCmd(),
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the story table",
			Args:  cobra.NoArgs,
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "dashboard",
			Short: "Serve the API cost dashboard on REST_PORT",
			Args:  cobra.NoArgs,
			RunE:  runDashboard,
		},
	)
	return root
}

func newPopulateCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Generate stories and store them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			return runPopulate(cmd.Context(), count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of stories to generate")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	client, botID, err := a.mattermost()
	if err != nil {
		log.Error("failed to log in to mattermost", zap.Error(err))
		return err
	}
	ch := api.NewChannel(client, botID, a.cfg.ChannelID, a.cfg.OperatorChannelID, log)
	t, err := a.tally(ctx)
	if err != nil {
		log.Error("failed to build poll tally", zap.Error(err))
		return err
	}
	delivery, err := a.delivery(ctx, ch, t)
	if err != nil {
		log.Error("failed to build delivery", zap.Error(err))
		return err
	}

	sched, err := scheduler.New(ctx, a.cfg.Scheduler, func(ctx context.Context) {
		if _, err := delivery.RunCycle(ctx); err != nil {
			log.Error("scheduled delivery cycle failed", zap.Error(err))
		}
	}, log)
	if err != nil {
		return err
	}
	if a.cfg.Scheduler.AutoArm {
		if _, err = sched.Arm(); err != nil {
			return err
		}
	}

	ws, wsErr := model.NewWebSocketClient4(a.cfg.MmWsURL, a.cfg.BotToken)
	if wsErr != nil {
		return fmt.Errorf("failed to connect to webSocket: %v", wsErr)
	}
	ws.Listen()
	defer ws.Close()

	handler := api.New(service.NewQuizService(t, log), delivery, sched, ch, botID, log)
	sched.Start()
	log.Info("bot started", zap.String("bot_id", botID), zap.String("channel_id", a.cfg.ChannelID))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listen(gctx, ws, handler, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), stopTimeout)
		defer cancel()
		return sched.Stop(stopCtx)
	})
	err = g.Wait()
	handler.Wait()
	log.Info("bot graceful stopped")
	return err
}

func listen(ctx context.Context, ws *model.WebSocketClient, handler *api.PollHandler, log *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ws.EventChannel:
			if !ok {
				return errors.New("websocket event channel closed")
			}
			if event == nil {
				continue
			}
			log.Debug("new event", zap.String("event", event.EventType()))
			handler.HandleEvent(ctx, event)
		}
	}
}

func runStory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	client, botID, err := a.mattermost()
	if err != nil {
		return err
	}
	ch := api.NewChannel(client, botID, a.cfg.ChannelID, a.cfg.OperatorChannelID, a.log)
	t, err := a.tally(ctx)
	if err != nil {
		return err
	}
	delivery, err := a.delivery(ctx, ch, t)
	if err != nil {
		return err
	}
	report, err := delivery.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, models.ErrCycleInProgress) {
			a.log.Warn("a delivery cycle is already running")
		}
		return err
	}
	a.log.Info("delivery cycle done",
		zap.String("cycle_id", report.ID),
		zap.String("story_poll_id", report.StoryPollID),
		zap.String("grammar_poll_id", report.GrammarPollID))
	return nil
}

func runPopulate(ctx context.Context, count int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stories, err := a.stories()
	if err != nil {
		return err
	}
	if err = stories.Migrate(ctx); err != nil {
		return err
	}
	oa, err := a.openAI()
	if err != nil {
		return err
	}
	gen, err := a.generator(ctx, oa)
	if err != nil {
		return err
	}
	report, err := service.NewContentService(stories, gen, a.log).Populate(ctx, count)
	if err != nil {
		return err
	}
	total, err := stories.CountStories(ctx)
	if err != nil {
		return err
	}
	a.log.Info("populate finished",
		zap.Int("inserted", len(report.Inserted)),
		zap.Int("skipped", report.Skipped),
		zap.Int64("total", total))
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stories, err := a.stories()
	if err != nil {
		return err
	}
	if err = stories.Migrate(cmd.Context()); err != nil {
		return err
	}
	a.log.Info("story table migrated")
	return nil
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	oa, err := a.openAI()
	if err != nil {
		return err
	}
	if oa == nil {
		return errNoOpenAIKey
	}
	var cache dashboard.Cache
	rdb, err := a.redis(ctx)
	if err != nil {
		return err
	}
	if rdb != nil {
		cache = rdb
	}
	usage := dashboard.NewUsageClient(oa, cache, a.cfg.Dashboard.CacheTTL, a.log)
	return dashboard.NewServer(usage, a.log).Run(ctx, a.cfg.RestPort)
}
