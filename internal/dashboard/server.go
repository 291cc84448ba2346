package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultRange    = 30 * 24 * time.Hour
	shutdownTimeout = 5 * time.Second
)

type Config struct {
	CacheTTL time.Duration `yaml:"DASHBOARD_CACHE_TTL" env:"DASHBOARD_CACHE_TTL" env-default:"1h"`
}

type Server struct {
	usage *UsageClient
	l     *zap.Logger
	now   func() time.Time
}

func NewServer(usage *UsageClient, l *zap.Logger) *Server {
	return &Server{
		usage: usage,
		l:     l,
		now:   time.Now,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), Logger(s.l))
	r.GET("/", s.index)
	r.GET("/api/usage", s.apiUsage)
	r.GET("/charts/daily.png", s.dailyChart)
	r.GET("/charts/models.png", s.modelChart)
	return r
}

// Run serves on port until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.l.Info("dashboard listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard: serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dashboard: shutdown: %w", err)
		}
		<-errCh
		s.l.Info("dashboard stopped")
		return nil
	}
}

// dateRange reads start/end (YYYY-MM-DD), defaulting to the last 30 days.
func (s *Server) dateRange(c *gin.Context) (time.Time, time.Time, error) {
	now := s.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.Add(-defaultRange)
	var err error
	if v := c.Query("start"); v != "" {
		if start, err = time.Parse(time.DateOnly, v); err != nil {
			return start, end, fmt.Errorf("invalid start date %q", v)
		}
	}
	if v := c.Query("end"); v != "" {
		if end, err = time.Parse(time.DateOnly, v); err != nil {
			return start, end, fmt.Errorf("invalid end date %q", v)
		}
	}
	if start.After(end) {
		return start, end, fmt.Errorf("start date %s is after end date %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return start, end, nil
}

func (s *Server) summary(c *gin.Context) (Summary, bool) {
	start, end, err := s.dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return Summary{}, false
	}
	records, err := s.usage.Fetch(c.Request.Context(), start, end)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch usage"})
		return Summary{}, false
	}
	return Summarize(records), true
}

func (s *Server) index(c *gin.Context) {
	start, end, err := s.dateRange(c)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	data := pageData{Start: start.Format(time.DateOnly), End: end.Format(time.DateOnly)}
	records, err := s.usage.Fetch(c.Request.Context(), start, end)
	if err != nil {
		data.Error = err.Error()
	} else {
		data.Summary = Summarize(records)
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err = pageTemplate.Execute(c.Writer, data); err != nil {
		s.l.Error("failed to render page", zap.Error(err))
	}
}

func (s *Server) apiUsage(c *gin.Context) {
	sum, ok := s.summary(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) dailyChart(c *gin.Context) {
	sum, ok := s.summary(c)
	if !ok {
		return
	}
	s.png(c, func() ([]byte, error) { return DailyChart(sum.Daily) })
}

func (s *Server) modelChart(c *gin.Context) {
	sum, ok := s.summary(c)
	if !ok {
		return
	}
	s.png(c, func() ([]byte, error) { return ModelChart(sum.Models) })
}

func (s *Server) png(c *gin.Context, render func() ([]byte, error)) {
	img, err := render()
	if err != nil {
		s.l.Error("failed to render chart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render chart"})
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}
