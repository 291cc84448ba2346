// Package dashboard serves the API spend charts.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jaam8/lingua_bot/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultCacheTTL = time.Hour
	cachePrefix     = "lingua_bot:usage:"
)

// UsageSource returns the raw usage report for a date range.
type UsageSource interface {
	Usage(ctx context.Context, start, end time.Time) ([]byte, error)
}

type Cache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type UsageClient struct {
	src   UsageSource
	cache Cache
	ttl   time.Duration
	l     *zap.Logger
}

// NewUsageClient builds a client; cache may be nil.
func NewUsageClient(src UsageSource, cache Cache, ttl time.Duration, l *zap.Logger) *UsageClient {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &UsageClient{
		src:   src,
		cache: cache,
		ttl:   ttl,
		l:     l,
	}
}

// Fetch returns usage records between start and end, reading through the cache.
func (u *UsageClient) Fetch(ctx context.Context, start, end time.Time) ([]models.UsageRecord, error) {
	key := cachePrefix + start.Format(time.DateOnly) + ":" + end.Format(time.DateOnly)
	if u.cache != nil {
		raw, ok, err := u.cache.GetBytes(ctx, key)
		if err != nil {
			u.l.Warn("usage cache unavailable", zap.Error(err))
		} else if ok {
			return ParseUsage(raw)
		}
	}

	raw, err := u.src.Usage(ctx, start, end)
	if err != nil {
		u.l.Error("failed to fetch usage", zap.Error(err))
		return nil, fmt.Errorf("dashboard: fetch usage: %w", err)
	}
	records, err := ParseUsage(raw)
	if err != nil {
		return nil, err
	}
	if u.cache != nil {
		if err = u.cache.SetBytes(ctx, key, raw, u.ttl); err != nil {
			u.l.Warn("failed to cache usage", zap.Error(err))
		}
	}
	u.l.Debug("usage fetched", zap.Int("records", len(records)))
	return records, nil
}

type usageEntry struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Model     string          `json:"model"`
	Cost      float64         `json:"cost"`
}

// ParseUsage decodes a {"data": [...]} report. Timestamps may be unix seconds or
// RFC 3339, "2006-01-02 15:04:05" or "2006-01-02" strings.
func ParseUsage(raw []byte) ([]models.UsageRecord, error) {
	var body struct {
		Data []usageEntry `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("dashboard: decode usage: %w: %w", models.ErrFailedToProcessData, err)
	}
	records := make([]models.UsageRecord, 0, len(body.Data))
	for i, e := range body.Data {
		ts, err := parseTimestamp(e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("dashboard: entry %d: %w: %w", i, models.ErrFailedToProcessData, err)
		}
		records = append(records, models.UsageRecord{Timestamp: ts, Model: e.Model, Cost: e.Cost})
	}
	return records, nil
}

var timestampLayouts = []string{time.RFC3339, time.DateTime, time.DateOnly}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	if raw[0] != '"' {
		secs, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
		}
		return time.Unix(int64(secs), 0).UTC(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q has an unknown format", s)
}
