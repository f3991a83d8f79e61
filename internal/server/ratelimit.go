package server

import (
	"fmt"
	"sync"
	"time"
)

// UploadLimiter caps how fast and how much a single client can upload.
// Site crews share a handful of tablets, so limits are per client IP.
type UploadLimiter struct {
	mu sync.Mutex

	uploadsPerMinute int
	maxDataPerDay    int64 // bytes

	clients map[string]*clientUsage
}

type clientUsage struct {
	uploadsLastMinute int
	dataToday         int64
	lastUploadTime    time.Time
	dayStartTime      time.Time
}

// NewUploadLimiter creates a limiter; a zero limit disables that check.
func NewUploadLimiter(uploadsPerMinute int, maxDataPerDay int64) *UploadLimiter {
	return &UploadLimiter{
		uploadsPerMinute: uploadsPerMinute,
		maxDataPerDay:    maxDataPerDay,
		clients:          make(map[string]*clientUsage),
	}
}

// Check reports whether an upload of dataSize bytes from clientID is
// allowed right now, and records it if so.
func (l *UploadLimiter) Check(clientID string, dataSize int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	usage, ok := l.clients[clientID]
	if !ok {
		usage = &clientUsage{lastUploadTime: now, dayStartTime: now}
		l.clients[clientID] = usage
	}

	if now.YearDay() != usage.dayStartTime.YearDay() || now.Year() != usage.dayStartTime.Year() {
		usage.dataToday = 0
		usage.dayStartTime = now
	}
	if now.Sub(usage.lastUploadTime) >= time.Minute {
		usage.uploadsLastMinute = 0
	}

	if l.uploadsPerMinute > 0 && usage.uploadsLastMinute >= l.uploadsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      l.uploadsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.lastUploadTime),
		}
	}
	if l.maxDataPerDay > 0 && usage.dataToday+dataSize > l.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  l.maxDataPerDay,
			Used:   usage.dataToday,
			Resets: time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location()),
		}
	}

	usage.uploadsLastMinute++
	usage.dataToday += dataSize
	usage.lastUploadTime = now
	return nil
}

// RateLimitError represents an upload rate violation.
type RateLimitError struct {
	Type       string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily data quota violation.
type QuotaExceededError struct {
	Type   string
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
