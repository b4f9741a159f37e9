package services

import (
	"log/slog"
	"strings"
	"time"

	"voyanceBack/internal/ws"
)

// EventPublisher delivers realtime events to connected participants.
type EventPublisher interface {
	Publish(evt ws.Event, participants ...string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(ws.Event, ...string) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func nowOr(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

func normalizeUsername(s string) string {
	return strings.TrimSpace(s)
}
